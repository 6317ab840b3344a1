package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stagekit/stagekit/engine"
	"github.com/stagekit/stagekit/entity"
)

const (
	gridCols  = 48
	gridRows  = 18
	frameRate = 100 * time.Millisecond
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	spriteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	bubbleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	penStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type stageModel struct {
	eng   *engine.Engine
	stage *entity.Stage

	cursorCol int
	cursorRow int

	asking   bool
	question string
	reply    chan<- string
	input    textinput.Model

	flagged bool
}

type frameMsg struct{}

type questionMsg struct {
	question string
	reply    chan<- string
}

func newStageModel(eng *engine.Engine, stage *entity.Stage) *stageModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Width = 40
	return &stageModel{
		eng:       eng,
		stage:     stage,
		cursorCol: gridCols / 2,
		cursorRow: gridRows / 2,
		input:     ti,
	}
}

func (m *stageModel) Init() tea.Cmd {
	m.stage.Loaded()
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(time.Time) tea.Msg { return frameMsg{} })
}

func (m *stageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		return m, tick()

	case questionMsg:
		m.asking = true
		m.question = msg.question
		m.reply = msg.reply
		m.input.SetValue("")
		m.input.Focus()
		return m, nil

	case tea.KeyMsg:
		if m.asking {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				m.reply <- m.input.Value()
				m.asking = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "g":
			m.stage.Flag()
			m.flagged = true

		case "up":
			if m.cursorRow > 0 {
				m.cursorRow--
			}
		case "down":
			if m.cursorRow < gridRows-1 {
				m.cursorRow++
			}
		case "left":
			if m.cursorCol > 0 {
				m.cursorCol--
			}
		case "right":
			if m.cursorCol < gridCols-1 {
				m.cursorCol++
			}

		case "enter":
			x, y := m.cellToStage(m.cursorCol, m.cursorRow)
			m.stage.ClickAt(x, y)

		default:
			// Single characters act as key presses on the stage.
			if len(msg.String()) == 1 {
				key := msg.String()
				m.stage.KeyDown(key)
				m.stage.KeyUp(key)
			}
		}
	}
	return m, nil
}

// cellToStage maps a grid cell to stage coordinates, cell centers.
func (m *stageModel) cellToStage(col, row int) (float64, float64) {
	w, h := m.stage.Width(), m.stage.Height()
	x := (float64(col)+0.5)*(w/gridCols) - w/2
	y := h/2 - (float64(row)+0.5)*(h/gridRows)
	return x, y
}

// stageToCell maps stage coordinates to a grid cell, clamped.
func (m *stageModel) stageToCell(x, y float64) (int, int) {
	w, h := m.stage.Width(), m.stage.Height()
	col := int((x + w/2) / (w / gridCols))
	row := int((h/2 - y) / (h / gridRows))
	return clamp(col, 0, gridCols-1), clamp(row, 0, gridRows-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (m *stageModel) View() string {
	snap := m.stage.Snapshot()

	grid := make([][]string, gridRows)
	for r := range grid {
		grid[r] = make([]string, gridCols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	for _, s := range snap.Sprites {
		for _, path := range s.Pen {
			for _, p := range path {
				col, row := m.stageToCell(p.X, p.Y)
				grid[row][col] = penStyle.Render(".")
			}
		}
	}
	for _, s := range snap.Sprites {
		if !s.Visible {
			continue
		}
		col, row := m.stageToCell(s.X, s.Y)
		glyph := "@"
		if s.Name != "" {
			glyph = strings.ToUpper(s.Name[:1])
		}
		grid[row][col] = spriteStyle.Render(glyph)
	}
	grid[m.cursorRow][m.cursorCol] = cursorStyle.Render("+")

	var b strings.Builder
	b.WriteString(titleStyle.Render("stagekit"))
	if m.flagged {
		b.WriteString(" running")
	}
	b.WriteString("\n\n")

	border := "+" + strings.Repeat("-", gridCols) + "+\n"
	b.WriteString(border)
	for _, row := range grid {
		b.WriteString("|")
		b.WriteString(strings.Join(row, ""))
		b.WriteString("|\n")
	}
	b.WriteString(border)

	for _, s := range snap.Sprites {
		if s.Say != "" {
			b.WriteString(bubbleStyle.Render(fmt.Sprintf("%s says: %s", s.Name, s.Say)))
			b.WriteString("\n")
		}
		if s.Think != "" {
			b.WriteString(bubbleStyle.Render(fmt.Sprintf("%s thinks: %s", s.Name, s.Think)))
			b.WriteString("\n")
		}
	}

	if m.asking {
		b.WriteString("\n")
		b.WriteString(questionStyle.Render(m.question))
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("g flag • arrows aim • enter click • letters keypress • q quit"))
		b.WriteString("\n")
	}
	return b.String()
}

func runInteractive(eng *engine.Engine, stage *entity.Stage) error {
	p := tea.NewProgram(newStageModel(eng, stage), tea.WithAltScreen())

	stage.SetAsker(func(question string) string {
		reply := make(chan string, 1)
		p.Send(questionMsg{question: question, reply: reply})
		return <-reply
	})

	_, err := p.Run()
	return err
}
