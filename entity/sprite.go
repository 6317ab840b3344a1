package entity

import (
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
)

// Point is one vertex of a pen trail.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sprite is a movable, drawable script host. Coordinates are stage-centered:
// (0,0) is the middle, x grows right, y grows up. Direction is in degrees,
// clockwise from straight up, 90 facing right.
type Sprite struct {
	*Entity
	stage *Stage

	x, y       float64
	direction  float64
	size       float64 // percent of costume footprint
	visible    bool
	penned     bool
	paths      [][]Point
	sayText    string
	thinkText  string
	costumes   []*Costume
	costumeIdx int
	cloneCount int
}

// SpriteSnapshot is the immutable view front-ends render from.
type SpriteSnapshot struct {
	Name      string    `json:"name"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Direction float64   `json:"direction"`
	Size      float64   `json:"size"`
	Visible   bool      `json:"visible"`
	Say       string    `json:"say,omitempty"`
	Think     string    `json:"think,omitempty"`
	Costume   string    `json:"costume"`
	Pen       [][]Point `json:"pen,omitempty"`
}

func newSprite(stage *Stage, name string) *Sprite {
	s := &Sprite{
		Entity:    newEntity(stage.eng, name, stage.Pace()),
		stage:     stage,
		direction: 90,
		size:      100,
		visible:   true,
		costumes:  []*Costume{defaultCostume()},
	}
	s.paced = []string{
		"move", "goTo", "turnRight", "turnLeft", "pointInDirection",
		"changeX", "changeY", "setX", "setY",
		"say", "think", "changeSize", "setSize", "show", "hide",
		"penDown", "penUp", "penClear",
		"nextCostume", "switchCostumeTo", "clone",
	}
	s.waited = []string{"wait", "glide", "sayWait", "thinkWait"}
	s.returned = []string{"ask", "invoke"}
	s.forgiving = []string{"invoke"}
	s.evented = []string{
		"whenFlag", "whenLoaded", "whenClicked", "whenKeyPressed",
		"whenEvent", "whenReceiveMessage", "whenCloned",
	}
	s.bind = s.buildFacade
	return s
}

// Position returns the sprite's current coordinates.
func (s *Sprite) Position() (x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

// Direction returns the heading in degrees.
func (s *Sprite) Direction() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direction
}

// Saying returns the current say-bubble text.
func (s *Sprite) Saying() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sayText
}

// setPosition moves the sprite, extending the pen trail when drawing.
func (s *Sprite) setPosition(x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x, s.y = x, y
	if s.penned && len(s.paths) > 0 {
		i := len(s.paths) - 1
		s.paths[i] = append(s.paths[i], Point{X: x, Y: y})
	}
}

// Move advances the sprite along its heading.
func (s *Sprite) Move(steps float64) {
	s.mu.Lock()
	rad := s.direction * math.Pi / 180
	x := s.x + steps*math.Sin(rad)
	y := s.y + steps*math.Cos(rad)
	s.mu.Unlock()
	s.setPosition(x, y)
}

// GoTo jumps the sprite to stage coordinates.
func (s *Sprite) GoTo(x, y float64) { s.setPosition(x, y) }

// TurnRight rotates clockwise by degrees.
func (s *Sprite) TurnRight(deg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direction = math.Mod(s.direction+deg, 360)
}

// TurnLeft rotates counterclockwise by degrees.
func (s *Sprite) TurnLeft(deg float64) { s.TurnRight(-deg) }

// PointInDirection sets the heading.
func (s *Sprite) PointInDirection(deg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.direction = math.Mod(deg, 360)
}

// ChangeX shifts the sprite horizontally.
func (s *Sprite) ChangeX(dx float64) {
	x, y := s.Position()
	s.setPosition(x+dx, y)
}

// ChangeY shifts the sprite vertically.
func (s *Sprite) ChangeY(dy float64) {
	x, y := s.Position()
	s.setPosition(x, y+dy)
}

// SetX moves the sprite to a horizontal coordinate.
func (s *Sprite) SetX(x float64) {
	_, y := s.Position()
	s.setPosition(x, y)
}

// SetY moves the sprite to a vertical coordinate.
func (s *Sprite) SetY(y float64) {
	x, _ := s.Position()
	s.setPosition(x, y)
}

// Say shows a speech bubble; empty text clears it.
func (s *Sprite) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sayText = text
	s.thinkText = ""
}

// Think shows a thought bubble; empty text clears it.
func (s *Sprite) Think(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thinkText = text
	s.sayText = ""
}

// ChangeSize grows or shrinks the sprite by percentage points.
func (s *Sprite) ChangeSize(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = math.Max(0, s.size+delta)
}

// SetSize sets the sprite's size in percent.
func (s *Sprite) SetSize(pct float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = math.Max(0, pct)
}

// Show makes the sprite visible.
func (s *Sprite) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
}

// Hide makes the sprite invisible. Hidden sprites still run scripts but are
// not clickable.
func (s *Sprite) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
}

// Visible reports whether the sprite is shown.
func (s *Sprite) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// PenDown starts a new pen path at the current position.
func (s *Sprite) PenDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.penned = true
	s.paths = append(s.paths, []Point{{X: s.x, Y: s.y}})
}

// PenUp stops drawing.
func (s *Sprite) PenUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.penned = false
}

// PenClear erases every trail this sprite drew.
func (s *Sprite) PenClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = nil
	if s.penned {
		s.paths = append(s.paths, []Point{{X: s.x, Y: s.y}})
	}
}

// AddCostume appends a costume to the wardrobe.
func (s *Sprite) AddCostume(c *Costume) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costumes = append(s.costumes, c)
}

// NextCostume advances to the next costume, wrapping.
func (s *Sprite) NextCostume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.costumes) > 0 {
		s.costumeIdx = (s.costumeIdx + 1) % len(s.costumes)
	}
}

// SwitchCostumeTo wears the named costume; unknown names are ignored.
func (s *Sprite) SwitchCostumeTo(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.costumes {
		if c.Name == name {
			s.costumeIdx = i
			return
		}
	}
}

// Costume returns the currently worn costume.
func (s *Sprite) Costume() *Costume {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.costumes[s.costumeIdx]
}

// rect returns the sprite's axis-aligned footprint.
func (s *Sprite) rect() (minX, minY, maxX, maxY float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.costumes[s.costumeIdx]
	w := c.Width * s.size / 100
	h := c.Height * s.size / 100
	return s.x - w/2, s.y - h/2, s.x + w/2, s.y + h/2
}

// Touching reports whether the two sprites' footprints overlap. Hidden
// sprites touch nothing.
func (s *Sprite) Touching(other *Sprite) bool {
	if !s.Visible() || !other.Visible() {
		return false
	}
	aMinX, aMinY, aMaxX, aMaxY := s.rect()
	bMinX, bMinY, bMaxX, bMaxY := other.rect()
	return aMinX < bMaxX && bMinX < aMaxX && aMinY < bMaxY && bMinY < aMaxY
}

// TouchingEdge reports whether the sprite's footprint crosses the stage edge.
func (s *Sprite) TouchingEdge() bool {
	minX, minY, maxX, maxY := s.rect()
	halfW, halfH := s.stage.Width()/2, s.stage.Height()/2
	return minX <= -halfW || maxX >= halfW || minY <= -halfH || maxY >= halfH
}

// DistanceTo returns the distance from the sprite's center to a point.
func (s *Sprite) DistanceTo(x, y float64) float64 {
	sx, sy := s.Position()
	return math.Hypot(x-sx, y-sy)
}

// hit reports whether a stage coordinate falls inside the sprite.
func (s *Sprite) hit(x, y float64) bool {
	if !s.Visible() {
		return false
	}
	minX, minY, maxX, maxY := s.rect()
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

// WaitSeconds suspends the calling script for a wall-clock duration.
func (s *Sprite) WaitSeconds(seconds float64, id string) {
	time.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		s.ReleaseWaited(id)
	})
}

// SayWait shows a speech bubble for a duration, then clears it and releases
// the wait.
func (s *Sprite) SayWait(text string, seconds float64, id string) {
	s.Say(text)
	time.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		s.Say("")
		s.ReleaseWaited(id)
	})
}

// ThinkWait shows a thought bubble for a duration, then clears it and
// releases the wait.
func (s *Sprite) ThinkWait(text string, seconds float64, id string) {
	s.Think(text)
	time.AfterFunc(time.Duration(seconds*float64(time.Second)), func() {
		s.Think("")
		s.ReleaseWaited(id)
	})
}

// Ask poses a question through the stage's answer source, captures the
// answer into the learner's variable, then releases the wait.
func (s *Sprite) Ask(question, varName, id string) {
	go func() {
		answer := s.stage.askAnswer(question)
		s.deliverResult(varName, id, answer)
	}()
}

// Invoke runs a learner function as its own rewritten script, captures its
// completion value, then releases the wait.
func (s *Sprite) Invoke(fn goja.Value, args []any, varName, id string) {
	task := s.Exec(fn, args...)
	go func() {
		<-task.Done()
		s.deliverResult(varName, id, task.Value())
	}()
}

// CloneSprite copies the sprite, registers the copy with the stage and fires
// the copy's whenCloned handlers.
func (s *Sprite) CloneSprite() *Sprite {
	s.mu.Lock()
	s.cloneCount++
	name := fmt.Sprintf("%s#%d", s.name, s.cloneCount)
	clone := newSprite(s.stage, name)
	clone.x, clone.y = s.x, s.y
	clone.direction = s.direction
	clone.size = s.size
	clone.visible = s.visible
	clone.costumes = append([]*Costume(nil), s.costumes...)
	clone.costumeIdx = s.costumeIdx
	clone.pace = s.pace
	for trigger, fns := range s.handlers {
		clone.handlers[trigger] = append([]goja.Value(nil), fns...)
	}
	for key, fns := range s.keyHandlers {
		clone.keyHandlers[key] = append([]goja.Value(nil), fns...)
	}
	s.mu.Unlock()

	s.stage.addSprite(clone)
	clone.dispatch("cloned")
	return clone
}

// Snapshot returns the sprite's render state.
func (s *Sprite) Snapshot() SpriteSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	pen := make([][]Point, len(s.paths))
	for i, p := range s.paths {
		pen[i] = append([]Point(nil), p...)
	}
	return SpriteSnapshot{
		Name:      s.name,
		X:         s.x,
		Y:         s.y,
		Direction: s.direction,
		Size:      s.size,
		Visible:   s.visible,
		Say:       s.sayText,
		Think:     s.thinkText,
		Costume:   s.costumes[s.costumeIdx].Name,
		Pen:       pen,
	}
}
