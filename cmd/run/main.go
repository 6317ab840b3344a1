package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/stagekit/stagekit/engine"
	"github.com/stagekit/stagekit/entity"
	"github.com/stagekit/stagekit/web"
)

func main() {
	var (
		script      = flag.String("script", "", "Path to a stage script")
		interactive = flag.Bool("i", false, "Interactive terminal stage")
		serve       = flag.String("serve", "", "Serve a websocket stage on this address (e.g. :8080)")
		pace        = flag.Int("pace", 33, "Pause after each paced call, in milliseconds")
		width       = flag.Float64("width", 480, "Stage width")
		height      = flag.Float64("height", 360, "Stage height")
		debug       = flag.Bool("debug", false, "Verbose logging")
	)
	flag.Parse()

	if *script == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -script <file.js> [-pace ms]")
		fmt.Fprintln(os.Stderr, "       run -script <file.js> -i          (interactive terminal stage)")
		fmt.Fprintln(os.Stderr, "       run -script <file.js> -serve :8080 (websocket stage)")
		os.Exit(1)
	}

	if err := run(*script, *interactive, *serve, *pace, *width, *height, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(script string, interactive bool, serve string, pace int, width, height float64, debug bool) error {
	if interactive && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("-i requires a terminal")
	}

	src, err := os.ReadFile(script)
	if err != nil {
		return err
	}

	opts := engine.Options{}
	if debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		opts.Logger = logger
	}

	eng := engine.New(opts)
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	stage := entity.NewStage(eng, width, height, pace)
	if err := installGlobals(eng, stage); err != nil {
		return err
	}

	task := eng.RunScript(filepath.Base(script), string(src))
	select {
	case <-task.Done():
	case <-time.After(30 * time.Second):
		return fmt.Errorf("script setup did not finish")
	}
	if err := task.Err(); err != nil {
		return err
	}

	switch {
	case interactive:
		return runInteractive(eng, stage)
	case serve != "":
		return serveStage(stage, serve)
	default:
		return runHeadless(stage)
	}
}

// installGlobals publishes `stage` and `createSprite` to the top-level
// program. The top level is plain JavaScript; only the functions it hands to
// evented registrations are rewritten.
func installGlobals(eng *engine.Engine, stage *entity.Stage) error {
	done := make(chan error, 1)
	err := eng.RunOnLoop(func(vm *goja.Runtime) {
		if err := vm.Set("stage", stage.Facade(vm)); err != nil {
			done <- err
			return
		}
		done <- vm.Set("createSprite", func(call goja.FunctionCall) goja.Value {
			s := stage.NewSprite(call.Argument(0).String())
			return s.Facade(vm)
		})
	})
	if err != nil {
		return err
	}
	return <-done
}

// runHeadless answers ask from stdin, fires loaded and the flag, waits for
// every triggered script and prints where the sprites ended up.
func runHeadless(stage *entity.Stage) error {
	stdin := bufio.NewScanner(os.Stdin)
	stage.SetAsker(func(question string) string {
		fmt.Printf("%s ", question)
		if stdin.Scan() {
			return stdin.Text()
		}
		return ""
	})

	for _, task := range stage.Loaded() {
		<-task.Done()
	}
	for _, task := range stage.Flag() {
		<-task.Done()
		if err := task.Err(); err != nil {
			return err
		}
	}

	snap := stage.Snapshot()
	for _, s := range snap.Sprites {
		line := fmt.Sprintf("%s at (%.0f, %.0f) facing %.0f", s.Name, s.X, s.Y, s.Direction)
		if s.Say != "" {
			line += fmt.Sprintf(" saying %q", s.Say)
		}
		if s.Think != "" {
			line += fmt.Sprintf(" thinking %q", s.Think)
		}
		fmt.Println(line)
	}
	return nil
}

// serveStage exposes the stage over websocket and blocks.
func serveStage(stage *entity.Stage, addr string) error {
	srv := web.NewServer(stage, web.Options{})
	defer srv.Close()

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)

	fmt.Printf("Stage on ws://%s/ws\n", addr)
	return http.ListenAndServe(addr, mux)
}
