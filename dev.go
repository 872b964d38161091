package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"

	"github.com/nf/ch8/chip8"
	"github.com/nf/ch8/vip"
)

// devMode runs the program in src, rebuilding and restarting it each time
// the file changes. Sources (.8o) are assembled with o.asm; anything else is
// read as a ROM. Symbols are read from a .sym file beside src, if present.
func devMode(o options, debug bool, src string) error {
	src = filepath.Clean(src)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(src)); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp("", "ch8-dev-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	romFile := filepath.Join(tmp, filepath.Base(src)+".ch8")

	var (
		out   io.Writer = os.Stderr
		state vip.StateFunc
		d     *debugger
	)
	if debug {
		d = newDebugger()
		out, state = d.log, d.StateFunc
	}
	runner := vip.NewRunner(frontend(o, debug), o.hz, true, state)
	runner.Trace = o.trace

	rebuild := make(chan bool, 1)
	if d != nil {
		d.run = runner
		d.reset = func() {
			select {
			case rebuild <- true:
			default:
			}
		}
		log.SetPrefix("")
		log.SetOutput(d.log)
		go func() {
			if err := d.Run(); err != nil {
				log.Fatalf("debug: %v", err)
			}
			log.SetOutput(os.Stderr)
			log.SetPrefix("ch8: ")
			runner.Debug("exit", 0, false)
		}()
	}

	first := make(chan *chip8.Machine)
	go func() {
		started := false
		build := time.After(1 * time.Millisecond)
		for {
			select {
			case <-build:
				log.Printf("dev: build %s", filepath.Base(src))
				m, syms, err := devLoad(out, o, src, romFile)
				if err != nil {
					log.Printf("dev: %v", err)
					break
				}
				if d != nil {
					d.setSymbols(syms)
				}
				if !started {
					log.Printf("dev: start")
					first <- m
					started = true
				} else {
					log.Printf("dev: reset")
					runner.Swap(m)
				}
			case <-rebuild:
				build = time.After(1 * time.Millisecond)
			case ev := <-watcher.Event:
				if ev.Name == src && !ev.IsAttrib() {
					build = time.After(100 * time.Millisecond)
				}
			case err := <-watcher.Error:
				log.Printf("dev: watcher: %v", err)
			}
		}
	}()
	if err := runner.Run(<-first); err != nil {
		return fmt.Errorf("dev: %v", err)
	}
	return nil
}

// devLoad builds or reads the program in src and returns a machine loaded
// with it, along with its symbols.
func devLoad(out io.Writer, o options, src, romFile string) (*chip8.Machine, symbols, error) {
	var (
		rom []byte
		err error
	)
	if filepath.Ext(src) == ".8o" {
		rom, err = devBuild(out, o.asm, src, romFile)
	} else {
		rom, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, nil, err
	}
	syms, err := parseSymbols(symFile(src))
	if err != nil {
		return nil, nil, fmt.Errorf("reading symbols: %v", err)
	}
	m, err := newMachine(o.cfg, rom)
	return m, syms, err
}

func symFile(src string) string {
	return src[:len(src)-len(filepath.Ext(src))] + ".sym"
}

func devBuild(out io.Writer, asm, src, romFile string) ([]byte, error) {
	cmd := exec.Command(asm, src, romFile)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %v", asm, err)
	}
	return os.ReadFile(romFile)
}
