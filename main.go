// Command ch8 executes CHIP-8 programs.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"golang.org/x/term"

	"github.com/nf/ch8/chip8"
	"github.com/nf/ch8/vip"
)

type options struct {
	cli        bool
	hz         int
	scale      int
	cycles     int
	screenshot string
	trace      bool
	asm        string
	cfg        chip8.Config
}

func main() {
	log.SetPrefix("ch8: ")
	log.SetFlags(0)

	var (
		o = options{cfg: chip8.DefaultConfig()}

		devFlag   = flag.Bool("dev", false, "enable developer mode (rebuild and run the program when it changes)")
		debugFlag = flag.Bool("debug", false, "enable debugger (implies -dev)")

		cpuProfileFlag = flag.String("cpu_profile", "", "write CPU profile to `file`")
		statsviewFlag  = flag.String("statsview", "", "serve runtime statistics at `addr`")
	)
	flag.BoolVar(&o.cli, "cli", false, "disable GUI features (draw in the terminal)")
	flag.IntVar(&o.hz, "hz", vip.DefaultHz, "instructions per second (0 runs as fast as possible)")
	flag.IntVar(&o.scale, "scale", 10, "window pixels per screen pixel")
	flag.IntVar(&o.cycles, "cycles", 0, "run `n` instructions headless and print the screen")
	flag.StringVar(&o.screenshot, "screenshot", "", "write the final screen to `file` as a PNG image")
	flag.BoolVar(&o.trace, "trace", false, "print the most recent instructions when the program faults")
	flag.StringVar(&o.asm, "asm", "octo", "assembler `command` used to build .8o sources")
	flag.IntVar(&o.cfg.Width, "width", chip8.DefaultWidth, "screen width in pixels")
	flag.IntVar(&o.cfg.Height, "height", chip8.DefaultHeight, "screen height in pixels")
	flag.BoolVar(&o.cfg.NullFatal, "null_fatal", false, "halt on the zero instruction instead of ignoring it")
	flag.BoolVar(&o.cfg.AdvanceI, "advance_i", false, "advance I past the registers stored or loaded by Fx55 and Fx65")
	flag.BoolVar(&o.cfg.Collision, "collision", true, "set VF when a sprite turns a pixel off")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <program.ch8 | program.8o>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [flags] <-dev | -debug> <program.8o | program.ch8>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()
	if flag.NArg() != 1 || o.hz < 0 || o.scale < 1 || o.cycles < 0 {
		flag.Usage()
	}

	if addr := *statsviewFlag; addr != "" {
		launchStatsview(addr)
	}

	if *devFlag || *debugFlag {
		if err := devMode(o, *debugFlag, flag.Arg(0)); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	err := run(o, flag.Arg(0))

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
}

func run(o options, romFile string) error {
	var (
		rom []byte
		err error
	)
	if filepath.Ext(romFile) == ".8o" {
		var tmp string
		if tmp, err = os.MkdirTemp("", "ch8-build-*"); err != nil {
			return err
		}
		defer os.RemoveAll(tmp)

		src := romFile
		romFile = filepath.Join(tmp, filepath.Base(src)+".ch8")
		rom, err = devBuild(os.Stderr, o.asm, src, romFile)
	} else {
		rom, err = os.ReadFile(romFile)
	}
	if err != nil {
		return err
	}
	m, err := newMachine(o.cfg, rom)
	if err != nil {
		return err
	}

	if o.cycles > 0 {
		err = vip.RunBatch(m, o.cycles)
		fmt.Print(m.Screen.String())
	} else {
		r := vip.NewRunner(frontend(o, false), o.hz, false, nil)
		r.Trace = o.trace
		err = r.Run(m)
	}
	if o.screenshot != "" {
		if serr := writeScreenshot(o.screenshot, &m.Screen, o.scale); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}

func newMachine(c chip8.Config, rom []byte) (*chip8.Machine, error) {
	m := chip8.NewMachine(c)
	if err := m.Load(rom); err != nil {
		return nil, fmt.Errorf("loading program: %v", err)
	}
	return m, nil
}

// frontend returns the frontend selected by o. If the terminal is taken by
// the debugger, or standard output is not a terminal, -cli runs headless.
func frontend(o options, debugger bool) vip.Frontend {
	switch {
	case !o.cli:
		return vip.NewGUI(o.scale)
	case debugger, !term.IsTerminal(int(os.Stdout.Fd())):
		return nil
	default:
		return vip.NewTerm()
	}
}

func writeScreenshot(name string, s *chip8.Screen, scale int) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := vip.WriteScreenshot(f, s, scale); err != nil {
		f.Close()
		return fmt.Errorf("writing screenshot: %v", err)
	}
	return f.Close()
}

func launchStatsview(addr string) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		statsview.New().Start()
	}()
	log.Printf("stats server available at http://%s/debug/statsview", addr)
}
