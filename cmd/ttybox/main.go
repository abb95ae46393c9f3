// Command ttybox runs a minimal RV32 machine: sparse RAM, a one-word
// console device and nothing else. It loads a Logisim "v2.0 raw" memory
// image, points the PC at the entry address and steps until the program
// hits EBREAK, the budget runs out or an unexpected trap occurs. Reads of
// the console word block for one byte of stdin; writes emit one byte to
// stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/rvbox/rvbox/cpu"
	"github.com/rvbox/rvbox/ipl"
	"github.com/rvbox/rvbox/log"
	"github.com/rvbox/rvbox/mem"
	"github.com/rvbox/rvbox/metrics"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML machine configuration file")
		imagePath  = flag.String("image", "", "memory image (overrides the config)")
		budget     = flag.Uint64("budget", 0, "execution budget, 0 = unlimited (overrides the config)")
		logLevel   = flag.String("log-level", "info", "log level: debug, info, warn, error")
		dumpStats  = flag.Bool("stats", false, "dump cost counters to stderr on exit")
	)
	flag.Parse()

	log.SetDefault(log.New(os.Stderr, log.ParseLevel(*logLevel)))
	logger := log.Default().Module("ttybox")

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = LoadConfig(*configPath); err != nil {
			logger.Error("config", "err", err)
			os.Exit(1)
		}
	}
	if *imagePath != "" {
		cfg.Image = *imagePath
	}
	if *budget != 0 {
		cfg.Budget = *budget
	}
	if cfg.Image == "" {
		fmt.Fprintln(os.Stderr, "Usage: ttybox [-config machine.yaml] -image path/to/image.txt")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("machine stopped", "err", err)
		os.Exit(1)
	}
	if *dumpStats {
		metrics.DefaultRegistry.Dump(os.Stderr)
	}
}

func run(cfg Config, logger *log.Logger) error {
	width, err := cfg.floatWidth()
	if err != nil {
		return err
	}
	exts, err := cfg.extensionSet()
	if err != nil {
		return err
	}
	ttyAddr, err := parseAddr(cfg.TTYAddr)
	if err != nil {
		return err
	}
	entry, err := parseAddr(cfg.Entry)
	if err != nil {
		return err
	}

	f, err := os.Open(cfg.Image)
	if err != nil {
		return fmt.Errorf("ttybox: opening image: %w", err)
	}
	words, err := ipl.Parse(f)
	f.Close()
	if err != nil {
		return err
	}

	space := mem.NewSpace(cfg.RAMBytes)
	for e := cpu.ExtM; e <= cpu.ExtZifencei; e++ {
		space.SetExtension(e, exts[e])
	}
	if cfg.Budget != 0 {
		space.SetBudget(mem.NewBudget(cfg.Budget))
	}
	if err := space.LoadWords(0, words); err != nil {
		return fmt.Errorf("ttybox: loading image: %w", err)
	}
	space.SetMMIO(ttyAddr, consoleWord(os.Stdin, os.Stdout))

	core, err := cpu.New(width)
	if err != nil {
		return err
	}
	core.SetPC(entry)

	// Raw mode makes the console byte-oriented when stdin is a terminal.
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, state)
		}
	}

	logger.Info("starting", "image", cfg.Image, "ram_bytes", cfg.RAMBytes,
		"float_width", cfg.FloatWidth, "entry", cfg.Entry)

	for {
		exc := core.Step(space)
		if exc == nil {
			continue
		}
		switch exc.Cause {
		case cpu.CauseBreakpoint:
			logger.Info("breakpoint, halting", log.Hex32("pc", core.PC()), "a0", core.X(10))
			return nil
		case cpu.CauseBudgetExhausted:
			return fmt.Errorf("ttybox: execution budget exhausted at pc 0x%08x", core.PC())
		default:
			return fmt.Errorf("ttybox: unexpected trap: %w", exc)
		}
	}
}

// consoleWord builds the tty MMIO register: reads block for one input
// byte (all-ones at EOF), writes emit the low byte.
func consoleWord(in io.Reader, out io.Writer) mem.MMIOWord {
	return mem.MMIOWord{
		Read: func() (uint32, error) {
			var buf [1]byte
			if _, err := io.ReadFull(in, buf[:]); err != nil {
				return 0xFFFFFFFF, nil // EOF reads as all-ones
			}
			return uint32(buf[0]), nil
		},
		Write: func(value, mask uint32) error {
			_, err := out.Write([]byte{byte(value)})
			return err
		},
	}
}
