// Command riscof-dut is the device-under-test harness for the RISCOF
// architectural compliance flow. It loads a test executable, runs it on
// the core with the ISA the framework requests, watches the tohost word
// for the completion handshake and writes the memory signature region out
// as hex lines. Traps vector to the handler the test installs in mtvec,
// with mepc/mcause/mtval recorded and MRET returning to mepc; a trap with
// no handler installed fails the test.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rvbox/rvbox/cpu"
	"github.com/rvbox/rvbox/log"
	"github.com/rvbox/rvbox/mem"
	"github.com/rvbox/rvbox/softfloat"
)

const (
	ramBase    uint32 = 0x80000000
	ramBytes   uint32 = 16 << 20
	tohostMMIO uint32 = 0xC0000000
)

// Machine-mode CSRs the harness implements for the compliance tests'
// trap handlers. The core delegates all of these to the environment.
const (
	csrMStatus uint32 = 0x300
	csrMTVec   uint32 = 0x305
	csrMEPC    uint32 = 0x341
	csrMCause  uint32 = 0x342
	csrMTVal   uint32 = 0x343
)

// mretWord is the MRET encoding. MRET is a privileged instruction the
// unprivileged core reports as illegal; the harness recognizes it in the
// trap value and performs the return to mepc itself.
const mretWord uint32 = 0x30200073

// trapStormLimit bounds consecutive trap redirections with no retired
// instruction in between, so a faulting handler fails the test instead
// of spinning forever.
const trapStormLimit = 64

func usage(fatal bool) {
	fmt.Println("Usage: riscof-dut --isa=rv32imafdqc --signature-path=PATH --exe-path=PATH")
	if fatal {
		os.Exit(1)
	}
	os.Exit(0)
}

func main() {
	isa, sigPath, exePath := parseArgs()
	cfg, err := parseISA(isa)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	elf, err := loadELF(exePath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if err := run(cfg, elf, sigPath); err != nil {
		log.Default().Module("riscof-dut").Error("test failed", "exe", exePath, "err", err)
		os.Exit(1)
	}
}

func parseArgs() (isa, sigPath, exePath string) {
	for _, arg := range os.Args[1:] {
		lhs, rhs, found := strings.Cut(arg, "=")
		if !found {
			switch arg {
			case "help", "--help", "-h", "-?":
				usage(false)
			case "--isa", "--signature-path", "--exe-path", "--signature-granularity":
				fmt.Printf("%s requires an equals sign and an argument\n", arg)
			default:
				fmt.Printf("Unexpected parameter %q\n", arg)
			}
			usage(true)
		}
		switch lhs {
		case "--isa":
			isa = rhs
		case "--signature-path":
			sigPath = rhs
		case "--exe-path":
			exePath = rhs
		case "--signature-granularity":
			if rhs != "4" {
				fmt.Println("Only supported value for signature-granularity is 4.")
				os.Exit(1)
			}
		default:
			fmt.Printf("Unknown parameter %q\n", lhs)
			usage(true)
		}
	}
	if isa == "" || sigPath == "" || exePath == "" {
		if isa == "" {
			fmt.Println("Missing parameter: --isa")
		}
		if sigPath == "" {
			fmt.Println("Missing parameter: --signature-path")
		}
		if exePath == "" {
			fmt.Println("Missing parameter: --exe-path")
		}
		usage(true)
	}
	return isa, sigPath, exePath
}

// isaConfig is the machine shape one test requests.
type isaConfig struct {
	width softfloat.Width // cpu.FloatNone when no FP extension is named
	exts  map[cpu.Extension]bool
}

func parseISA(isa string) (isaConfig, error) {
	cfg := isaConfig{width: cpu.FloatNone, exts: map[cpu.Extension]bool{
		cpu.ExtZicsr:    true,
		cpu.ExtZifencei: true,
	}}
	if !strings.HasPrefix(isa, "rv32") {
		return cfg, fmt.Errorf("ISA must start with 'rv32'")
	}
	rest := isa[4:]
	if !strings.Contains(rest, "i") {
		return cfg, fmt.Errorf("'i' must be present in ISA")
	}
	for _, ch := range rest {
		if !strings.ContainsRune("imafdqc", ch) {
			return cfg, fmt.Errorf("unknown ISA extension %q", ch)
		}
	}
	if strings.Contains(rest, "q") && !strings.Contains(rest, "d") {
		return cfg, fmt.Errorf("'d' must be present in ISA if 'q' is")
	}
	if strings.Contains(rest, "d") && !strings.Contains(rest, "f") {
		return cfg, fmt.Errorf("'f' must be present in ISA if 'd' is")
	}
	switch {
	case strings.Contains(rest, "q"):
		cfg.width = softfloat.W128
	case strings.Contains(rest, "d"):
		cfg.width = softfloat.W64
	case strings.Contains(rest, "f"):
		cfg.width = softfloat.W32
	}
	for ch, e := range map[byte]cpu.Extension{
		'm': cpu.ExtM, 'a': cpu.ExtA, 'f': cpu.ExtF,
		'd': cpu.ExtD, 'q': cpu.ExtQ, 'c': cpu.ExtC,
	} {
		cfg.exts[e] = strings.Contains(rest, string(ch))
	}
	return cfg, nil
}

func run(cfg isaConfig, elf *loadedELF, sigPath string) error {
	space := mem.NewSpaceAt(ramBase, ramBytes)
	for e := cpu.ExtM; e <= cpu.ExtZifencei; e++ {
		space.SetExtension(e, cfg.exts[e])
	}
	// Machine-mode trap CSRs. mstatus is a plain storage word; the
	// tests only save and restore it.
	for _, csr := range []uint32{csrMStatus, csrMTVec, csrMEPC, csrMCause, csrMTVal} {
		space.SetCSR(csr, 0)
	}

	var tohost *uint32
	space.SetMMIO(tohostMMIO, mem.MMIOWord{
		Write: func(value, mask uint32) error {
			v := value & mask
			tohost = &v
			return nil
		},
	})

	for _, ch := range elf.chunks {
		if err := space.LoadImage(ch.base, ch.data); err != nil {
			return fmt.Errorf("riscof-dut: loading segment at 0x%08x: %w", ch.base, err)
		}
	}

	core, err := cpu.New(cfg.width)
	if err != nil {
		return err
	}
	core.SetPC(elf.entry)

	storm := 0
	for {
		if exc := core.Step(space); exc != nil {
			storm++
			if storm > trapStormLimit {
				return fmt.Errorf("riscof-dut: trap storm at pc 0x%08x: %w", core.PC(), exc)
			}
			if err := redirectTrap(core, space, exc); err != nil {
				return err
			}
			continue
		}
		storm = 0
		if tohost == nil {
			continue
		}
		v := *tohost
		tohost = nil
		switch {
		case v == 1:
			return writeSignature(space, elf, sigPath)
		case v&1 == 1:
			return fmt.Errorf("riscof-dut: test requested an error exit (tohost=0x%x)", v)
		default:
			return fmt.Errorf("riscof-dut: unknown tohost value 0x%x", v)
		}
	}
}

// redirectTrap is the harness's machine-mode glue on top of the
// unprivileged core: it records the trap in mepc/mcause/mtval and
// vectors the PC to the handler address in mtvec (direct mode). An
// illegal-instruction trap whose encoding is MRET is the handler
// returning; the PC goes back to mepc instead.
func redirectTrap(core *cpu.CPU, space *mem.Space, exc *cpu.Exception) error {
	if exc.Cause == cpu.CauseBudgetExhausted {
		return fmt.Errorf("riscof-dut: %w", exc)
	}
	if exc.Cause == cpu.CauseIllegalInstruction && exc.Value == mretWord {
		epc, err := space.ReadCSR(csrMEPC, cpu.CSRAccessRead)
		if err != nil {
			return fmt.Errorf("riscof-dut: reading mepc: %w", err)
		}
		core.SetPC(epc)
		return nil
	}

	handler, err := space.ReadCSR(csrMTVec, cpu.CSRAccessRead)
	if err != nil {
		return fmt.Errorf("riscof-dut: reading mtvec: %w", err)
	}
	if handler&^3 == 0 {
		// No handler installed: the test did not expect this trap.
		return fmt.Errorf("riscof-dut: unhandled trap at pc 0x%08x: %w", core.PC(), exc)
	}
	for _, w := range []struct{ csr, value uint32 }{
		{csrMEPC, core.PC()},
		{csrMCause, uint32(exc.Cause)},
		{csrMTVal, exc.Value},
	} {
		if err := space.WriteCSR(w.csr, w.value, cpu.CSRAccessWrite); err != nil {
			return fmt.Errorf("riscof-dut: writing csr 0x%03x: %w", w.csr, err)
		}
	}
	core.SetPC(handler &^ 3)
	return nil
}

func writeSignature(space *mem.Space, elf *loadedELF, path string) error {
	begin, err := elf.symbol("rvtest_sig_begin")
	if err != nil {
		return err
	}
	end, err := elf.symbol("rvtest_sig_end")
	if err != nil {
		return err
	}
	if end < begin || begin%4 != 0 || end%4 != 0 {
		return fmt.Errorf("riscof-dut: bad signature range 0x%08x..0x%08x", begin, end)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("riscof-dut: creating signature file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for addr := begin; addr < end; addr += 4 {
		v, err := space.ReadWord(addr, ^uint32(0))
		if err != nil {
			return fmt.Errorf("riscof-dut: reading signature word at 0x%08x: %w", addr, err)
		}
		fmt.Fprintf(w, "%08x\n", v)
	}
	return w.Flush()
}
