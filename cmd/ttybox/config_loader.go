package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"

	"github.com/rvbox/rvbox/cpu"
	"github.com/rvbox/rvbox/softfloat"
)

// Configuration errors.
var (
	ErrBadFloatWidth = errors.New("float width must be 0, 32, 64 or 128")
	ErrBadExtension  = errors.New("unknown extension name")
	ErrBadAddress    = errors.New("invalid hex address")
)

// Config is the YAML machine description, with every field optional.
// Addresses are hex strings ("0x...").
type Config struct {
	// RAMBytes is the RAM window size. Defaults to 4 MiB.
	RAMBytes uint32 `yaml:"ram_bytes"`

	// FloatWidth configures the FP register file: 0, 32, 64 or 128.
	FloatWidth int `yaml:"float_width"`

	// Extensions lists the enabled extensions. Defaults to all of
	// M, A, F, D, Q, C, Zicsr and Zifencei.
	Extensions []string `yaml:"extensions"`

	// Image is the Logisim "v2.0 raw" image to load at address zero.
	Image string `yaml:"image"`

	// Entry is the initial PC as a hex string. Defaults to 0x0.
	Entry string `yaml:"entry"`

	// TTYAddr is the console MMIO word as a hex string. Defaults to
	// 0xFFFFFFFC.
	TTYAddr string `yaml:"tty_addr"`

	// Budget bounds execution; zero means unlimited.
	Budget uint64 `yaml:"budget"`
}

// DefaultConfig is the machine used when no config file is given.
func DefaultConfig() Config {
	return Config{
		RAMBytes:   4 << 20,
		FloatWidth: 64,
		TTYAddr:    "0xFFFFFFFC",
		Entry:      "0x0",
	}
}

// LoadConfig reads a YAML machine file, filling unset fields from the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("ttybox: reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("ttybox: parsing config: %w", err)
	}
	if cfg.RAMBytes == 0 {
		cfg.RAMBytes = 4 << 20
	}
	if cfg.TTYAddr == "" {
		cfg.TTYAddr = "0xFFFFFFFC"
	}
	if cfg.Entry == "" {
		cfg.Entry = "0x0"
	}
	return cfg, nil
}

// floatWidth maps the config value to a softfloat width.
func (c *Config) floatWidth() (softfloat.Width, error) {
	switch c.FloatWidth {
	case 0:
		return cpu.FloatNone, nil
	case 32:
		return softfloat.W32, nil
	case 64:
		return softfloat.W64, nil
	case 128:
		return softfloat.W128, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadFloatWidth, c.FloatWidth)
	}
}

// extensionSet resolves the extension names. An empty list means all.
func (c *Config) extensionSet() (map[cpu.Extension]bool, error) {
	all := map[string]cpu.Extension{
		"m": cpu.ExtM, "a": cpu.ExtA, "f": cpu.ExtF, "d": cpu.ExtD,
		"q": cpu.ExtQ, "c": cpu.ExtC, "zicsr": cpu.ExtZicsr,
		"zifencei": cpu.ExtZifencei,
	}
	enabled := make(map[cpu.Extension]bool)
	if len(c.Extensions) == 0 {
		for _, e := range all {
			enabled[e] = true
		}
		return enabled, nil
	}
	for _, name := range c.Extensions {
		e, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadExtension, name)
		}
		enabled[e] = true
	}
	return enabled, nil
}

// parseAddr decodes a "0x..." address field.
func parseAddr(s string) (uint32, error) {
	v, err := hexutil.DecodeUint64(s)
	if err != nil || v > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	return uint32(v), nil
}
