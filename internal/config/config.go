// Package config reads the board description: which amplifiers exist, how
// to reach them and which profile to bring them up in.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bigbag/tasfw/internal/block"
	"github.com/bigbag/tasfw/internal/protocol"
	"github.com/bigbag/tasfw/internal/regbin"
	"github.com/bigbag/tasfw/internal/regio"
)

// BusKind selects the register transport.
type BusKind string

const (
	BusI2C    BusKind = "i2c"
	BusBridge BusKind = "bridge"
	BusMemory BusKind = "memory"
)

// DefaultGlobalAddr is the broadcast address amplifiers answer when
// global addressing is enabled.
const DefaultGlobalAddr = 0x40

// Board is a board file.
type Board struct {
	Name        string  `yaml:"name"`
	Addrs       []uint8 `yaml:"addrs"`
	Global      uint8   `yaml:"global"`
	Bus         Bus     `yaml:"bus"`
	FirmwareDir string  `yaml:"firmware_dir"`
	Retries     Retries `yaml:"retries"`
	Profile     Profile `yaml:"profile"`
}

// Bus says how the host reaches the amplifiers.
type Bus struct {
	Kind   BusKind `yaml:"kind"`
	Number int     `yaml:"number"`
	Port   string  `yaml:"port"`
	Baud   int     `yaml:"baud"`
}

// Retries bounds the retry loops.
type Retries struct {
	Block int `yaml:"block"`
	IO    int `yaml:"io"`
}

// Profile is the profile selected at bring-up.
type Profile struct {
	Program       int `yaml:"program"`
	Configuration int `yaml:"configuration"`
	RegConf       int `yaml:"regconf"`
}

// Load reads and validates a board file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Parse decodes a board file, fills defaults and validates it.
func Parse(data []byte) (*Board, error) {
	b := &Board{
		Global:      DefaultGlobalAddr,
		Bus:         Bus{Kind: BusI2C, Baud: protocol.DefaultBaudRate},
		FirmwareDir: ".",
		Retries:     Retries{Block: block.DefaultRetries, IO: regio.DefaultRetries},
	}
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("failed to parse board file: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks the board for values no transport can serve.
func (b *Board) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(b.Addrs) == 0 || len(b.Addrs) > regbin.MaxDevices {
		return fmt.Errorf("%d amplifier addresses, want 1..%d", len(b.Addrs), regbin.MaxDevices)
	}
	seen := make(map[uint8]bool)
	for _, a := range b.Addrs {
		if a > 0x7F {
			return fmt.Errorf("address 0x%02X is not a 7-bit address", a)
		}
		if seen[a] || a == b.Global {
			return fmt.Errorf("address 0x%02X used twice", a)
		}
		seen[a] = true
	}

	switch b.Bus.Kind {
	case BusI2C:
		if b.Bus.Number < 0 {
			return fmt.Errorf("bus number %d", b.Bus.Number)
		}
	case BusBridge:
		if b.Bus.Baud <= 0 {
			return fmt.Errorf("baud rate %d", b.Bus.Baud)
		}
	case BusMemory:
	default:
		return fmt.Errorf("unknown bus kind %q", b.Bus.Kind)
	}

	if b.Retries.Block < 1 || b.Retries.IO < 1 {
		return fmt.Errorf("retries must be at least 1")
	}
	if b.Profile.Program < 0 || b.Profile.Configuration < 0 || b.Profile.RegConf < 0 {
		return fmt.Errorf("profile indices must not be negative")
	}
	return nil
}
