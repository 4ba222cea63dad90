package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bigbag/tasfw/internal/block"
	"github.com/bigbag/tasfw/internal/regbin"
)

// RegbinSource is a YAML description of a regbin image.
type RegbinSource struct {
	Version       uint32         `yaml:"version"`
	DriverVersion uint32         `yaml:"driver_version"`
	Timestamp     uint32         `yaml:"timestamp"`
	Platform      uint8          `yaml:"platform"`
	Family        uint8          `yaml:"family"`
	Devices       []uint8        `yaml:"devices"`
	Configs       []ConfigSource `yaml:"configs"`
}

// ConfigSource is one register configuration.
type ConfigSource struct {
	Name   string        `yaml:"name"`
	Blocks []BlockSource `yaml:"blocks"`
}

// BlockSource is one block. A nil Channel addresses every channel.
type BlockSource struct {
	Channel  *int            `yaml:"channel"`
	Type     string          `yaml:"type"`
	YRAM     uint16          `yaml:"ychk"`
	Commands []CommandSource `yaml:"commands"`
}

// CommandSource holds exactly one sub-block command.
type CommandSource struct {
	Write [][]uint8    `yaml:"write"`
	Burst *BurstSource `yaml:"burst"`
	Delay *int         `yaml:"delay"`
	Field *FieldSource `yaml:"field"`
}

type BurstSource struct {
	Book uint8   `yaml:"book"`
	Page uint8   `yaml:"page"`
	Reg  uint8   `yaml:"reg"`
	Data []uint8 `yaml:"data"`
}

type FieldSource struct {
	Mask  uint8 `yaml:"mask"`
	Book  uint8 `yaml:"book"`
	Page  uint8 `yaml:"page"`
	Reg   uint8 `yaml:"reg"`
	Value uint8 `yaml:"value"`
}

// LoadRegbinSource reads a YAML regbin description.
func LoadRegbinSource(path string) (*RegbinSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regbin source: %w", err)
	}
	return ParseRegbinSource(data)
}

// ParseRegbinSource decodes a YAML regbin description.
func ParseRegbinSource(data []byte) (*RegbinSource, error) {
	s := &RegbinSource{Version: regbin.NameVersion}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse regbin source: %w", err)
	}
	return s, nil
}

// Regbin converts the description into a regbin catalog.
func (s *RegbinSource) Regbin() (*regbin.Regbin, error) {
	if len(s.Devices) == 0 || len(s.Devices) > regbin.MaxDevices {
		return nil, fmt.Errorf("%d devices, want 1..%d", len(s.Devices), regbin.MaxDevices)
	}
	if s.Version < regbin.MinVersion {
		return nil, fmt.Errorf("version 0x%X below 0x%X", s.Version, regbin.MinVersion)
	}

	rb := &regbin.Regbin{Header: regbin.Header{
		Version:       s.Version,
		DriverVersion: s.DriverVersion,
		Timestamp:     s.Timestamp,
		PlatformType:  s.Platform,
		DeviceFamily:  s.Family,
		NDev:          byte(len(s.Devices)),
	}}
	copy(rb.Header.Devices[:], s.Devices)

	for i, cs := range s.Configs {
		ci := regbin.ConfigInfo{Name: cs.Name}
		for j, bs := range cs.Blocks {
			b, err := bs.block(len(s.Devices))
			if err != nil {
				return nil, fmt.Errorf("config %d (%s) block %d: %w", i, cs.Name, j, err)
			}
			ci.Blocks = append(ci.Blocks, b)
		}
		ci.NBlocks = uint32(len(ci.Blocks))
		rb.Configs = append(rb.Configs, ci)
	}
	return rb, nil
}

// Encode renders the description as a regbin image.
func (s *RegbinSource) Encode() ([]byte, error) {
	rb, err := s.Regbin()
	if err != nil {
		return nil, err
	}
	return regbin.Encode(rb)
}

func (bs BlockSource) block(ndev int) (regbin.BlockData, error) {
	var b regbin.BlockData

	t, err := parseBlockType(bs.Type)
	if err != nil {
		return b, err
	}
	b.Type = t
	b.YRAMChecksum = bs.YRAM

	if bs.Channel != nil {
		if *bs.Channel < 0 || *bs.Channel >= ndev {
			return b, fmt.Errorf("channel %d of %d", *bs.Channel, ndev)
		}
		b.DevIdx = byte(*bs.Channel + 1)
	}

	for k, cs := range bs.Commands {
		cmd, err := cs.command()
		if err != nil {
			return b, fmt.Errorf("command %d: %w", k, err)
		}
		if b.Data, err = cmd.Append(b.Data); err != nil {
			return b, fmt.Errorf("command %d: %w", k, err)
		}
	}
	b.Sublocks = uint32(len(bs.Commands))
	b.Size = uint32(len(b.Data))
	return b, nil
}

func (cs CommandSource) command() (block.Command, error) {
	var cmd block.Command
	set := 0
	if cs.Write != nil {
		set++
		cmd.Op = block.OpSingleWrite
		for _, q := range cs.Write {
			if len(q) != 4 {
				return cmd, fmt.Errorf("write %v: want [book, page, reg, value]", q)
			}
			cmd.Writes = append(cmd.Writes, block.Write{Book: q[0], Page: q[1], Reg: q[2], Value: q[3]})
		}
	}
	if cs.Burst != nil {
		set++
		cmd.Op = block.OpBurst
		cmd.Book, cmd.Page, cmd.Reg = cs.Burst.Book, cs.Burst.Page, cs.Burst.Reg
		cmd.Data = cs.Burst.Data
	}
	if cs.Delay != nil {
		set++
		cmd.Op = block.OpDelay
		cmd.Delay = time.Duration(*cs.Delay) * time.Millisecond
	}
	if cs.Field != nil {
		set++
		cmd.Op = block.OpFieldWrite
		f := cs.Field
		cmd.Mask, cmd.Book, cmd.Page, cmd.Reg, cmd.Value = f.Mask, f.Book, f.Page, f.Reg, f.Value
	}
	if set != 1 {
		return cmd, fmt.Errorf("want exactly one of write, burst, delay, field; have %d", set)
	}
	return cmd, nil
}

// parseBlockType accepts names like PRE_POWER_UP or pre-power-up.
func parseBlockType(s string) (regbin.BlockType, error) {
	name := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for t := regbin.BlockCoeff; t <= regbin.BlockPostShutdown; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown block type %q", s)
}
