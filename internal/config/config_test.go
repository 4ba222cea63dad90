package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/tasfw/internal/block"
	"github.com/bigbag/tasfw/internal/protocol"
	"github.com/bigbag/tasfw/internal/regio"
)

func TestParse_Defaults(t *testing.T) {
	b, err := Parse([]byte("name: tas2781\naddrs: [0x38, 0x39]\n"))
	require.NoError(t, err)

	assert.Equal(t, "tas2781", b.Name)
	assert.Equal(t, []uint8{0x38, 0x39}, b.Addrs)
	assert.Equal(t, uint8(DefaultGlobalAddr), b.Global)
	assert.Equal(t, BusI2C, b.Bus.Kind)
	assert.Equal(t, protocol.DefaultBaudRate, b.Bus.Baud)
	assert.Equal(t, ".", b.FirmwareDir)
	assert.Equal(t, Retries{Block: block.DefaultRetries, IO: regio.DefaultRetries}, b.Retries)
	assert.Equal(t, Profile{}, b.Profile)
}

func TestParse_Full(t *testing.T) {
	src := `
name: speaker
addrs: [0x38, 0x39, 0x3a, 0x3b]
global: 0x41
bus:
  kind: bridge
  port: /dev/ttyACM0
  baud: 921600
firmware_dir: /lib/firmware
retries:
  block: 2
  io: 5
profile:
  program: 1
  configuration: 2
  regconf: 3
`
	b, err := Parse([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, Bus{Kind: BusBridge, Port: "/dev/ttyACM0", Baud: 921600}, b.Bus)
	assert.Equal(t, uint8(0x41), b.Global)
	assert.Equal(t, Retries{Block: 2, IO: 5}, b.Retries)
	assert.Equal(t, Profile{Program: 1, Configuration: 2, RegConf: 3}, b.Profile)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no name", "addrs: [0x38]", "name is required"},
		{"no addrs", "name: x", "0 amplifier addresses"},
		{"too many", "name: x\naddrs: [1, 2, 3, 4, 5, 6, 7, 8, 9]", "9 amplifier addresses"},
		{"duplicate", "name: x\naddrs: [0x38, 0x38]", "used twice"},
		{"global clash", "name: x\naddrs: [0x40]", "used twice"},
		{"ten bit", "name: x\naddrs: [0x80]", "7-bit"},
		{"bus kind", "name: x\naddrs: [0x38]\nbus: {kind: spi}", "unknown bus kind"},
		{"baud", "name: x\naddrs: [0x38]\nbus: {kind: bridge, baud: 0}", "baud rate"},
		{"retries", "name: x\naddrs: [0x38]\nretries: {block: 0}", "retries"},
		{"profile", "name: x\naddrs: [0x38]\nprofile: {program: -1}", "negative"},
		{"yaml", "name: [", "failed to parse"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\naddrs: [0x38]\nbus: {kind: memory}\n"), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BusMemory, b.Bus.Kind)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read board file")
}
