package block

import "github.com/bigbag/tasfw/internal/firmware"

// Channel error code bits.
const (
	ErrCodeYRAM = 0x1
	ErrCodePRAM = 0x2
)

// NoIndex marks an unset program, configuration or regbin configuration.
const NoIndex = -1

// Channel is the runtime state of one amplifier.
type Channel struct {
	Addr    uint8
	ErrCode uint32

	Program int
	Config  int
	RegConf int

	Loading   bool
	LoadErr   bool
	DSPBypass bool
	CalLoaded bool
	PowerOn   bool

	Calibration *firmware.Firmware
}

// NewChannel returns a channel with no program or configuration loaded.
func NewChannel(addr uint8) *Channel {
	return &Channel{
		Addr:    addr,
		Program: NoIndex,
		Config:  NoIndex,
	}
}

// fail records a failed command. Category 0x80 blocks carry program code
// and invalidate both indices; 0xC0 blocks invalidate the configuration.
func (c *Channel) fail(category byte) {
	switch category {
	case CategoryMain:
		c.Program = NoIndex
		c.Config = NoIndex
	case CategoryCoeff:
		c.Config = NoIndex
	}
	c.LoadErr = true
}
