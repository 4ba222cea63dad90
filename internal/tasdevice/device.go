// Package tasdevice drives a group of amplifiers sharing one control bus:
// it owns the firmware catalogs and the per-channel state, and selects
// programs, configurations and regbin profiles.
package tasdevice

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bigbag/tasfw/internal/block"
	"github.com/bigbag/tasfw/internal/firmware"
	"github.com/bigbag/tasfw/internal/regbin"
	"github.com/bigbag/tasfw/internal/regio"
)

var (
	ErrNoFirmware         = errors.New("firmware not loaded")
	ErrNoRegbin           = errors.New("regbin not loaded")
	ErrProgramRange       = errors.New("program out of range")
	ErrConfigurationRange = errors.New("configuration out of range")
	ErrRegConfRange       = errors.New("regbin configuration out of range")
	ErrBlockType          = errors.New("block type out of range")
	ErrNoLoader           = errors.New("no firmware loader")
)

// FWState tracks the DSP firmware load.
type FWState int

const (
	FWStateNone FWState = iota
	FWStatePending
	FWStateFail
	FWStateAllOK
)

func (s FWState) String() string {
	switch s {
	case FWStatePending:
		return "PENDING"
	case FWStateFail:
		return "FAIL"
	case FWStateAllOK:
		return "ALL_OK"
	}
	return "NONE"
}

// TuningProgram is the reserved program index used by tuning tools.
const TuningProgram = 1

// BypassAllConfig is the regbin configuration that bypasses the DSP.
const BypassAllConfig = 0

type options struct {
	log       *slog.Logger
	loader    Loader
	blockOpts []block.Option
}

// Option configures a Device.
type Option func(*options)

// WithLogger sets the logger. The interpreter logs through it too.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithLoader sets the source Init and calibration reloads read files from.
func WithLoader(l Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithBlockOptions passes options to the block interpreter.
func WithBlockOptions(opts ...block.Option) Option {
	return func(o *options) {
		o.blockOpts = append(o.blockOpts, opts...)
	}
}

// Device is a set of amplifiers and their firmware. All methods are safe
// for concurrent use; they serialize on one lock.
type Device struct {
	mu sync.Mutex

	name     string
	rio      regio.RegisterIO
	channels []*block.Channel
	it       *block.Interpreter
	loader   Loader
	log      *slog.Logger

	fw      *firmware.Firmware
	rb      *regbin.Regbin
	fwState FWState

	program int
	config  int
	regConf int

	// defaultCalApplied is set once the default calibration has been
	// applied to every channel.
	defaultCalApplied bool
}

// New creates a Device named name with one channel per address. name is
// the prefix of the firmware file names.
func New(name string, rio regio.RegisterIO, addrs []uint8, opts ...Option) *Device {
	o := options{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	channels := make([]*block.Channel, len(addrs))
	for i, a := range addrs {
		channels[i] = block.NewChannel(a)
	}
	bopts := append([]block.Option{block.WithLogger(o.log)}, o.blockOpts...)

	return &Device{
		name:     name,
		rio:      rio,
		channels: channels,
		it:       block.NewInterpreter(rio, channels, bopts...),
		loader:   o.loader,
		log:      o.log,
	}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// NumChannels returns the number of amplifiers.
func (d *Device) NumChannels() int {
	return len(d.channels)
}

// Channels returns a snapshot of the channel states.
func (d *Device) Channels() []block.Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]block.Channel, len(d.channels))
	for i, c := range d.channels {
		out[i] = *c
	}
	return out
}

// FWState returns the DSP firmware load state.
func (d *Device) FWState() FWState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fwState
}

// Firmware returns the installed DSP firmware catalog, or nil.
func (d *Device) Firmware() *firmware.Firmware {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fw
}

// Regbin returns the installed regbin catalog, or nil.
func (d *Device) Regbin() *regbin.Regbin {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rb
}

// LoadRegbin parses and installs a regbin image. The previous catalog is
// kept when parsing fails. A new catalog forces the next profile selection
// to reload every channel.
func (d *Device) LoadRegbin(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadRegbin(buf)
}

func (d *Device) loadRegbin(buf []byte) error {
	rb, err := regbin.Parse(buf, len(d.channels), regbin.WithLogger(d.log))
	if err != nil {
		return fmt.Errorf("regbin: %w", err)
	}
	d.rb = rb
	d.forgetProfile()
	d.log.Info("regbin installed", "configs", len(rb.Configs), "version", fmt.Sprintf("0x%X", rb.Header.Version))
	return nil
}

// LoadFirmware parses and installs a DSP firmware image. The previous
// catalog is kept when parsing fails; otherwise every channel forgets its
// loaded program and configuration.
func (d *Device) LoadFirmware(buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadFirmware(buf)
}

func (d *Device) loadFirmware(buf []byte) error {
	d.fwState = FWStatePending
	fw, err := firmware.Parse(buf, len(d.channels))
	if err != nil {
		d.fwState = FWStateFail
		return fmt.Errorf("dsp firmware: %w", err)
	}
	d.fw = fw
	d.fwState = FWStateAllOK
	d.forgetProfile()
	d.log.Info("dsp firmware installed", "format", fw.Format.String(),
		"programs", len(fw.Programs), "configurations", len(fw.Configurations))
	return nil
}

// forgetProfile marks every channel as holding no program or configuration
// so the next profile selection writes them again.
func (d *Device) forgetProfile() {
	for _, c := range d.channels {
		c.Program = block.NoIndex
		c.Config = block.NoIndex
	}
}

func (d *Device) channel(ch int) (*block.Channel, error) {
	if ch < 0 || ch >= len(d.channels) {
		return nil, fmt.Errorf("channel %d: %w", ch, regio.ErrNoSuchChannel)
	}
	return d.channels[ch], nil
}
