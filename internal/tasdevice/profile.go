package tasdevice

import (
	"context"
	"fmt"

	"github.com/bigbag/tasfw/internal/regbin"
)

// Status bits returned by SelectTuningProfile. Bits 0..3 are the active
// channel mask of the regbin configuration.
const statusFailShift = 4

// SelectTuningProfile loads program prog and configuration conf on the
// channels regbin configuration regConf marks active. The returned status
// is the active mask with bit i+4 set for every channel whose
// configuration load failed. Invalid indices are rejected without
// changing any state.
func (d *Device) SelectTuningProfile(ctx context.Context, prog, conf, regConf int) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectTuningProfile(ctx, prog, conf, regConf)
}

func (d *Device) selectTuningProfile(ctx context.Context, prog, conf, regConf int) (uint32, error) {
	fw := d.fw
	if fw == nil {
		return 0, ErrNoFirmware
	}
	if conf < 0 || conf >= len(fw.Configurations) {
		return 0, fmt.Errorf("configuration %d of %d: %w", conf, len(fw.Configurations), ErrConfigurationRange)
	}
	if prog < 0 || prog >= len(fw.Programs) || prog == TuningProgram {
		return 0, fmt.Errorf("program %d of %d: %w", prog, len(fw.Programs), ErrProgramRange)
	}
	if d.rb == nil {
		return 0, ErrNoRegbin
	}
	if regConf < 0 || regConf >= len(d.rb.Configs) {
		return 0, fmt.Errorf("regbin configuration %d of %d: %w", regConf, len(d.rb.Configs), ErrRegConfRange)
	}
	d.log.Info("select tuning profile", "program", prog, "configuration", conf, "regconf", regConf)

	d.program = prog
	d.config = conf
	active := d.rb.Configs[regConf].ActiveDev

	loading := 0
	for i, c := range d.channels {
		if active&(1<<i) != 0 {
			if c.Program != prog {
				c.Config = -1
				c.Loading = true
				loading++
			}
		} else {
			c.Loading = false
		}
		c.LoadErr = false
	}

	if loading > 0 {
		if err := d.it.ExecData(&fw.Programs[prog].Data, fw.Format, fw.Header.PPCVersion); err != nil {
			d.log.Error("program load aborted", "program", prog, "error", err)
			d.markLoadingFailed()
		}
		for i, c := range d.channels {
			if c.LoadErr || !c.Loading {
				continue
			}
			if err := d.replayCalibration(i); err != nil {
				d.log.Warn("calibration replay failed", "channel", i, "error", err)
			}
			c.Program = prog
		}
	}

	if !d.defaultCalApplied {
		for i := range d.channels {
			if err := d.setCalibration(ctx, i, CalibrationDefault); err != nil {
				d.log.Warn("default calibration failed", "channel", i, "error", err)
			}
		}
		d.defaultCalApplied = true
	}

	loading = 0
	for i, c := range d.channels {
		if c.Config != conf && active&(1<<i) != 0 && !c.LoadErr {
			c.Loading = true
			loading++
		} else {
			c.Loading = false
		}
	}

	var status uint32
	if loading > 0 {
		if err := d.it.ExecData(&fw.Configurations[conf].Data, fw.Format, fw.Header.PPCVersion); err != nil {
			d.log.Error("configuration load aborted", "configuration", conf, "error", err)
			d.markLoadingFailed()
		}
		for i, c := range d.channels {
			if c.LoadErr {
				status |= 1 << (i + statusFailShift)
				continue
			}
			if c.Loading {
				c.Config = conf
				c.DSPBypass = false
			}
		}
	} else {
		d.log.Warn("no channel to load", "regconf", regConf)
	}

	status |= uint32(active)
	d.log.Info("tuning profile loaded", "status", fmt.Sprintf("0x%08X", status))
	return status, nil
}

// markLoadingFailed flags every Loading channel after a malformed stream
// aborted a load.
func (d *Device) markLoadingFailed() {
	for _, c := range d.channels {
		if c.Loading {
			c.LoadErr = true
		}
	}
}

// SelectConfigBlocks runs every block of type t in regbin configuration
// regConf. t must be one of the power sequencing stages.
func (d *Device) SelectConfigBlocks(regConf int, t regbin.BlockType) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectConfigBlocks(regConf, t)
}

func (d *Device) selectConfigBlocks(regConf int, t regbin.BlockType) error {
	cfg, err := d.regbinConfig(regConf)
	if err != nil {
		return err
	}
	if t < regbin.BlockPostPowerUp || t > regbin.BlockPostShutdown {
		return fmt.Errorf("%s: %w", t, ErrBlockType)
	}

	var first error
	for j := range cfg.Blocks {
		b := &cfg.Blocks[j]
		if b.Type != t {
			continue
		}
		d.log.Debug("config block", "regconf", regConf, "type", b.Type.String(), "dev_idx", b.DevIdx)

		lo, hi := 0, len(d.channels)
		if b.DevIdx != 0 {
			lo, hi = int(b.DevIdx)-1, min(int(b.DevIdx), len(d.channels))
		}
		for ch := lo; ch < hi; ch++ {
			d.channels[ch].Loading = true
		}

		n, err := d.it.ExecSubBlocks(b.Data, int(b.Sublocks), b.DevIdx)
		if err != nil {
			d.log.Error("config block aborted", "regconf", regConf, "block", j, "error", err)
			if first == nil {
				first = fmt.Errorf("regbin configuration %d block %d: %w", regConf, j, err)
			}
			continue
		}
		if n != len(b.Data) {
			d.log.Warn("config block size mismatch", "regconf", regConf, "block", j, "consumed", n, "size", len(b.Data))
		}
	}
	return first
}

func (d *Device) regbinConfig(regConf int) (*regbin.ConfigInfo, error) {
	if d.rb == nil {
		return nil, ErrNoRegbin
	}
	if regConf < 0 || regConf >= len(d.rb.Configs) {
		return nil, fmt.Errorf("regbin configuration %d of %d: %w", regConf, len(d.rb.Configs), ErrRegConfRange)
	}
	return &d.rb.Configs[regConf], nil
}

// PowerUpRegConf runs the PRE_POWER_UP blocks of the channel's regbin
// configuration on that channel alone. Powered-off channels are skipped.
func (d *Device) PowerUpRegConf(ch int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.channel(ch)
	if err != nil {
		return err
	}
	if !c.PowerOn {
		d.log.Info("channel powered off", "channel", ch)
		return nil
	}
	cfg, err := d.regbinConfig(c.RegConf)
	if err != nil {
		return err
	}

	for _, other := range d.channels {
		other.Loading = false
		other.LoadErr = false
	}

	matched := false
	for j := range cfg.Blocks {
		b := &cfg.Blocks[j]
		if b.Type != regbin.BlockPrePowerUp {
			continue
		}
		if b.DevIdx != 0 && int(b.DevIdx)-1 != ch {
			continue
		}

		matched = true
		c.Loading = true
		n, err := d.it.ExecSubBlocks(b.Data, int(b.Sublocks), byte(ch+1))
		if err != nil {
			return fmt.Errorf("regbin configuration %d block %d: %w", c.RegConf, j, err)
		}
		if n != len(b.Data) {
			d.log.Warn("power-up block size mismatch", "channel", ch, "block", j, "consumed", n, "size", len(b.Data))
		}
	}
	if !matched {
		d.log.Info("channel not in configuration", "channel", ch, "regconf", c.RegConf)
	}
	return nil
}

// Power runs the power sequencing blocks. Powering on with a non-zero
// program applies the bypass configuration; with program 0 it reloads the
// current tuning profile first.
func (d *Device) Power(ctx context.Context, on bool) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range d.channels {
		c.PowerOn = on
	}
	if !on {
		return 0, d.selectConfigBlocks(d.regConf, regbin.BlockPreShutdown)
	}

	var status uint32
	cfg := d.regConf
	if d.program != 0 {
		cfg = BypassAllConfig
	} else if d.fw != nil {
		var err error
		status, err = d.selectTuningProfile(ctx, d.program, d.config, d.regConf)
		if err != nil {
			return 0, err
		}
	} else {
		d.log.Warn("power on without dsp firmware")
	}
	return status, d.selectConfigBlocks(cfg, regbin.BlockPrePowerUp)
}

// SetProgram sets the program the next power-up loads.
func (d *Device) SetProgram(prog int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fw == nil {
		return ErrNoFirmware
	}
	if prog < 0 || prog >= len(d.fw.Programs) {
		return fmt.Errorf("program %d of %d: %w", prog, len(d.fw.Programs), ErrProgramRange)
	}
	d.program = prog
	return nil
}

// SetConfiguration sets the configuration the next power-up loads.
func (d *Device) SetConfiguration(conf int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fw == nil {
		return ErrNoFirmware
	}
	if conf < 0 || conf >= len(d.fw.Configurations) {
		return fmt.Errorf("configuration %d of %d: %w", conf, len(d.fw.Configurations), ErrConfigurationRange)
	}
	d.config = conf
	return nil
}

// SetRegConf sets the regbin profile of the device and every channel.
func (d *Device) SetRegConf(regConf int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.regbinConfig(regConf); err != nil {
		return err
	}
	d.regConf = regConf
	for _, c := range d.channels {
		c.RegConf = regConf
	}
	return nil
}

// Profile returns the current program, configuration and regbin profile.
func (d *Device) Profile() (prog, conf, regConf int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.program, d.config, d.regConf
}
