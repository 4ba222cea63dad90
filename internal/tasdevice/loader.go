package tasdevice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Loader returns firmware files by name.
type Loader interface {
	Load(ctx context.Context, name string) ([]byte, error)
}

// DirLoader reads firmware files from a directory.
type DirLoader string

// Load implements Loader.
func (d DirLoader) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(string(d), name))
}

// RegbinFileName returns the regbin file name of a device.
func RegbinFileName(name string) string {
	return name + "_regbin.bin"
}

// DSPFileName returns the DSP firmware file name of a device.
func DSPFileName(name string) string {
	return name + "_dsp.bin"
}

// CalibrationFileName returns the calibration file name of the amplifier
// at addr.
func CalibrationFileName(name string, addr uint8) string {
	return fmt.Sprintf("%s_cal_0x%02x.bin", name, addr)
}

// Init loads the regbin, then the DSP firmware, then every channel's
// calibration. Calibration files are optional. A failed step leaves the
// catalogs of earlier steps installed.
func (d *Device) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loader == nil {
		return ErrNoLoader
	}

	name := RegbinFileName(d.name)
	buf, err := d.loader.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := d.loadRegbin(buf); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	d.fwState = FWStatePending
	name = DSPFileName(d.name)
	buf, err = d.loader.Load(ctx, name)
	if err != nil {
		d.fwState = FWStateFail
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := d.loadFirmware(buf); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	for ch := range d.channels {
		if err := d.loadCalibrationFile(ctx, ch); err != nil {
			d.log.Warn("calibration load failed, playback unaffected", "channel", ch, "error", err)
		}
	}
	return nil
}
