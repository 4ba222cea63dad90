package tasdevice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/bigbag/tasfw/internal/firmware"
)

// SetCalibration selectors.
const (
	// CalibrationReload forces the calibration file to be read again.
	CalibrationReload = 0xFF
	// CalibrationDefault reads the calibration file only if none is loaded.
	CalibrationDefault = 0x100
)

// LoadCalibration parses buf as the calibration image of channel ch and
// installs it, replaying it at once if the channel is Loading. On failure
// the channel keeps its previous calibration.
func (d *Device) LoadCalibration(ch int, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, err := d.channel(ch)
	if err != nil {
		return err
	}
	if err := d.installCalibration(ch, buf); err != nil {
		return err
	}
	if c.Loading {
		return d.replayCalibration(ch)
	}
	return nil
}

func (d *Device) installCalibration(ch int, buf []byte) error {
	cal, err := firmware.ParseCalibration(buf)
	if err != nil {
		return fmt.Errorf("channel %d calibration: %w", ch, err)
	}
	c := d.channels[ch]
	c.Calibration = cal
	c.CalLoaded = true
	d.log.Info("calibration installed", "channel", ch, "name", cal.Calibrations[0].Name)
	return nil
}

// loadCalibrationFile reads and installs the calibration file of channel
// ch through the loader.
func (d *Device) loadCalibrationFile(ctx context.Context, ch int) error {
	if d.loader == nil {
		return ErrNoLoader
	}
	name := CalibrationFileName(d.name, d.channels[ch].Addr)
	buf, err := d.loader.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return d.installCalibration(ch, buf)
}

func (d *Device) replayCalibration(ch int) error {
	cal := d.channels[ch].Calibration
	if cal == nil || len(cal.Calibrations) == 0 {
		d.log.Debug("no calibration data", "channel", ch)
		return nil
	}
	return d.it.ExecCalibration(ch, &cal.Calibrations[0].Data)
}

// SetCalibration applies calibration n to channel ch. CalibrationReload,
// or CalibrationDefault on a channel without calibration, first reads the
// calibration file again. A missing file drops the calibration; a file that
// fails to load or parse leaves the previous one in place.
func (d *Device) SetCalibration(ctx context.Context, ch, n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.channel(ch); err != nil {
		return err
	}
	return d.setCalibration(ctx, ch, n)
}

func (d *Device) setCalibration(ctx context.Context, ch, n int) error {
	if d.fw == nil || len(d.fw.Programs) == 0 || len(d.fw.Configurations) == 0 {
		d.log.Warn("calibration skipped, firmware not loaded", "channel", ch)
		return nil
	}

	c := d.channels[ch]
	if n == CalibrationReload || (n == CalibrationDefault && !c.CalLoaded) {
		err := d.loadCalibrationFile(ctx, ch)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			c.Calibration = nil
			c.CalLoaded = false
			d.log.Warn("calibration file missing", "channel", ch, "error", err)
		case err != nil:
			d.log.Warn("calibration load failed, keeping previous", "channel", ch, "error", err)
		}
	}

	c.Loading = true
	c.LoadErr = false
	if c.Calibration == nil {
		d.log.Info("no calibrated data", "channel", ch)
		return nil
	}
	return d.replayCalibration(ch)
}
