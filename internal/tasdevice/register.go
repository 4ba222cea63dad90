package tasdevice

import (
	"errors"

	"github.com/bigbag/tasfw/internal/regio"
)

// ReadRegister reads one register of channel ch.
func (d *Device) ReadRegister(ch int, reg regio.Reg) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rio.Read(ch, reg)
}

// WriteRegister writes one register of channel ch. The broadcast channel
// (NumChannels) writes every amplifier.
func (d *Device) WriteRegister(ch int, reg regio.Reg, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rio.Write(ch, reg, value)
}

// Interrupt is one interrupt latch register value.
type Interrupt struct {
	Channel int
	Reg     regio.Reg
	Value   byte
}

// InterruptStatus reads the interrupt latch registers of every channel.
// Unreadable registers are left out of the result and reported in the
// joined error.
func (d *Device) InterruptStatus() ([]Interrupt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		out  []Interrupt
		errs []error
	)
	for ch := range d.channels {
		for _, reg := range regio.InterruptLatches {
			v, err := d.rio.Read(ch, reg)
			if err != nil {
				d.log.Error("interrupt latch read failed", "channel", ch, "reg", reg.String(), "error", err)
				errs = append(errs, err)
				continue
			}
			d.log.Debug("interrupt latch", "channel", ch, "reg", reg.String(), "value", v)
			out = append(out, Interrupt{Channel: ch, Reg: reg, Value: v})
		}
	}
	return out, errors.Join(errs...)
}
