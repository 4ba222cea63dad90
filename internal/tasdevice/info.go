package tasdevice

import (
	"fmt"
	"io"
)

// WriteInfo writes the firmware state and the per-channel state.
func (d *Device) WriteInfo(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintf(w, "Device:        %s (%d channels)\n", d.name, len(d.channels)); err != nil {
		return err
	}
	fmt.Fprintf(w, "DSP firmware:  %s\n", d.fwState)
	if d.fw != nil {
		fmt.Fprintf(w, "Program:       %d", d.program)
		if d.program < len(d.fw.Programs) {
			fmt.Fprintf(w, " (%s)", d.fw.Programs[d.program].Name)
		}
		fmt.Fprintf(w, "\nConfiguration: %d", d.config)
		if d.config < len(d.fw.Configurations) {
			fmt.Fprintf(w, " (%s)", d.fw.Configurations[d.config].Name)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Regbin config: %d", d.regConf)
	if d.rb != nil && d.regConf < len(d.rb.Configs) {
		fmt.Fprintf(w, " (%s)", d.rb.Configs[d.regConf].Name)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "CH  ADDR  PROG  CONF  REGCONF  POWER  CAL  BYPASS  LOADERR  ERRCODE")
	for i, c := range d.channels {
		_, err := fmt.Fprintf(w, "%-3d 0x%02X  %4d  %4d  %7d  %-5t  %-3t  %-6t  %-7t  0x%X\n",
			i, c.Addr, c.Program, c.Config, c.RegConf, c.PowerOn, c.CalLoaded, c.DSPBypass, c.LoadErr, c.ErrCode)
		if err != nil {
			return err
		}
	}
	return nil
}
