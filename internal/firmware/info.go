package firmware

import (
	"fmt"
	"io"
	"time"
)

// WriteInfo prints a human readable summary of the image.
func (fw *Firmware) WriteInfo(w io.Writer) error {
	h := fw.Header
	p := &infoPrinter{w: w}

	p.printf("Format:          %s\n", fw.Format)
	p.printf("PPC version:     0x%X\n", h.PPCVersion)
	p.printf("FW version:      0x%X\n", h.FWVersion)
	p.printf("Driver version:  0x%X", h.DriverVersion)
	if doc := h.BinFileDocVersion(); doc != 0 {
		p.printf(" (bin file doc 0x%X)", doc)
	}
	p.printf("\n")
	p.printf("Timestamp:       %s\n", time.Unix(int64(h.Timestamp), 0).UTC().Format(time.RFC3339))
	p.printf("DDC name:        %s\n", h.DDCName)
	if fw.Description != "" {
		p.printf("Description:     %s\n", fw.Description)
	}
	p.printf("Device:          %s (%d), family %s\n", DeviceName(int(fw.Device)), fw.Device, DeviceFamilyName)
	p.printf("Channels:        %d\n", fw.NDev)

	p.printf("\nPrograms (%d):\n", len(fw.Programs))
	for i, prog := range fw.Programs {
		p.printf("  [%d] %-32s blocks=%d app_mode=%d pdm_i2s=%d isns_pd=%d vsns_pd=%d power_ldg=%d\n",
			i, prog.Name, len(prog.Data.Blocks), prog.AppMode, prog.PDMI2SMode, prog.ISnsPD, prog.VSnsPD, prog.PowerLDG)
	}

	p.printf("\nConfigurations (%d):\n", len(fw.Configurations))
	for i, c := range fw.Configurations {
		p.printf("  [%d] %-32s program=%d rate=%d devices=0x%02X blocks=%d\n",
			i, c.Name, c.Program, c.SamplingRate, c.Devices, len(c.Data.Blocks))
	}

	if len(fw.Calibrations) > 0 {
		p.printf("\nCalibrations (%d):\n", len(fw.Calibrations))
		for i, c := range fw.Calibrations {
			p.printf("  [%d] %-32s program=%d configuration=%d blocks=%d\n",
				i, c.Name, c.Program, c.Configuration, len(c.Data.Blocks))
		}
	}
	return p.err
}

// infoPrinter remembers the first write error.
type infoPrinter struct {
	w   io.Writer
	err error
}

func (p *infoPrinter) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
