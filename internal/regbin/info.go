package regbin

import (
	"fmt"
	"io"
)

// WriteInfo prints the header and the block layout of every
// configuration.
func (rb *Regbin) WriteInfo(w io.Writer) error {
	h := rb.Header
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Image size:      %d\n", h.ImageSize)
	printf("Checksum:        0x%08X\n", h.Checksum)
	printf("Version:         0x%X\n", h.Version)
	printf("Driver version:  0x%X\n", h.DriverVersion)
	printf("Timestamp:       %d\n", h.Timestamp)
	printf("Platform type:   %d\n", h.PlatformType)
	printf("Device family:   %d\n", h.DeviceFamily)
	printf("Channels:        %d\n", h.NDev)
	printf("Devices:        ")
	for i := 0; i < int(h.NDev) && i < MaxDevices; i++ {
		printf(" 0x%02X", h.Devices[i])
	}
	printf("\n")

	printf("\nConfigurations (%d):\n", len(rb.Configs))
	for i, ci := range rb.Configs {
		printf("  [%d] %q active_dev=0x%02X blocks=%d/%d\n", i, ci.Name, ci.ActiveDev, len(ci.Blocks), ci.NBlocks)
		for j, b := range ci.Blocks {
			printf("      block %d: %-14s dev_idx=%d size=%d sublocks=%d yram_checksum=0x%04X\n",
				j, b.Type, b.DevIdx, b.Size, b.Sublocks, b.YRAMChecksum)
		}
	}
	return err
}
