package firmware

import "github.com/pkg/errors"

// Parse decodes a DSP firmware image for a board with ndev amplifiers.
// It never returns a partial catalog.
func Parse(buf []byte, ndev int) (*Firmware, error) {
	r := &reader{buf: buf}

	hdr, err := parseFixedHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, "header")
	}
	format, err := selectFormat(hdr)
	if err != nil {
		return nil, err
	}

	fw := &Firmware{Header: hdr, Format: format}
	if format == FormatKernel {
		err = parseKernel(r, fw, ndev)
	} else {
		err = parseLegacy(r, fw, ndev)
	}
	if err != nil {
		return nil, err
	}
	return fw, nil
}

func parseLegacy(r *reader, fw *Firmware, ndev int) error {
	p := &legacyParser{r: r, checksums: fw.Header.DriverVersion >= ChecksumDriverVersion}

	if err := p.variableHeader(fw); err != nil {
		return errors.Wrap(err, "variable header")
	}
	if fw.NDev != ndev {
		return &ChannelCountError{Device: int(fw.Device), Got: fw.NDev, Want: ndev}
	}

	var err error
	if fw.Programs, err = p.programs(); err != nil {
		return err
	}
	fw.Configurations, err = p.configurations()
	return err
}

func parseKernel(r *reader, fw *Firmware, ndev int) error {
	p := &kernelParser{r: r}

	if err := p.variableHeader(fw, ndev); err != nil {
		return errors.Wrap(err, "variable header")
	}
	if err := p.programs(fw.Programs); err != nil {
		return err
	}
	return p.configurations(fw.Configurations)
}

// ParseCalibration decodes a per-channel calibration image. Calibration
// images always use the legacy layout and describe exactly one device.
func ParseCalibration(buf []byte) (*Firmware, error) {
	r := &reader{buf: buf}

	hdr, err := parseFixedHeader(r)
	if err != nil {
		return nil, errors.Wrap(err, "header")
	}

	fw := &Firmware{Header: hdr, Format: FormatLegacy}
	p := &legacyParser{r: r, checksums: hdr.DriverVersion >= ChecksumDriverVersion}
	if err := p.variableHeader(fw); err != nil {
		return nil, errors.Wrap(err, "variable header")
	}
	if fw.NDev != 1 {
		return nil, errors.Wrapf(ErrCalibrationDeviceCount, "device %d (%s) has %d channels",
			fw.Device, DeviceName(int(fw.Device)), fw.NDev)
	}

	if fw.Programs, err = p.programs(); err != nil {
		return nil, err
	}
	if fw.Configurations, err = p.configurations(); err != nil {
		return nil, err
	}
	if fw.Calibrations, err = p.calibrations(); err != nil {
		return nil, err
	}
	return fw, nil
}
