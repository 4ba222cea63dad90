package firmware

import (
	"bytes"

	"github.com/pkg/errors"
)

// Magic is the image signature.
var Magic = []byte{0x35, 0x35, 0x35, 0x32}

func parseFixedHeader(r *reader) (FixedHeader, error) {
	var h FixedHeader

	if err := r.need(len(Magic)); err != nil {
		return h, errors.Wrap(err, "magic")
	}
	if !bytes.Equal(r.buf[:len(Magic)], Magic) {
		return h, errors.Wrapf(ErrBadMagic, "% X", r.buf[:len(Magic)])
	}

	fields := []struct {
		name string
		dst  *uint32
	}{
		{"magic", &h.Magic},
		{"size", &h.Size},
		{"checksum", &h.Checksum},
		{"PPC version", &h.PPCVersion},
		{"FW version", &h.FWVersion},
		{"driver version", &h.DriverVersion},
		{"timestamp", &h.Timestamp},
	}
	for _, f := range fields {
		v, err := r.u32()
		if err != nil {
			return h, errors.Wrap(err, f.name)
		}
		*f.dst = v
		if f.dst == &h.Size && int(v) != len(r.buf) {
			return h, errors.Wrapf(ErrSizeMismatch, "header says %d bytes, file has %d", v, len(r.buf))
		}
	}

	name, err := r.name()
	if err != nil {
		return h, errors.Wrap(err, "DDC name")
	}
	h.DDCName = name
	return h, nil
}

// selectFormat picks the container layout from the driver and PPC
// versions.
func selectFormat(h FixedHeader) (Format, error) {
	switch h.DriverVersion {
	case 0x301, 0x302, 0x502:
		return FormatKernel, nil
	case 0x202, 0x400:
		return FormatLegacy, nil
	case 0x100:
		if h.PPCVersion >= PPC3Version {
			return FormatKernel, nil
		}
		if h.PPCVersion == 0 {
			return FormatLegacy, nil
		}
	}
	return 0, &VersionError{Driver: h.DriverVersion, PPC: h.PPCVersion}
}

// checkDevice validates the family/device pair and returns the channel
// count the device drives.
func checkDevice(family, device uint32) (int, error) {
	if family != 0 {
		return 0, errors.Wrapf(ErrNotTASDevice, "family %d", family)
	}
	if !validDevice(device) {
		return 0, errors.Wrapf(ErrUnsupportedDevice, "device %d", device)
	}
	return deviceChannels[device], nil
}
