package firmware

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrTruncated                   = errors.New("truncated file")
	ErrSizeMismatch                = errors.New("file size mismatch")
	ErrBadMagic                    = errors.New("bad magic number")
	ErrUnsupportedVersion          = errors.New("unsupported driver version")
	ErrUnsupportedDevice           = errors.New("unsupported device")
	ErrNotTASDevice                = errors.New("not a TAS device family")
	ErrChannelCountMismatch        = errors.New("channel count mismatch")
	ErrUnsupportedCalibrationCount = errors.New("unsupported calibration count")
	ErrCalibrationDeviceCount      = errors.New("calibration file must describe one device")
	ErrProgramCount                = errors.New("program count out of range")
	ErrConfigurationCount          = errors.New("configuration count out of range")
)

// ChannelCountError reports a firmware built for a different number of
// amplifiers than the board has.
type ChannelCountError struct {
	Device int
	Got    int
	Want   int
}

func (e *ChannelCountError) Error() string {
	return fmt.Sprintf("device %d (%s) has %d channels, board has %d", e.Device, DeviceName(e.Device), e.Got, e.Want)
}

func (e *ChannelCountError) Is(target error) bool {
	return target == ErrChannelCountMismatch
}

// VersionError reports a driver/PPC version pair no format handles.
type VersionError struct {
	Driver uint32
	PPC    uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("driver version 0x%X with PPC version 0x%X", e.Driver, e.PPC)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}
