package firmware

// MaxDevice is the size of the device table. Index 6 is reserved.
const MaxDevice = 14

const reservedDevice = 6

var deviceChannels = [MaxDevice]int{1, 2, 1, 2, 1, 1, 0, 2, 4, 3, 1, 2, 3, 4}

var deviceNames = [MaxDevice]string{
	"TAS2555",
	"TAS2555 Stereo",
	"TAS2557 Mono",
	"TAS2557 Dual Mono",
	"TAS2559",
	"TAS2563",
	"",
	"TAS2563 Dual Mono",
	"TAS2563 Quad",
	"TAS2563 2.1",
	"TAS2781",
	"TAS2781 Stereo",
	"TAS2781 2.1",
	"TAS2781 Quad",
}

// DeviceFamilyName is the only device family the images describe.
const DeviceFamilyName = "TAS Devices"

// DeviceName returns the product name of a device index.
func DeviceName(idx int) string {
	if idx < 0 || idx >= MaxDevice || deviceNames[idx] == "" {
		return "unknown"
	}
	return deviceNames[idx]
}

// DeviceChannels returns how many amplifiers a device index drives, or 0
// for unknown and reserved indices.
func DeviceChannels(idx int) int {
	if idx < 0 || idx >= MaxDevice {
		return 0
	}
	return deviceChannels[idx]
}

func validDevice(idx uint32) bool {
	return idx < MaxDevice && idx != reservedDevice
}
