// Package firmware parses TAS2781-family DSP firmware images and
// per-channel calibration images into program, configuration and
// calibration catalogs.
//
// Two container layouts exist. The legacy ("git") layout is produced by
// older PPC tool chains and carries variable-length descriptions and
// quad-encoded command streams. The kernel layout is produced by PPC3 and
// carries fixed size tables and sub-block encoded streams. Both share the
// fixed header.
package firmware

// Format selects the container layout and the block execution strategy.
type Format int

const (
	FormatLegacy Format = iota
	FormatKernel
)

func (f Format) String() string {
	if f == FormatKernel {
		return "Kernel"
	}
	return "Git"
}

// PPC3Version is the first PPC tool chain version using the 1X block
// type codes.
const PPC3Version = 0x4100

// ChecksumDriverVersion is the first legacy driver version whose blocks
// carry checksum bytes.
const ChecksumDriverVersion = 0x200

// Legacy block type codes.
const (
	MainAllDevices = 0x0d
	MainDeviceA    = 0x01
	MainDeviceB    = 0x08
	MainDeviceC    = 0x10
	MainDeviceD    = 0x14
	CoeffDeviceA   = 0x03
	CoeffDeviceB   = 0x0a
	CoeffDeviceC   = 0x11
	CoeffDeviceD   = 0x15
	PreDeviceA     = 0x04
	PreDeviceB     = 0x0b
	PreDeviceC     = 0x12
	PreDeviceD     = 0x16
)

// PPC3 block type codes.
const (
	MainAllDevices1X = 0x01
	MainDeviceA1X    = 0x02
	MainDeviceB1X    = 0x03
	MainDeviceC1X    = 0x04
	MainDeviceD1X    = 0x05
	CoeffDeviceA1X   = 0x12
	CoeffDeviceB1X   = 0x13
	CoeffDeviceC1X   = 0x14
	CoeffDeviceD1X   = 0x15
	PreDeviceA1X     = 0x22
	PreDeviceB1X     = 0x23
	PreDeviceC1X     = 0x24
	PreDeviceD1X     = 0x25
)

// IsMainBlock reports whether a legacy block type carries program code.
func IsMainBlock(t uint32) bool {
	switch t {
	case MainAllDevices, MainDeviceA, MainDeviceB, MainDeviceC, MainDeviceD:
		return true
	}
	return false
}

// FixedHeader is the header shared by every image.
type FixedHeader struct {
	Magic         uint32
	Size          uint32
	Checksum      uint32
	PPCVersion    uint32
	FWVersion     uint32
	DriverVersion uint32
	Timestamp     uint32
	DDCName       string
}

// BinFileDocVersion maps the driver version to the bin-file format
// document revision, or 0 if unknown.
func (h FixedHeader) BinFileDocVersion() uint32 {
	for _, v := range binFileDocVersions {
		if v[1] == h.DriverVersion {
			return v[0]
		}
	}
	return 0
}

var binFileDocVersions = [][2]uint32{
	{0x100, 0x100},
	{0x110, 0x200},
	{0x200, 0x300},
	{0x210, 0x310},
	{0x230, 0x320},
	{0x300, 0x400},
}

// Block is one executable unit. Legacy blocks use Commands; kernel blocks
// use Size and Sublocks.
type Block struct {
	Type        uint32
	PChkPresent bool
	PChk        byte
	YChkPresent bool
	YChk        byte
	Commands    uint32
	Size        uint32
	Sublocks    uint32
	Data        []byte
}

// Data is a named, ordered list of blocks.
type Data struct {
	Name        string
	Description string
	Blocks      []Block
}

type Program struct {
	Name        string
	Description string
	AppMode     byte
	PDMI2SMode  byte
	ISnsPD      byte
	VSnsPD      byte
	PowerLDG    byte
	Size        uint32
	Data        Data
}

type Configuration struct {
	Name         string
	Description  string
	Orientation  byte
	Devices      byte
	Program      uint16
	SamplingRate uint32
	PLLSrc       uint16
	PLLSrcRate   uint32
	FsRate       uint16
	Size         uint32
	Data         Data
}

type Calibration struct {
	Name          string
	Description   string
	Program       byte
	Configuration byte
	Data          Data
}

// Firmware is a parsed image. It is never modified after Parse returns.
type Firmware struct {
	Header         FixedHeader
	Description    string
	DeviceFamily   uint32
	Device         uint32
	NDev           int
	Format         Format
	Programs       []Program
	Configurations []Configuration
	Calibrations   []Calibration
}
