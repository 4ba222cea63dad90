// Package regbin parses register-configuration images ("regbin"). A regbin
// holds a list of configurations, each a list of sub-block encoded blocks
// tagged with a target device and a power sequencing stage.
package regbin

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

var (
	ErrTruncated            = errors.New("truncated file")
	ErrSizeMismatch         = errors.New("file size mismatch")
	ErrVersionTooLow        = errors.New("format version too low")
	ErrChannelCountMismatch = errors.New("channel count mismatch")
)

// Format versions.
const (
	MinVersion  = 0x103
	NameVersion = 0x105
)

// Fixed table sizes.
const (
	MaxDevices = 8
	MaxConfigs = 64
	NameSize   = 64

	// HeaderSize is the byte size of the fixed header.
	HeaderSize = 5*4 + 4 + MaxDevices + 4 + MaxConfigs*4

	blockHeaderSize = 12
)

// BlockType is the power sequencing stage a block belongs to.
type BlockType byte

const (
	BlockCoeff        BlockType = 1
	BlockPostPowerUp  BlockType = 2
	BlockPreShutdown  BlockType = 3
	BlockPrePowerUp   BlockType = 4
	BlockPostShutdown BlockType = 5
)

var blockTypeNames = [...]string{"COEFF", "POST_POWER_UP", "PRE_SHUTDOWN", "PRE_POWER_UP", "POST_SHUTDOWN"}

func (t BlockType) String() string {
	if t >= BlockCoeff && t <= BlockPostShutdown {
		return blockTypeNames[t-1]
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(t))
}

// Header is the fixed-size preamble of a regbin image.
type Header struct {
	ImageSize     uint32
	Checksum      uint32
	Version       uint32
	DriverVersion uint32
	Timestamp     uint32
	PlatformType  byte
	DeviceFamily  byte
	Reserved      byte
	NDev          byte
	Devices       [MaxDevices]byte
	NConfig       uint32
	ConfigSize    [MaxConfigs]uint32
}

// BlockData is one block of a configuration. DevIdx 0 addresses every
// channel, N addresses channel N-1.
type BlockData struct {
	DevIdx       byte
	Type         BlockType
	YRAMChecksum uint16
	Size         uint32
	Sublocks     uint32
	Data         []byte
}

// ConfigInfo is one configuration. NBlocks is the declared block count;
// len(Blocks) is how many were actually present.
type ConfigInfo struct {
	Name      string
	NBlocks   uint32
	ActiveDev uint8
	Blocks    []BlockData
}

// Regbin is a parsed register-configuration catalog.
type Regbin struct {
	Header  Header
	Configs []ConfigInfo
}

type options struct {
	log *slog.Logger
}

// Option configures Parse.
type Option func(*options)

// WithLogger sets the logger used for short-block reports.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Parse decodes a regbin image for a board with ndev amplifiers.
func Parse(buf []byte, ndev int, opts ...Option) (*Regbin, error) {
	o := options{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := parseHeader(buf, ndev)
	if err != nil {
		return nil, err
	}

	rb := &Regbin{Header: h, Configs: make([]ConfigInfo, 0, h.NConfig)}
	off := HeaderSize
	for i := 0; i < int(h.NConfig); i++ {
		size := int(h.ConfigSize[i])
		if off+size > len(buf) {
			return nil, errors.Wrapf(ErrTruncated, "configuration %d: %d bytes at offset %d", i, size, off)
		}
		ci := parseConfig(buf[off:off+size], h.Version, int(h.NDev), o.log.With("config", i))
		rb.Configs = append(rb.Configs, ci)
		off += size
	}
	return rb, nil
}

func parseHeader(buf []byte, ndev int) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, errors.Wrapf(ErrTruncated, "header needs %d bytes, have %d", HeaderSize, len(buf))
	}

	be := binary.BigEndian
	h.ImageSize = be.Uint32(buf[0:])
	if int(h.ImageSize) != len(buf) {
		return h, errors.Wrapf(ErrSizeMismatch, "header says %d bytes, file has %d", h.ImageSize, len(buf))
	}
	h.Checksum = be.Uint32(buf[4:])
	h.Version = be.Uint32(buf[8:])
	if h.Version < MinVersion {
		return h, errors.Wrapf(ErrVersionTooLow, "version 0x%X, need 0x%X", h.Version, MinVersion)
	}
	h.DriverVersion = be.Uint32(buf[12:])
	h.Timestamp = be.Uint32(buf[16:])
	h.PlatformType = buf[20]
	h.DeviceFamily = buf[21]
	h.Reserved = buf[22]
	h.NDev = buf[23]
	if int(h.NDev) != ndev {
		return h, errors.Wrapf(ErrChannelCountMismatch, "regbin has %d channels, board has %d", h.NDev, ndev)
	}
	copy(h.Devices[:], buf[24:24+MaxDevices])
	off := 24 + MaxDevices
	h.NConfig = be.Uint32(buf[off:])
	off += 4

	var total uint64
	for i := range h.ConfigSize {
		h.ConfigSize[i] = be.Uint32(buf[off:])
		total += uint64(h.ConfigSize[i])
		off += 4
	}
	if uint64(h.ImageSize)-total != HeaderSize || total > uint64(h.ImageSize) {
		return h, errors.Wrapf(ErrSizeMismatch, "image %d bytes, configurations %d bytes, header %d bytes",
			h.ImageSize, total, HeaderSize)
	}
	if h.NConfig > MaxConfigs {
		return h, errors.Wrapf(ErrSizeMismatch, "%d configurations, table holds %d", h.NConfig, MaxConfigs)
	}
	return h, nil
}

// parseConfig decodes one configuration. Running out of bytes ends the
// block list early rather than failing the image.
func parseConfig(data []byte, version uint32, ndev int, log *slog.Logger) ConfigInfo {
	var ci ConfigInfo
	off := 0

	if version >= NameVersion {
		if len(data) < NameSize {
			log.Warn("configuration short", "need", NameSize, "have", len(data))
			return ci
		}
		ci.Name = cstr(data[:NameSize])
		off += NameSize
	}
	if off+4 > len(data) {
		log.Warn("configuration short", "need", off+4, "have", len(data))
		return ci
	}
	ci.NBlocks = binary.BigEndian.Uint32(data[off:])
	off += 4

	for i := 0; i < int(ci.NBlocks); i++ {
		if off+blockHeaderSize > len(data) {
			log.Warn("block header short", "block", i, "nblocks", ci.NBlocks, "offset", off)
			break
		}
		b := BlockData{
			DevIdx:       data[off],
			Type:         BlockType(data[off+1]),
			YRAMChecksum: binary.BigEndian.Uint16(data[off+2:]),
			Size:         binary.BigEndian.Uint32(data[off+4:]),
			Sublocks:     binary.BigEndian.Uint32(data[off+8:]),
		}
		off += blockHeaderSize

		if b.Type == BlockPrePowerUp {
			ci.ActiveDev |= activeBits(b.DevIdx, ndev)
		}
		if uint64(off)+uint64(b.Size) > uint64(len(data)) {
			log.Warn("block body short", "block", i, "nblocks", ci.NBlocks, "size", b.Size, "left", len(data)-off)
			break
		}
		b.Data = append([]byte(nil), data[off:off+int(b.Size)]...)
		off += int(b.Size)
		ci.Blocks = append(ci.Blocks, b)
	}
	return ci
}

// activeBits returns the channel bitmask a PRE_POWER_UP block enables.
func activeBits(devIdx byte, ndev int) uint8 {
	if devIdx == 0 {
		return uint8(1<<ndev - 1)
	}
	if devIdx > 8 {
		return 0
	}
	return 1 << (devIdx - 1)
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
