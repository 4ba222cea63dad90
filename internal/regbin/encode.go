package regbin

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Encode serializes rb. The image size, configuration count and
// configuration size table are computed; the remaining header fields are
// taken from rb.Header. NBlocks is written as len(Blocks).
func Encode(rb *Regbin) ([]byte, error) {
	if len(rb.Configs) > MaxConfigs {
		return nil, errors.Errorf("%d configurations, table holds %d", len(rb.Configs), MaxConfigs)
	}

	h := rb.Header
	configs := make([][]byte, len(rb.Configs))
	var total int
	for i, ci := range rb.Configs {
		data, err := encodeConfig(ci, h.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "configuration %d", i)
		}
		configs[i] = data
		total += len(data)
	}

	be := binary.BigEndian
	out := make([]byte, 0, HeaderSize+total)
	out = be.AppendUint32(out, uint32(HeaderSize+total))
	out = be.AppendUint32(out, h.Checksum)
	out = be.AppendUint32(out, h.Version)
	out = be.AppendUint32(out, h.DriverVersion)
	out = be.AppendUint32(out, h.Timestamp)
	out = append(out, h.PlatformType, h.DeviceFamily, h.Reserved, h.NDev)
	out = append(out, h.Devices[:]...)
	out = be.AppendUint32(out, uint32(len(configs)))
	for i := 0; i < MaxConfigs; i++ {
		var size uint32
		if i < len(configs) {
			size = uint32(len(configs[i]))
		}
		out = be.AppendUint32(out, size)
	}
	for _, c := range configs {
		out = append(out, c...)
	}
	return out, nil
}

func encodeConfig(ci ConfigInfo, version uint32) ([]byte, error) {
	be := binary.BigEndian
	var out []byte

	if version >= NameVersion {
		if len(ci.Name) > NameSize {
			return nil, errors.Errorf("name %q longer than %d bytes", ci.Name, NameSize)
		}
		var name [NameSize]byte
		copy(name[:], ci.Name)
		out = append(out, name[:]...)
	}
	out = be.AppendUint32(out, uint32(len(ci.Blocks)))
	for _, b := range ci.Blocks {
		out = append(out, b.DevIdx, byte(b.Type))
		out = be.AppendUint16(out, b.YRAMChecksum)
		out = be.AppendUint32(out, uint32(len(b.Data)))
		out = be.AppendUint32(out, b.Sublocks)
		out = append(out, b.Data...)
	}
	return out, nil
}
