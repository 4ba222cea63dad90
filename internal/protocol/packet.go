package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerSize covers direction, command, length and the checksum or value
// word.
const headerSize = 8

// Request is a host to bridge packet.
type Request struct {
	Command  byte
	Data     []byte
	Checksum uint32
}

// Response is a bridge to host packet. Status and Error trail the data on
// the wire.
type Response struct {
	Command byte
	Data    []byte
	Value   uint32
	Status  byte
	Error   byte
}

// NewRequest builds a request and fills in its checksum.
func NewRequest(cmd byte, data []byte) *Request {
	return &Request{Command: cmd, Data: data, Checksum: Checksum(data)}
}

// Checksum is the XOR of all data bytes seeded with 0xEF.
func Checksum(data []byte) uint32 {
	sum := byte(0xEF)
	for _, b := range data {
		sum ^= b
	}
	return uint32(sum)
}

func appendHeader(dst []byte, dir, cmd byte, size int, word uint32) []byte {
	dst = append(dst, dir, cmd)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(size))
	return binary.LittleEndian.AppendUint32(dst, word)
}

// Encode lays the request out as dir, cmd, LE16 length, LE32 checksum,
// data. SLIP framing is applied by the caller.
func (r *Request) Encode() []byte {
	out := appendHeader(make([]byte, 0, headerSize+len(r.Data)), DirRequest, r.Command, len(r.Data), r.Checksum)
	return append(out, r.Data...)
}

// Encode lays the response out as dir, cmd, LE16 length, LE32 value, data,
// status, error.
func (r *Response) Encode() []byte {
	out := appendHeader(make([]byte, 0, headerSize+len(r.Data)+2), DirResponse, r.Command, len(r.Data)+2, r.Value)
	out = append(out, r.Data...)
	return append(out, r.Status, r.Error)
}

// splitPacket checks the direction byte and returns the command, the
// header word and the declared payload.
func splitPacket(data []byte, dir byte, minLen int) (cmd byte, word uint32, payload []byte, err error) {
	if len(data) < minLen {
		return 0, 0, nil, fmt.Errorf("packet too short: %d bytes", len(data))
	}
	if data[0] != dir {
		return 0, 0, nil, fmt.Errorf("invalid direction byte: 0x%02X", data[0])
	}
	size := int(binary.LittleEndian.Uint16(data[2:4]))
	if size > len(data)-headerSize {
		return 0, 0, nil, fmt.Errorf("data size mismatch: expected %d, have %d", size, len(data)-headerSize)
	}
	return data[1], binary.LittleEndian.Uint32(data[4:8]), data[headerSize : headerSize+size], nil
}

// DecodeRequest parses an unframed request and verifies its checksum.
// Trailing bytes past the declared length are rejected.
func DecodeRequest(data []byte) (*Request, error) {
	cmd, sum, payload, err := splitPacket(data, DirRequest, headerSize)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if len(payload) != len(data)-headerSize {
		return nil, fmt.Errorf("request: %d trailing bytes", len(data)-headerSize-len(payload))
	}
	if want := Checksum(payload); want != sum {
		return nil, fmt.Errorf("request: checksum 0x%02X, want 0x%02X", sum, want)
	}
	return &Request{Command: cmd, Data: payload, Checksum: sum}, nil
}

// DecodeResponse parses an unframed response. A payload shorter than the
// status pair is returned as data with zero status.
func DecodeResponse(data []byte) (*Response, error) {
	cmd, value, payload, err := splitPacket(data, DirResponse, headerSize+2)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	resp := &Response{Command: cmd, Value: value}
	if n := len(payload); n >= 2 {
		resp.Data = payload[:n-2]
		resp.Status, resp.Error = payload[n-2], payload[n-1]
	} else if n > 0 {
		resp.Data = payload
	}
	return resp, nil
}

// IsSuccess reports a zero status and error code.
func (r *Response) IsSuccess() bool {
	return r.Status == 0 && r.Error == 0
}

// ErrorString describes a failed response, or returns "" on success.
func (r *Response) ErrorString() string {
	if r.IsSuccess() {
		return ""
	}
	return fmt.Sprintf("status=0x%02X error=0x%02X (%s)", r.Status, r.Error, ErrorMessage(r.Error))
}

// syncPreamble opens the SYNC payload; 32 bytes of 0x55 follow it so the
// bridge can lock onto the baud rate.
var syncPreamble = []byte{0x07, 0x07, 0x12, 0x20}

// SyncData returns the SYNC payload.
func SyncData() []byte {
	return append(append([]byte(nil), syncPreamble...), bytes.Repeat([]byte{0x55}, 32)...)
}

// RegReadData is the REG_READ payload: device address, first register,
// count.
func RegReadData(addr, reg byte, n int) []byte {
	return []byte{addr, reg, byte(n)}
}

// RegWriteData is the REG_WRITE payload: device address, first register,
// then the bytes to write.
func RegWriteData(addr, reg byte, data []byte) []byte {
	return append([]byte{addr, reg}, data...)
}
