// Package protocol implements the packet format of the UART register
// bridge: a small microcontroller that forwards register reads and writes
// to the amplifiers on its two-wire bus.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Bridge commands
const (
	CmdSync     = 0x08
	CmdGetInfo  = 0x14
	CmdRegRead  = 0x30
	CmdRegWrite = 0x31
)

// Direction byte values
const (
	DirRequest  = 0x00
	DirResponse = 0x01
)

// Transfer limits
const (
	// MaxTransfer is the largest register run one request moves.
	MaxTransfer = 128
)

// DefaultBaudRate is the bridge UART speed.
const DefaultBaudRate = 115200

// Error codes reported by the bridge
const (
	ErrInvalidMessage = 0x05
	ErrFailedToAct    = 0x06
	ErrInvalidCRC     = 0x07
	ErrBusNak         = 0x20
	ErrBusTimeout     = 0x21
	ErrBusArbitration = 0x22
	ErrTooLong        = 0x23
)

// ErrorMessage returns human-readable error message
func ErrorMessage(code byte) string {
	switch code {
	case ErrInvalidMessage:
		return "invalid message"
	case ErrFailedToAct:
		return "failed to act"
	case ErrInvalidCRC:
		return "invalid checksum"
	case ErrBusNak:
		return "device did not acknowledge"
	case ErrBusTimeout:
		return "bus timeout"
	case ErrBusArbitration:
		return "bus arbitration lost"
	case ErrTooLong:
		return "transfer too long"
	default:
		return "unknown error"
	}
}

// Info describes a bridge, as returned by GET_INFO.
type Info struct {
	Version uint32
	BusHz   uint32
	Name    string
}

// ParseInfo parses the GET_INFO response payload: version and bus clock
// (little-endian 32-bit) followed by a NUL terminated name.
func ParseInfo(data []byte) (*Info, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("info response too short: %d bytes", len(data))
	}

	info := &Info{
		Version: binary.LittleEndian.Uint32(data[0:4]),
		BusHz:   binary.LittleEndian.Uint32(data[4:8]),
	}
	name := data[8:]
	for i, b := range name {
		if b == 0 {
			name = name[:i]
			break
		}
	}
	info.Name = string(name)
	return info, nil
}
