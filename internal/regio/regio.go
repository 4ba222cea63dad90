// Package regio provides register access to a set of amplifier channels
// sharing one control bus.
//
// Channels are numbered from 0. The channel index equal to the number of
// channels is the broadcast channel: it addresses every amplifier at once
// through the shared global bus address and is valid for writes only.
package regio

import (
	"errors"
	"fmt"
)

// ErrNoSuchChannel is returned for a channel index outside the bus.
var ErrNoSuchChannel = errors.New("no such channel")

// RegisterIO is the register access capability the firmware engine uses.
// Book and page selection is implicit.
type RegisterIO interface {
	Read(ch int, reg Reg) (byte, error)
	Write(ch int, reg Reg, value byte) error
	BulkRead(ch int, reg Reg, n int) ([]byte, error)
	BulkWrite(ch int, reg Reg, data []byte) error
	UpdateBits(ch int, reg Reg, mask, value byte) error
}

// Transport moves raw bytes to and from one device address on the bus.
// Offsets are within the currently selected page.
type Transport interface {
	Write(addr uint8, reg byte, data []byte) error
	Read(addr uint8, reg byte, n int) ([]byte, error)
}

// IOError describes a failed register operation.
type IOError struct {
	Op      string
	Channel int
	Reg     Reg
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s channel %d %s: %v", e.Op, e.Channel, e.Reg, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
