// Package i2cbus drives amplifiers on a Linux i2c-dev adapter.
package i2cbus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/davecheney/i2c"
)

// Opener opens a handle for one address. It defaults to i2c.New.
type Opener func(addr uint8, bus int) (Conn, error)

// Conn is an open handle bound to one slave address.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Bus implements regio.Transport on adapter /dev/i2c-N. Each address gets
// its own handle, opened on first use.
type Bus struct {
	mu    sync.Mutex
	bus   int
	open  Opener
	conns map[uint8]Conn
	buf   []byte
}

// Open returns a transport for adapter bus.
func Open(bus int) *Bus {
	return NewWithOpener(bus, func(addr uint8, bus int) (Conn, error) {
		return i2c.New(addr, bus)
	})
}

// NewWithOpener is Open with a custom handle factory.
func NewWithOpener(bus int, open Opener) *Bus {
	return &Bus{bus: bus, open: open, conns: make(map[uint8]Conn)}
}

func (b *Bus) conn(addr uint8) (Conn, error) {
	if c, ok := b.conns[addr]; ok {
		return c, nil
	}
	c, err := b.open(addr, b.bus)
	if err != nil {
		return nil, fmt.Errorf("i2c-%d 0x%02X: %w", b.bus, addr, err)
	}
	b.conns[addr] = c
	return c, nil
}

// Write sends reg followed by data in one transfer.
func (b *Bus) Write(addr uint8, reg byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.conn(addr)
	if err != nil {
		return err
	}
	b.buf = append(append(b.buf[:0], reg), data...)
	if _, err := c.Write(b.buf); err != nil {
		return fmt.Errorf("i2c-%d 0x%02X write 0x%02X: %w", b.bus, addr, reg, err)
	}
	return nil
}

// Read sets the register pointer and reads n bytes.
func (b *Bus) Read(addr uint8, reg byte, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.conn(addr)
	if err != nil {
		return nil, err
	}
	if _, err := c.Write([]byte{reg}); err != nil {
		return nil, fmt.Errorf("i2c-%d 0x%02X select 0x%02X: %w", b.bus, addr, reg, err)
	}
	out := make([]byte, n)
	got, err := c.Read(out)
	if err != nil {
		return nil, fmt.Errorf("i2c-%d 0x%02X read 0x%02X: %w", b.bus, addr, reg, err)
	}
	if got != n {
		return nil, fmt.Errorf("i2c-%d 0x%02X read 0x%02X: short read %d of %d", b.bus, addr, reg, got, n)
	}
	return out, nil
}

// Close releases every handle.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for addr, c := range b.conns {
		errs = append(errs, c.Close())
		delete(b.conns, addr)
	}
	return errors.Join(errs...)
}
