// Package memio is an in-memory register file that behaves like a set of
// amplifiers on one bus. It backs dry runs and tests.
package memio

import (
	"errors"
	"fmt"

	"github.com/bigbag/tasfw/internal/regio"
)

// ErrNoDevice is returned for an address no chip answers on.
var ErrNoDevice = errors.New("no device at address")

// Op is one recorded transport transaction.
type Op struct {
	Write bool
	Addr  uint8
	Reg   byte
	Data  []byte
}

type chip struct {
	book     byte
	page     byte
	checksum byte
	regs     map[regio.Reg]byte
}

// Memory simulates chips at fixed addresses plus an optional global
// address that fans writes out to every chip.
type Memory struct {
	chips  map[uint8]*chip
	order  []uint8
	global uint8
	hasGlb bool

	// Fault, when set, is consulted before every transaction. A non-nil
	// return fails the transaction without side effects.
	Fault func(op Op) error

	// Ops records every successful transaction when Record is true.
	Record bool
	Ops    []Op
}

// New creates a register file with one chip per address.
func New(addrs ...uint8) *Memory {
	m := &Memory{chips: make(map[uint8]*chip)}
	for _, a := range addrs {
		m.chips[a] = &chip{regs: make(map[regio.Reg]byte)}
		m.order = append(m.order, a)
	}
	return m
}

// SetGlobal enables the broadcast address.
func (m *Memory) SetGlobal(addr uint8) {
	m.global = addr
	m.hasGlb = true
}

func (m *Memory) targets(addr uint8) ([]*chip, error) {
	if m.hasGlb && addr == m.global {
		out := make([]*chip, 0, len(m.order))
		for _, a := range m.order {
			out = append(out, m.chips[a])
		}
		return out, nil
	}
	c, ok := m.chips[addr]
	if !ok {
		return nil, fmt.Errorf("0x%02X: %w", addr, ErrNoDevice)
	}
	return []*chip{c}, nil
}

// Write implements regio.Transport.
func (m *Memory) Write(addr uint8, reg byte, data []byte) error {
	op := Op{Write: true, Addr: addr, Reg: reg, Data: append([]byte(nil), data...)}
	if m.Fault != nil {
		if err := m.Fault(op); err != nil {
			return err
		}
	}
	chips, err := m.targets(addr)
	if err != nil {
		return err
	}
	for _, c := range chips {
		for i, v := range data {
			c.store(reg+byte(i), v)
		}
	}
	if m.Record {
		m.Ops = append(m.Ops, op)
	}
	return nil
}

// Read implements regio.Transport. Reads from the global address fail.
func (m *Memory) Read(addr uint8, reg byte, n int) ([]byte, error) {
	op := Op{Addr: addr, Reg: reg}
	if m.Fault != nil {
		if err := m.Fault(op); err != nil {
			return nil, err
		}
	}
	c, ok := m.chips[addr]
	if !ok {
		return nil, fmt.Errorf("0x%02X: %w", addr, ErrNoDevice)
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = c.load(reg + byte(i))
	}
	if m.Record {
		op.Data = append([]byte(nil), out...)
		m.Ops = append(m.Ops, op)
	}
	return out, nil
}

// Peek returns a register value without touching the page state.
func (m *Memory) Peek(addr uint8, reg regio.Reg) byte {
	c, ok := m.chips[addr]
	if !ok {
		return 0
	}
	if reg == regio.RegI2CChecksum {
		return c.checksum
	}
	return c.regs[reg]
}

// Poke sets a register value without counting it in the checksum.
func (m *Memory) Poke(addr uint8, reg regio.Reg, v byte) {
	if c, ok := m.chips[addr]; ok {
		c.regs[reg] = v
	}
}

// Selected reports the book and page a chip currently has selected.
func (m *Memory) Selected(addr uint8) (book, page byte) {
	if c, ok := m.chips[addr]; ok {
		return c.book, c.page
	}
	return 0, 0
}

// The checksum register accumulates the bytes of every data write. Writing
// it directly sets the running value.
func (c *chip) store(off byte, v byte) {
	switch {
	case off == regio.PageSelectReg:
		c.page = v
	case off == regio.BookSelectReg && c.page == 0:
		c.book = v
	case c.book == 0 && c.page == 0 && regio.Reg(off) == regio.RegI2CChecksum:
		c.checksum = v
	default:
		c.regs[regio.NewReg(c.book, c.page, off)] = v
		c.checksum += v
	}
}

func (c *chip) load(off byte) byte {
	switch {
	case off == regio.PageSelectReg:
		return c.page
	case off == regio.BookSelectReg && c.page == 0:
		return c.book
	case c.book == 0 && c.page == 0 && regio.Reg(off) == regio.RegI2CChecksum:
		return c.checksum
	}
	return c.regs[regio.NewReg(c.book, c.page, off)]
}
