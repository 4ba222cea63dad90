package block

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutOfBounds is returned when a command runs past the end of its
	// stream. The rest of the stream cannot be decoded.
	ErrOutOfBounds = errors.New("command out of bounds")

	// ErrBurstAlignment is returned for a burst whose length is not a
	// multiple of 4. The consumed length is still valid.
	ErrBurstAlignment = errors.New("burst length not a multiple of 4")
)

// Opcode is a sub-block command type.
type Opcode byte

const (
	OpSingleWrite Opcode = 1
	OpBurst       Opcode = 2
	OpDelay       Opcode = 3
	OpFieldWrite  Opcode = 4
)

func (op Opcode) String() string {
	switch op {
	case OpSingleWrite:
		return "SINGLE_WRITE"
	case OpBurst:
		return "BURST"
	case OpDelay:
		return "DELAY"
	case OpFieldWrite:
		return "FIELD_WRITE"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// Write is one register write.
type Write struct {
	Book, Page, Reg, Value byte
}

// Command is one decoded sub-block.
type Command struct {
	Op Opcode

	// SINGLE_WRITE
	Writes []Write

	// BURST and FIELD_WRITE target
	Book, Page, Reg byte

	// BURST payload
	Data []byte

	// FIELD_WRITE
	Mask, Value byte

	// DELAY
	Delay time.Duration
}

// Known reports whether the opcode is one the interpreter executes.
func (c Command) Known() bool {
	return c.Op >= OpSingleWrite && c.Op <= OpFieldWrite
}

// Decode decodes the sub-block at the start of data and returns it with
// the number of bytes it occupies. Unknown sub-block types occupy their
// two header bytes.
func Decode(data []byte) (Command, int, error) {
	if len(data) < 2 {
		return Command{}, 0, fmt.Errorf("sub-block header: %d bytes: %w", len(data), ErrOutOfBounds)
	}
	cmd := Command{Op: Opcode(data[1])}

	switch cmd.Op {
	case OpSingleWrite:
		if len(data) < 4 {
			return cmd, 0, fmt.Errorf("%s count: %w", cmd.Op, ErrOutOfBounds)
		}
		n := int(binary.BigEndian.Uint16(data[2:]))
		size := 4 + 4*n
		if size > len(data) {
			return cmd, 0, fmt.Errorf("%s of %d writes needs %d bytes, have %d: %w", cmd.Op, n, size, len(data), ErrOutOfBounds)
		}
		cmd.Writes = make([]Write, n)
		for i := range cmd.Writes {
			q := data[4+4*i:]
			cmd.Writes[i] = Write{Book: q[0], Page: q[1], Reg: q[2], Value: q[3]}
		}
		return cmd, size, nil

	case OpBurst:
		if len(data) < 8 {
			return cmd, 0, fmt.Errorf("%s header: %w", cmd.Op, ErrOutOfBounds)
		}
		l := int(binary.BigEndian.Uint16(data[2:]))
		size := 8 + l
		if size > len(data) {
			return cmd, 0, fmt.Errorf("%s of %d bytes needs %d, have %d: %w", cmd.Op, l, size, len(data), ErrOutOfBounds)
		}
		cmd.Book, cmd.Page, cmd.Reg = data[4], data[5], data[6]
		if l%4 != 0 {
			return cmd, size, fmt.Errorf("%s of %d bytes: %w", cmd.Op, l, ErrBurstAlignment)
		}
		cmd.Data = data[8:size]
		return cmd, size, nil

	case OpDelay:
		if len(data) < 4 {
			return cmd, 0, fmt.Errorf("%s: %w", cmd.Op, ErrOutOfBounds)
		}
		cmd.Delay = time.Duration(binary.BigEndian.Uint16(data[2:])) * time.Millisecond
		return cmd, 4, nil

	case OpFieldWrite:
		if len(data) < 8 {
			return cmd, 0, fmt.Errorf("%s: %w", cmd.Op, ErrOutOfBounds)
		}
		cmd.Mask = data[3]
		cmd.Book, cmd.Page, cmd.Reg = data[4], data[5], data[6]
		cmd.Value = data[7]
		return cmd, 8, nil
	}
	return cmd, 2, nil
}

// LegacyOp is a legacy quad-stream command type.
type LegacyOp int

const (
	LegacyWrite LegacyOp = iota
	LegacyDelay
	LegacyBulk
	LegacySkip
)

// Legacy escape offsets.
const (
	legacyMaxReg  = 0x7F
	legacyDelay   = 0x81
	legacyEscBulk = 0x85
)

// LegacyCommand is one decoded legacy command.
type LegacyCommand struct {
	Op              LegacyOp
	Book, Page, Reg byte
	Value           byte
	Data            []byte
	Delay           time.Duration
}

// DecodeLegacy decodes the command starting at quad index cmd of a legacy
// command stream and returns it with the number of quads it occupies.
func DecodeLegacy(data []byte, cmd int) (LegacyCommand, int, error) {
	ncmds := len(data) / 4
	if cmd < 0 || cmd >= ncmds {
		return LegacyCommand{}, 0, fmt.Errorf("command %d of %d: %w", cmd, ncmds, ErrOutOfBounds)
	}
	q := data[cmd*4 : cmd*4+4]

	switch {
	case q[2] <= legacyMaxReg:
		return LegacyCommand{Op: LegacyWrite, Book: q[0], Page: q[1], Reg: q[2], Value: q[3]}, 1, nil

	case q[2] == legacyDelay:
		ms := int(q[0])<<8 | int(q[1])
		return LegacyCommand{Op: LegacyDelay, Delay: time.Duration(ms) * time.Millisecond}, 1, nil

	case q[2] == legacyEscBulk:
		if cmd+1 >= ncmds {
			return LegacyCommand{}, 0, fmt.Errorf("command %d: extended write header: %w", cmd, ErrOutOfBounds)
		}
		n := int(q[0])<<8 | int(q[1])
		next := data[(cmd+1)*4:]
		lc := LegacyCommand{Book: next[0], Page: next[1], Reg: next[2]}

		step := 2
		if n >= 2 {
			step += (n-2)/4 + 1
		}
		payload := (cmd+1)*4 + 3
		if cmd+step > ncmds || payload+max(n, 1) > len(data) {
			return LegacyCommand{}, 0, fmt.Errorf("command %d: extended write of %d bytes: %w", cmd, n, ErrOutOfBounds)
		}
		if n > 1 {
			lc.Op = LegacyBulk
			lc.Data = data[payload : payload+n]
		} else {
			lc.Op = LegacyWrite
			lc.Value = data[payload]
		}
		return lc, step, nil
	}
	return LegacyCommand{Op: LegacySkip, Reg: q[2]}, 1, nil
}
