package block

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Append appends the sub-block encoding of c to dst. It is the inverse of
// Decode for the four known opcodes.
func (c Command) Append(dst []byte) ([]byte, error) {
	be := binary.BigEndian
	switch c.Op {
	case OpSingleWrite:
		if len(c.Writes) > 0xFFFF {
			return dst, fmt.Errorf("%s of %d writes", c.Op, len(c.Writes))
		}
		dst = append(dst, 0, byte(c.Op))
		dst = be.AppendUint16(dst, uint16(len(c.Writes)))
		for _, w := range c.Writes {
			dst = append(dst, w.Book, w.Page, w.Reg, w.Value)
		}
	case OpBurst:
		if len(c.Data)%4 != 0 {
			return dst, fmt.Errorf("%s of %d bytes: %w", c.Op, len(c.Data), ErrBurstAlignment)
		}
		if len(c.Data) > 0xFFFF {
			return dst, fmt.Errorf("%s of %d bytes", c.Op, len(c.Data))
		}
		dst = append(dst, 0, byte(c.Op))
		dst = be.AppendUint16(dst, uint16(len(c.Data)))
		dst = append(dst, c.Book, c.Page, c.Reg, 0)
		dst = append(dst, c.Data...)
	case OpDelay:
		ms := c.Delay / time.Millisecond
		if ms < 0 || ms > 0xFFFF {
			return dst, fmt.Errorf("%s of %v", c.Op, c.Delay)
		}
		dst = append(dst, 0, byte(c.Op))
		dst = be.AppendUint16(dst, uint16(ms))
	case OpFieldWrite:
		dst = append(dst, 0, byte(c.Op), 0, c.Mask, c.Book, c.Page, c.Reg, c.Value)
	default:
		return dst, fmt.Errorf("cannot encode %s", c.Op)
	}
	return dst, nil
}
