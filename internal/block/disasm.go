package block

import (
	"errors"
	"fmt"
	"io"

	"github.com/bigbag/tasfw/internal/regio"
)

// Disassemble writes a listing of the sub-block stream in data. Decoding
// stops at the end of data or at the first out-of-bounds command.
func Disassemble(w io.Writer, data []byte, devIdx byte) error {
	target := "all channels"
	if idx := devIdx & ChannelMask; idx != 0 {
		target = fmt.Sprintf("channel %d", idx-1)
	}
	if _, err := fmt.Fprintf(w, "dev_idx 0x%02X (%s, category 0x%02X)\n", devIdx, target, devIdx&CategoryMask); err != nil {
		return err
	}

	for off := 0; off < len(data); {
		cmd, n, err := Decode(data[off:])
		if errors.Is(err, ErrOutOfBounds) {
			_, werr := fmt.Fprintf(w, "  %04x: %v\n", off, err)
			if werr != nil {
				return werr
			}
			return err
		}
		if werr := writeCommand(w, off, cmd, err); werr != nil {
			return werr
		}
		off += n
	}
	return nil
}

func writeCommand(w io.Writer, off int, cmd Command, decodeErr error) error {
	var err error
	switch cmd.Op {
	case OpSingleWrite:
		_, err = fmt.Fprintf(w, "  %04x: %s x%d\n", off, cmd.Op, len(cmd.Writes))
		for _, wr := range cmd.Writes {
			if err != nil {
				break
			}
			_, err = fmt.Fprintf(w, "          %s <- 0x%02X\n", regio.NewReg(wr.Book, wr.Page, wr.Reg), wr.Value)
		}
	case OpBurst:
		if decodeErr != nil {
			_, err = fmt.Fprintf(w, "  %04x: %s %s rejected: %v\n", off, cmd.Op, regio.NewReg(cmd.Book, cmd.Page, cmd.Reg), decodeErr)
			break
		}
		_, err = fmt.Fprintf(w, "  %04x: %s %s len %d % X\n", off, cmd.Op, regio.NewReg(cmd.Book, cmd.Page, cmd.Reg), len(cmd.Data), cmd.Data)
	case OpDelay:
		_, err = fmt.Fprintf(w, "  %04x: %s %v\n", off, cmd.Op, cmd.Delay)
	case OpFieldWrite:
		_, err = fmt.Fprintf(w, "  %04x: %s %s mask 0x%02X <- 0x%02X\n", off, cmd.Op, regio.NewReg(cmd.Book, cmd.Page, cmd.Reg), cmd.Mask, cmd.Value)
	default:
		_, err = fmt.Fprintf(w, "  %04x: %s\n", off, cmd.Op)
	}
	return err
}
