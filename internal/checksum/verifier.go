package checksum

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bigbag/tasfw/internal/regio"
)

var (
	// ErrMismatch matches every *MismatchError.
	ErrMismatch = errors.New("checksum mismatch")

	// ErrInvalidRange is returned for register runs the checksum logic
	// cannot cover: runs past the end of a page, or single-register bulk
	// writes into YRAM.
	ErrInvalidRange = errors.New("invalid checksum range")
)

// MismatchError reports a YRAM register that did not read back the value
// written to it.
type MismatchError struct {
	Channel int
	Reg     regio.Reg
	Wrote   byte
	Read    byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("channel %d %s: wrote 0x%02X, read 0x%02X", e.Channel, e.Reg, e.Wrote, e.Read)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrMismatch
}

// Reader is the register read-back capability the verifier needs.
type Reader interface {
	Read(ch int, reg regio.Reg) (byte, error)
	BulkRead(ch int, reg regio.Reg, n int) ([]byte, error)
}

// Verifier computes the YRAM CRC contribution of individual writes by
// reading them back.
type Verifier struct {
	io          Reader
	onYRAMError func(ch int)
	log         *slog.Logger
}

// NewVerifier creates a Verifier. onYRAMError, if not nil, is called for
// every read-back mismatch.
func NewVerifier(r Reader, onYRAMError func(ch int), log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Verifier{io: r, onYRAMError: onYRAMError, log: log}
}

// Single returns the CRC contribution of a single-register write. Writes
// outside YRAM and to the swap registers contribute 0.
func (v *Verifier) Single(ch int, book, page, reg, value byte) (byte, error) {
	if isSwapReg(book, page, reg) {
		return 0, nil
	}
	if _, ok := Window(book, page, reg, 1); !ok {
		return 0, nil
	}

	addr := regio.NewReg(book, page, reg)
	got, err := v.io.Read(ch, addr)
	if err != nil {
		return 0, err
	}
	if got != value {
		if v.onYRAMError != nil {
			v.onYRAMError(ch)
		}
		return 0, &MismatchError{Channel: ch, Reg: addr, Wrote: value, Read: got}
	}
	return CRC8([]byte{value}, 0), nil
}

// Multi returns the CRC contribution of a bulk write of n registers: the
// sum of the per-byte CRC-8 of the in-window registers read back.
func (v *Verifier) Multi(ch int, book, page, reg byte, n int) (byte, error) {
	if int(reg)+n-1 > regio.PageSize-1 {
		return 0, fmt.Errorf("%s len %d: %w", regio.NewReg(book, page, reg), n, ErrInvalidRange)
	}
	if isSwapPage(book, page) && reg == SwapStartReg && n == 4 {
		return 0, nil
	}

	win, ok := Window(book, page, reg, n)
	v.log.Debug("yram window", "reg", regio.NewReg(book, page, reg).String(), "len", n,
		"in_yram", ok, "offset", win.Offset, "window_len", win.Len)
	if !ok {
		return 0, nil
	}
	if n == 1 {
		return 0, fmt.Errorf("%s: single register bulk write into YRAM: %w",
			regio.NewReg(book, page, reg), ErrInvalidRange)
	}

	data, err := v.io.BulkRead(ch, regio.NewReg(book, page, win.Offset), win.Len)
	if err != nil {
		return 0, err
	}

	var sum byte
	for i, b := range data {
		if isSwapReg(book, page, win.Offset+byte(i)) {
			continue
		}
		sum += CRC8([]byte{b}, 0)
	}
	return sum, nil
}
