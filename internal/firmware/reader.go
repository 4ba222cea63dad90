package firmware

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// NameSize is the fixed width of every name field.
const NameSize = 64

// reader is a bounds-checked big-endian cursor.
type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) error {
	if n < 0 || r.off+n > len(r.buf) {
		return errors.Wrapf(ErrTruncated, "need %d bytes at offset %d, have %d", n, r.off, len(r.buf)-r.off)
	}
	return nil
}

func (r *reader) u8() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

// bytes returns a copy of the next n bytes.
func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:])
	r.off += n
	return out, nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.off += n
	return nil
}

// name reads a fixed 64-byte, NUL-padded name.
func (r *reader) name() (string, error) {
	if err := r.need(NameSize); err != nil {
		return "", err
	}
	s := cstr(r.buf[r.off : r.off+NameSize])
	r.off += NameSize
	return s, nil
}

// cstring reads a NUL-terminated string and consumes the terminator.
func (r *reader) cstring() (string, error) {
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		return "", errors.Wrapf(ErrTruncated, "unterminated string at offset %d", r.off)
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return s, nil
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
