package memio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/tasfw/internal/regio"
)

func TestMemory_ChecksumAccumulatesWrites(t *testing.T) {
	m := New(0x38)

	require.NoError(t, m.Write(0x38, byte(regio.RegI2CChecksum), []byte{0}))
	require.NoError(t, m.Write(0x38, 0x10, []byte{0x10, 0x20}))
	require.NoError(t, m.Write(0x38, 0x30, []byte{0x05}))

	got, err := m.Read(0x38, byte(regio.RegI2CChecksum), 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x35), got[0])
}

func TestMemory_PageAndBookSelect(t *testing.T) {
	m := New(0x38)

	require.NoError(t, m.Write(0x38, regio.PageSelectReg, []byte{0}))
	require.NoError(t, m.Write(0x38, regio.BookSelectReg, []byte{140}))
	require.NoError(t, m.Write(0x38, regio.PageSelectReg, []byte{42}))
	require.NoError(t, m.Write(0x38, 0x58, []byte{0xAA}))

	book, page := m.Selected(0x38)
	assert.Equal(t, byte(140), book)
	assert.Equal(t, byte(42), page)
	assert.Equal(t, byte(0xAA), m.Peek(0x38, regio.NewReg(140, 42, 0x58)))
}

func TestMemory_GlobalWriteFansOut(t *testing.T) {
	m := New(0x38, 0x39)
	m.SetGlobal(0x40)

	require.NoError(t, m.Write(0x40, 0x10, []byte{9}))
	assert.Equal(t, byte(9), m.Peek(0x38, 0x10))
	assert.Equal(t, byte(9), m.Peek(0x39, 0x10))

	_, err := m.Read(0x40, 0x10, 1)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestMemory_UnknownAddress(t *testing.T) {
	m := New(0x38)
	assert.ErrorIs(t, m.Write(0x77, 0, []byte{1}), ErrNoDevice)
}
