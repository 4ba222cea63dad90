package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/tasfw/internal/firmware/fwtest"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		want     Command
		consumed int
		err      error
	}{
		{
			name:     "single write",
			data:     fwtest.SingleWrite([4]byte{0, 0, 0x10, 0xAA}, [4]byte{0, 1, 0x20, 0xBB}),
			want:     Command{Op: OpSingleWrite, Writes: []Write{{0, 0, 0x10, 0xAA}, {0, 1, 0x20, 0xBB}}},
			consumed: 12,
		},
		{
			name:     "single write short",
			data:     fwtest.SingleWrite([4]byte{0, 0, 0x10, 0xAA})[:7],
			want:     Command{Op: OpSingleWrite},
			err:      ErrOutOfBounds,
		},
		{
			name:     "burst",
			data:     fwtest.Burst(0x8C, 0x2A, 0x60, []byte{1, 2, 3, 4}),
			want:     Command{Op: OpBurst, Book: 0x8C, Page: 0x2A, Reg: 0x60, Data: []byte{1, 2, 3, 4}},
			consumed: 12,
		},
		{
			name:     "burst misaligned",
			data:     fwtest.Burst(0, 1, 2, []byte{1, 2, 3, 4, 5, 6}),
			want:     Command{Op: OpBurst, Book: 0, Page: 1, Reg: 2},
			consumed: 14,
			err:      ErrBurstAlignment,
		},
		{
			name: "burst past end",
			data: fwtest.Burst(0, 1, 2, []byte{1, 2, 3, 4})[:10],
			want: Command{Op: OpBurst},
			err:  ErrOutOfBounds,
		},
		{
			name:     "delay",
			data:     fwtest.Delay(20),
			want:     Command{Op: OpDelay, Delay: 20 * time.Millisecond},
			consumed: 4,
		},
		{
			name:     "field write",
			data:     fwtest.FieldWrite(0x0F, 0, 2, 0x30, 0x05),
			want:     Command{Op: OpFieldWrite, Mask: 0x0F, Page: 2, Reg: 0x30, Value: 0x05},
			consumed: 8,
		},
		{
			name:     "unknown",
			data:     []byte{0, 9, 0xFF, 0xFF},
			want:     Command{Op: 9},
			consumed: 2,
		},
		{
			name: "empty",
			data: []byte{0},
			err:  ErrOutOfBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := Decode(tt.data)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.consumed, n)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeLegacy(t *testing.T) {
	stream := concat(
		fwtest.Quad(0, 1, 0x10, 0xAA),
		fwtest.Quad(0x00, 0x05, 0x81, 0),
		fwtest.Quad(0x00, 0x06, 0x85, 0),
		fwtest.Quad(0x8C, 0x2A, 0x60, 1),
		fwtest.Quad(2, 3, 4, 5),
		fwtest.Quad(6, 0, 0, 0),
		fwtest.Quad(0x00, 0x01, 0x85, 0),
		fwtest.Quad(0, 2, 0x30, 0x77),
		fwtest.Quad(0, 0, 0x90, 0),
	)

	lc, step, err := DecodeLegacy(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, step)
	assert.Equal(t, LegacyCommand{Op: LegacyWrite, Page: 1, Reg: 0x10, Value: 0xAA}, lc)

	lc, step, err = DecodeLegacy(stream, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, step)
	assert.Equal(t, LegacyCommand{Op: LegacyDelay, Delay: 5 * time.Millisecond}, lc)

	lc, step, err = DecodeLegacy(stream, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, step, "6-byte payload spans two more quads")
	assert.Equal(t, LegacyBulk, lc.Op)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, lc.Data)
	assert.Equal(t, byte(0x8C), lc.Book)
	assert.Equal(t, byte(0x60), lc.Reg)

	lc, step, err = DecodeLegacy(stream, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, step)
	assert.Equal(t, LegacyCommand{Op: LegacyWrite, Page: 2, Reg: 0x30, Value: 0x77}, lc)

	lc, step, err = DecodeLegacy(stream, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, step)
	assert.Equal(t, LegacySkip, lc.Op)

	_, _, err = DecodeLegacy(stream, 9)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestDecodeLegacy_ExtendedWriteTruncated(t *testing.T) {
	_, _, err := DecodeLegacy(fwtest.Quad(0, 8, 0x85, 0), 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	stream := concat(fwtest.Quad(0, 8, 0x85, 0), fwtest.Quad(0, 1, 2, 3))
	_, _, err = DecodeLegacy(stream, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
