package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	tests := []struct {
		name            string
		book, page, reg byte
		n               int
		want            Range
		ok              bool
	}{
		{"page 42 start", 140, 42, 88, 1, Range{88, 1}, true},
		{"page 42 below", 140, 42, 87, 1, Range{}, false},
		{"page 42 straddle", 140, 42, 86, 3, Range{88, 1}, true},
		{"page 50 inside", 140, 50, 10, 4, Range{10, 4}, true},
		{"page 50 clipped end", 140, 50, 24, 8, Range{24, 4}, true},
		{"page 50 past end", 140, 50, 28, 4, Range{}, false},
		{"page 50 straddle start", 140, 50, 4, 8, Range{8, 4}, true},
		{"page 50 below start", 140, 50, 0, 8, Range{}, false},
		{"block pages", 140, 45, 8, 120, Range{8, 120}, true},
		{"block straddle", 140, 43, 4, 8, Range{8, 4}, true},
		{"block header regs", 140, 49, 0, 8, Range{}, false},
		{"book 140 page 51", 140, 51, 8, 4, Range{}, false},
		{"book 0 page 61", 0, 61, 20, 4, Range{20, 4}, true},
		{"book 0 page 61 past end", 0, 61, 40, 4, Range{}, false},
		{"book 0 pages 50..60", 0, 53, 0x2C, 4, Range{0x2C, 4}, true},
		{"book 0 page 49", 0, 49, 8, 4, Range{}, false},
		{"other book", 1, 50, 8, 4, Range{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Window(tc.book, tc.page, tc.reg, tc.n)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
