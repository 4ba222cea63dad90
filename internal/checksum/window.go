package checksum

// YRAM layout. Windows are either a single page (with a register range) or
// a run of full pages within one book.
const (
	yramBook1 = 140
	yramBook2 = 0

	yram1Page     = 42
	yram1StartReg = 88

	yram2StartPage = 43
	yram2EndPage   = 49
	yram2StartReg  = 8
	yram2EndReg    = 127

	yram3Page     = 50
	yram3StartReg = 8
	yram3EndReg   = 27

	yram4StartPage = 50
	yram4EndPage   = 60

	yram5Page     = 61
	yram5StartReg = 8
	yram5EndReg   = 27
)

// Coefficient swap registers. Writes here trigger a DSP coefficient bank
// swap and never read back what was written.
const (
	SwapBook     = 0
	SwapPage     = 0x35
	SwapStartReg = 0x2C
	SwapEndReg   = SwapStartReg + 4
)

// Range is the part of a register run that falls inside a YRAM window.
type Range struct {
	Offset byte
	Len    int
}

// Window clips the run of n registers starting at book/page/reg to the
// YRAM window it touches. ok is false when the run misses YRAM entirely.
func Window(book, page, reg byte, n int) (r Range, ok bool) {
	if r, ok = inPage(book, page, reg, n); ok {
		return r, true
	}
	return inBlock(book, page, reg, n)
}

func inPage(book, page, reg byte, n int) (Range, bool) {
	switch {
	case book == yramBook1 && page == yram1Page:
		if reg >= yram1StartReg {
			return Range{Offset: reg, Len: n}, true
		}
		if int(reg)+n > yram1StartReg {
			return Range{Offset: yram1StartReg, Len: n - (yram1StartReg - int(reg))}, true
		}
		return Range{}, false
	case book == yramBook1 && page == yram3Page:
		return clipRange(reg, n, yram3StartReg, yram3EndReg)
	case book == yramBook2 && page == yram5Page:
		return clipRange(reg, n, yram5StartReg, yram5EndReg)
	}
	return Range{}, false
}

// clipRange clips to [start, end] for the single-page windows.
func clipRange(reg byte, n int, start, end int) (Range, bool) {
	r := int(reg)
	switch {
	case r > end:
		return Range{}, false
	case r >= start:
		if r+n > end {
			return Range{Offset: reg, Len: end - r + 1}, true
		}
		return Range{Offset: reg, Len: n}, true
	case r+n-1 < start:
		return Range{}, false
	default:
		return Range{Offset: byte(start), Len: n - (start - r)}, true
	}
}

func inBlock(book, page, reg byte, n int) (Range, bool) {
	switch {
	case book == yramBook1 && page >= yram2StartPage && page <= yram2EndPage:
	case book == yramBook2 && page >= yram4StartPage && page <= yram4EndPage:
	default:
		return Range{}, false
	}

	r := int(reg)
	switch {
	case r > yram2EndReg:
		return Range{}, false
	case r >= yram2StartReg:
		return Range{Offset: reg, Len: n}, true
	case r+n-1 < yram2StartReg:
		return Range{}, false
	default:
		return Range{Offset: yram2StartReg, Len: r + n - yram2StartReg}, true
	}
}

func isSwapPage(book, page byte) bool {
	return book == SwapBook && page == SwapPage
}

func isSwapReg(book, page, reg byte) bool {
	return isSwapPage(book, page) && reg >= SwapStartReg && reg <= SwapEndReg
}
