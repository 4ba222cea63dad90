package regio

import "fmt"

// Register space layout.
const (
	PageSize = 128
	BookSize = 256 * PageSize
)

// Page and book select registers. The book register lives on page 0.
const (
	PageSelectReg = 0x00
	BookSelectReg = 0x7F
)

// Well-known book 0 / page 0 registers.
const (
	RegSoftwareReset Reg = 0x02
	RegMiscCfg2      Reg = 0x07
	RegI2CChecksum   Reg = 0x7E

	RegIntLatch0   Reg = 0x49
	RegIntLatch1   Reg = 0x4A
	RegIntLatch1_0 Reg = 0x4B
	RegIntLatch2   Reg = 0x4F
	RegIntLatch3   Reg = 0x50
	RegIntLatch4   Reg = 0x51
)

// Register bit fields.
const (
	SoftwareResetBit = 0x01
	GlobalAddrMask   = 0x02
	GlobalAddrEnable = 0x02
)

// InterruptLatches lists the interrupt latch registers in dump order.
var InterruptLatches = []Reg{
	RegIntLatch0, RegIntLatch1, RegIntLatch1_0,
	RegIntLatch2, RegIntLatch3, RegIntLatch4,
}

// Reg is a composite register address: book*256*128 + page*128 + register.
type Reg uint32

// NewReg builds a composite register from its book, page and offset.
func NewReg(book, page, reg byte) Reg {
	return Reg(uint32(book)*BookSize + uint32(page)*PageSize + uint32(reg))
}

// Book returns the book number.
func (r Reg) Book() byte {
	return byte(r / BookSize)
}

// Page returns the page number within the book.
func (r Reg) Page() byte {
	return byte((r % BookSize) / PageSize)
}

// Offset returns the register offset within the page.
func (r Reg) Offset() byte {
	return byte((r % BookSize) % PageSize)
}

func (r Reg) String() string {
	return fmt.Sprintf("B0x%02X:P0x%02X:R0x%02X", r.Book(), r.Page(), r.Offset())
}
