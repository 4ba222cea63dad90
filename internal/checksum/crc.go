// Package checksum verifies register writes that land in the amplifier's
// coefficient memory (YRAM) and accumulates the CRC-8 block checksums
// carried by firmware images.
package checksum

// Polynomial is the CRC-8 generator polynomial, MSB first.
const Polynomial = 0x4D

// Table is the CRC-8 lookup table for Polynomial.
var Table = makeTable(Polynomial)

func makeTable(poly byte) [256]byte {
	var t [256]byte
	for i := range t {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC8 continues a CRC-8 over data starting from crc.
func CRC8(data []byte, crc byte) byte {
	for _, b := range data {
		crc = Table[crc^b]
	}
	return crc
}
