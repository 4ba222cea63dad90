// Package fwtest builds firmware images for tests.
package fwtest

import (
	"encoding/binary"

	"github.com/bigbag/tasfw/internal/firmware"
)

// Buffer is a big-endian byte builder.
type Buffer struct {
	b []byte
}

func (w *Buffer) U8(v byte) *Buffer { w.b = append(w.b, v); return w }

func (w *Buffer) U16(v uint16) *Buffer { w.b = binary.BigEndian.AppendUint16(w.b, v); return w }

func (w *Buffer) U32(v uint32) *Buffer { w.b = binary.BigEndian.AppendUint32(w.b, v); return w }

func (w *Buffer) Raw(p ...byte) *Buffer { w.b = append(w.b, p...); return w }

// Name appends a 64-byte NUL padded name.
func (w *Buffer) Name(s string) *Buffer {
	var n [firmware.NameSize]byte
	copy(n[:], s)
	w.b = append(w.b, n[:]...)
	return w
}

// CString appends a NUL terminated string.
func (w *Buffer) CString(s string) *Buffer {
	w.b = append(w.b, s...)
	w.b = append(w.b, 0)
	return w
}

func (w *Buffer) Bytes() []byte { return w.b }

func (w *Buffer) Len() int { return len(w.b) }

// Build encodes fw in the layout selected by fw.Format. The header size
// field is computed; every other header field is taken from fw.
func Build(fw *firmware.Firmware) []byte {
	w := &Buffer{}
	h := fw.Header
	w.Raw(firmware.Magic...)
	w.U32(0) // size, patched below
	w.U32(h.Checksum).U32(h.PPCVersion).U32(h.FWVersion).U32(h.DriverVersion).U32(h.Timestamp)
	w.Name(h.DDCName)

	if fw.Format == firmware.FormatKernel {
		buildKernel(w, fw)
	} else {
		buildLegacy(w, fw)
	}

	binary.BigEndian.PutUint32(w.b[4:], uint32(len(w.b)))
	return w.b
}

func buildLegacy(w *Buffer, fw *firmware.Firmware) {
	checksums := fw.Header.DriverVersion >= firmware.ChecksumDriverVersion

	w.CString(fw.Description).U32(fw.DeviceFamily).U32(fw.Device)
	w.U16(uint16(len(fw.Programs)))
	for _, p := range fw.Programs {
		w.Name(p.Name).CString(p.Description)
		w.U8(p.AppMode).U8(p.PDMI2SMode).U8(p.ISnsPD).U8(p.VSnsPD).U8(p.PowerLDG)
		legacyData(w, p.Data, checksums)
	}
	w.U16(uint16(len(fw.Configurations)))
	for _, c := range fw.Configurations {
		w.Name(c.Name).CString(c.Description)
		w.U8(c.Orientation).U8(c.Devices).U8(byte(c.Program))
		w.U32(c.SamplingRate).U8(byte(c.PLLSrc)).U32(c.PLLSrcRate).U16(c.FsRate)
		legacyData(w, c.Data, checksums)
	}
	if fw.Calibrations != nil {
		w.U16(uint16(len(fw.Calibrations)))
		for _, c := range fw.Calibrations {
			w.Name(c.Name).CString(c.Description).U8(c.Program).U8(c.Configuration)
			legacyData(w, c.Data, checksums)
		}
	}
}

func legacyData(w *Buffer, d firmware.Data, checksums bool) {
	w.Name(d.Name).CString(d.Description).U16(uint16(len(d.Blocks)))
	for _, b := range d.Blocks {
		w.U32(b.Type)
		if checksums {
			w.U8(flag(b.PChkPresent)).U8(b.PChk).U8(flag(b.YChkPresent)).U8(b.YChk)
		}
		w.U32(uint32(len(b.Data) / 4)).Raw(b.Data...)
	}
}

func buildKernel(w *Buffer, fw *firmware.Firmware) {
	w.U16(uint16(fw.DeviceFamily)).U16(uint16(fw.Device))

	w.U32(uint32(len(fw.Programs)))
	for i := 0; i < firmware.MaxKernelPrograms; i++ {
		var size uint32
		if i < len(fw.Programs) {
			size = fw.Programs[i].Size
		}
		w.U32(size)
	}

	maxConf := firmware.MaxKernelConfigurations
	if firmware.DeviceChannels(int(fw.Device)) >= 4 {
		maxConf = firmware.MaxKernelConfigurationsMulti
	}
	w.U32(uint32(len(fw.Configurations)))
	for i := 0; i < maxConf; i++ {
		var size uint32
		if i < len(fw.Configurations) {
			size = fw.Configurations[i].Size
		}
		w.U32(size)
	}

	for _, p := range fw.Programs {
		w.Name(p.Name).U8(p.AppMode).U8(p.PDMI2SMode).U8(p.ISnsPD).U8(p.VSnsPD)
		w.Raw(0, 0, 0).U8(p.PowerLDG)
		kernelData(w, p.Data)
	}
	for _, c := range fw.Configurations {
		w.Name(c.Name).U8(c.Orientation).U8(c.Devices).U16(c.Program)
		w.U32(c.SamplingRate).U16(c.PLLSrc).U16(c.FsRate).U32(c.PLLSrcRate)
		kernelData(w, c.Data)
	}
}

func kernelData(w *Buffer, d firmware.Data) {
	w.U32(uint32(len(d.Blocks)))
	for _, b := range d.Blocks {
		w.U32(b.Type)
		w.U8(flag(b.PChkPresent)).U8(b.PChk).U8(flag(b.YChkPresent)).U8(b.YChk)
		w.U32(uint32(len(b.Data))).U32(b.Sublocks).Raw(b.Data...)
	}
}

func flag(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// SingleWrite encodes a kernel SINGLE_WRITE sub-block.
func SingleWrite(quads ...[4]byte) []byte {
	w := &Buffer{}
	w.U8(0).U8(1).U16(uint16(len(quads)))
	for _, q := range quads {
		w.Raw(q[:]...)
	}
	return w.Bytes()
}

// Burst encodes a kernel BURST sub-block.
func Burst(book, page, reg byte, data []byte) []byte {
	w := &Buffer{}
	w.U8(0).U8(2).U16(uint16(len(data))).Raw(book, page, reg, 0).Raw(data...)
	return w.Bytes()
}

// Delay encodes a kernel DELAY sub-block.
func Delay(ms uint16) []byte {
	w := &Buffer{}
	w.U8(0).U8(3).U16(ms)
	return w.Bytes()
}

// FieldWrite encodes a kernel FIELD_WRITE sub-block.
func FieldWrite(mask, book, page, reg, value byte) []byte {
	w := &Buffer{}
	w.U8(0).U8(4).Raw(0, mask, book, page, reg, value)
	return w.Bytes()
}

// Quad encodes one legacy command.
func Quad(book, page, reg, value byte) []byte {
	return []byte{book, page, reg, value}
}
