package protocol

import (
	"encoding/binary"
	"testing"
)

func TestErrorMessage_Unknown(t *testing.T) {
	if got := ErrorMessage(0x99); got != "unknown error" {
		t.Errorf("ErrorMessage(0x99) = %q, want %q", got, "unknown error")
	}
	if got := ErrorMessage(ErrBusNak); got != "device did not acknowledge" {
		t.Errorf("ErrorMessage(ErrBusNak) = %q", got)
	}
}

func TestSyncData(t *testing.T) {
	data := SyncData()
	if len(data) != 36 {
		t.Fatalf("SyncData() length = %d, want 36", len(data))
	}
	if data[0] != 0x07 || data[1] != 0x07 || data[2] != 0x12 || data[3] != 0x20 {
		t.Errorf("SyncData() header = % X", data[:4])
	}
	for i := 4; i < 36; i++ {
		if data[i] != 0x55 {
			t.Fatalf("SyncData()[%d] = 0x%02X, want 0x55", i, data[i])
		}
	}
}

func TestParseInfo(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], 0x0102)
	binary.LittleEndian.PutUint32(data[4:8], 400000)
	data = append(data, "tas-bridge\x00junk"...)

	info, err := ParseInfo(data)
	if err != nil {
		t.Fatalf("ParseInfo() error = %v", err)
	}
	if info.Version != 0x0102 || info.BusHz != 400000 || info.Name != "tas-bridge" {
		t.Errorf("ParseInfo() = %+v", info)
	}

	info, err = ParseInfo(data[:8])
	if err != nil || info.Name != "" {
		t.Errorf("ParseInfo(no name) = %+v, %v", info, err)
	}

	if _, err := ParseInfo(data[:7]); err == nil {
		t.Error("ParseInfo(short) expected error, got nil")
	}
}
