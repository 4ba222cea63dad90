package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		data []byte
		want uint32
	}{
		{nil, 0xEF},
		{[]byte{0x01}, 0xEE},
		{[]byte{0x01, 0x02, 0x03}, 0xEF},
		{[]byte{0xEF}, 0x00},
	}

	for _, tc := range tests {
		if got := Checksum(tc.data); got != tc.want {
			t.Errorf("Checksum(%v) = 0x%X, want 0x%X", tc.data, got, tc.want)
		}
	}
}

func TestRequest_Encode_Format(t *testing.T) {
	data := RegWriteData(0x38, 0x10, []byte{0xAA, 0xBB})
	req := NewRequest(CmdRegWrite, data)
	encoded := req.Encode()

	if len(encoded) != 8+len(data) {
		t.Fatalf("Encode() length = %d, want %d", len(encoded), 8+len(data))
	}
	if encoded[0] != DirRequest {
		t.Errorf("Encode()[0] direction = 0x%02X, want 0x%02X", encoded[0], DirRequest)
	}
	if encoded[1] != CmdRegWrite {
		t.Errorf("Encode()[1] command = 0x%02X, want 0x%02X", encoded[1], CmdRegWrite)
	}
	if n := binary.LittleEndian.Uint16(encoded[2:4]); n != uint16(len(data)) {
		t.Errorf("Encode() data length = %d, want %d", n, len(data))
	}
	if sum := binary.LittleEndian.Uint32(encoded[4:8]); sum != req.Checksum {
		t.Errorf("Encode() checksum = 0x%X, want 0x%X", sum, req.Checksum)
	}
	if !bytes.Equal(encoded[8:], data) {
		t.Errorf("Encode() data = %v, want %v", encoded[8:], data)
	}
}

func TestDecodeRequest(t *testing.T) {
	want := NewRequest(CmdRegRead, RegReadData(0x39, 0x7E, 1))
	got, err := DecodeRequest(want.Encode())
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	if got.Command != CmdRegRead || !bytes.Equal(got.Data, want.Data) {
		t.Errorf("DecodeRequest() = %+v, want %+v", got, want)
	}

	bad := want.Encode()
	bad[4] ^= 0xFF
	if _, err := DecodeRequest(bad); err == nil || !strings.Contains(err.Error(), "checksum") {
		t.Errorf("DecodeRequest(bad checksum) error = %v, want checksum error", err)
	}

	short := want.Encode()[:9]
	if _, err := DecodeRequest(short); err == nil {
		t.Error("DecodeRequest(short) expected error, got nil")
	}

	resp := (&Response{Command: CmdSync}).Encode()
	if _, err := DecodeRequest(resp[:8]); err == nil || !strings.Contains(err.Error(), "invalid direction") {
		t.Errorf("DecodeRequest(response) error = %v, want direction error", err)
	}
}

func TestResponse_EncodeDecode(t *testing.T) {
	want := &Response{Command: CmdRegRead, Value: 0x12345678, Data: []byte{0xAA, 0xBB, 0xCC}, Error: ErrBusNak, Status: 1}

	got, err := DecodeResponse(want.Encode())
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if got.Command != want.Command || got.Value != want.Value {
		t.Errorf("DecodeResponse() header = %02X/%X, want %02X/%X", got.Command, got.Value, want.Command, want.Value)
	}
	if !bytes.Equal(got.Data, want.Data) {
		t.Errorf("DecodeResponse Data = %v, want %v", got.Data, want.Data)
	}
	if got.Status != 1 || got.Error != ErrBusNak {
		t.Errorf("DecodeResponse status/error = %d/%02X, want 1/%02X", got.Status, got.Error, ErrBusNak)
	}
}

func TestDecodeResponse_Errors(t *testing.T) {
	wrongDir := make([]byte, 10)
	wrongDir[0] = DirRequest
	binary.LittleEndian.PutUint16(wrongDir[2:4], 2)

	oversize := make([]byte, 10)
	oversize[0] = DirResponse
	binary.LittleEndian.PutUint16(oversize[2:4], 100)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"nil", nil, "too short"},
		{"nine bytes", make([]byte, 9), "too short"},
		{"wrong direction", wrongDir, "invalid direction"},
		{"size mismatch", oversize, "size mismatch"},
	}

	for _, tc := range tests {
		_, err := DecodeResponse(tc.data)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: DecodeResponse() error = %v, want %q", tc.name, err, tc.want)
		}
	}
}

func TestDecodeResponse_ZeroDataSize(t *testing.T) {
	resp := make([]byte, 10)
	resp[0] = DirResponse
	resp[1] = CmdSync

	decoded, err := DecodeResponse(resp)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if len(decoded.Data) != 0 {
		t.Errorf("DecodeResponse Data = %v, want empty", decoded.Data)
	}
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		status   byte
		errCode  byte
		expected bool
	}{
		{0, 0, true},
		{1, 0, false},
		{0, 1, false},
		{0xFF, ErrBusTimeout, false},
	}

	for _, tc := range tests {
		resp := &Response{Status: tc.status, Error: tc.errCode}
		if got := resp.IsSuccess(); got != tc.expected {
			t.Errorf("IsSuccess(status=0x%02X, error=0x%02X) = %v, want %v",
				tc.status, tc.errCode, got, tc.expected)
		}
	}
}

func TestResponse_ErrorString(t *testing.T) {
	if s := (&Response{}).ErrorString(); s != "" {
		t.Errorf("ErrorString() for success = %q, want empty", s)
	}

	for _, code := range []byte{ErrInvalidMessage, ErrFailedToAct, ErrInvalidCRC, ErrBusNak, ErrBusTimeout, ErrBusArbitration, ErrTooLong, 0x99} {
		s := (&Response{Status: 1, Error: code}).ErrorString()
		if !strings.Contains(s, ErrorMessage(code)) {
			t.Errorf("ErrorString() = %q, should contain %q", s, ErrorMessage(code))
		}
	}
}

func TestRegPayloads(t *testing.T) {
	if got := RegReadData(0x38, 0x49, 6); !bytes.Equal(got, []byte{0x38, 0x49, 6}) {
		t.Errorf("RegReadData() = %v", got)
	}
	if got := RegWriteData(0x38, 0x02, []byte{1}); !bytes.Equal(got, []byte{0x38, 0x02, 1}) {
		t.Errorf("RegWriteData() = %v", got)
	}
}
