package slip

import (
	"bytes"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"nil", nil, []byte{End, End}},
		{"plain", []byte{0x01, 0x02, 0x03}, []byte{End, 0x01, 0x02, 0x03, End}},
		{"end byte", []byte{0x01, End, 0x03}, []byte{End, 0x01, Esc, EscEnd, 0x03, End}},
		{"esc byte", []byte{Esc}, []byte{End, Esc, EscEsc, End}},
		{"mixed", []byte{End, Esc, End}, []byte{End, Esc, EscEnd, Esc, EscEsc, Esc, EscEnd, End}},
	}

	for _, tc := range tests {
		if got := Encode(tc.in); !bytes.Equal(got, tc.want) {
			t.Errorf("%s: Encode(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestAppendEncode_KeepsPrefix(t *testing.T) {
	got := AppendEncode([]byte{0xAA}, []byte{0x01})
	want := []byte{0xAA, End, 0x01, End}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendEncode() = %v, want %v", got, want)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  []byte
	}{
		{"plain", []byte{End, 0x01, 0x02, End}, []byte{0x01, 0x02}},
		{"escaped end", []byte{End, Esc, EscEnd, End}, []byte{End}},
		{"escaped esc", []byte{End, Esc, EscEsc, End}, []byte{Esc}},
		{"unknown escape", []byte{End, Esc, 0x42, End}, []byte{0x42}},
		{"extra delimiters", []byte{End, End, 0x07, End, End}, []byte{0x07}},
		{"empty frame", []byte{End, End}, nil},
		{"single byte", []byte{End}, nil},
	}

	for _, tc := range tests {
		if got := Decode(tc.frame); !bytes.Equal(got, tc.want) {
			t.Errorf("%s: Decode(%v) = %v, want %v", tc.name, tc.frame, got, tc.want)
		}
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	for _, in := range [][]byte{{0x00}, {End, End}, {Esc, Esc}, all} {
		if got := Decode(Encode(in)); !bytes.Equal(got, in) {
			t.Errorf("round trip of %d bytes = %v", len(in), got)
		}
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name      string
		in        []byte
		frame     []byte
		remaining []byte
	}{
		{"single", []byte{End, 0x01, End}, []byte{End, 0x01, End}, []byte{}},
		{"two frames", []byte{End, 0x01, End, End, 0x02, End}, []byte{End, 0x01, End}, []byte{End, 0x02, End}},
		{"incomplete", []byte{End, 0x01, 0x02}, nil, []byte{End, 0x01, 0x02}},
		{"no delimiter", []byte{0x01, 0x02}, nil, []byte{0x01, 0x02}},
		{"only delimiters", []byte{End, End, End}, nil, []byte{End, End, End}},
		{"leading garbage", []byte{0x99, End, 0x01, End, 0x05}, []byte{End, 0x01, End}, []byte{0x05}},
		{"escapes", []byte{End, Esc, EscEnd, End}, []byte{End, Esc, EscEnd, End}, []byte{}},
	}

	for _, tc := range tests {
		frame, remaining := ReadFrame(tc.in)
		if !bytes.Equal(frame, tc.frame) {
			t.Errorf("%s: frame = %v, want %v", tc.name, frame, tc.frame)
		}
		if !bytes.Equal(remaining, tc.remaining) {
			t.Errorf("%s: remaining = %v, want %v", tc.name, remaining, tc.remaining)
		}
	}

	if frame, _ := ReadFrame(nil); frame != nil {
		t.Errorf("ReadFrame(nil) = %v, want nil", frame)
	}
}

func TestSplitter(t *testing.T) {
	var s Splitter

	stream := append(Encode([]byte{0x01, End}), Encode([]byte{0x02})...)
	s.Feed(stream[:3])
	if _, ok := s.Next(); ok {
		t.Fatal("Next() returned a frame from a partial stream")
	}

	s.Feed(stream[3:])
	got, ok := s.Next()
	if !ok || !bytes.Equal(got, []byte{0x01, End}) {
		t.Errorf("first Next() = %v, %v", got, ok)
	}
	got, ok = s.Next()
	if !ok || !bytes.Equal(got, []byte{0x02}) {
		t.Errorf("second Next() = %v, %v", got, ok)
	}
	if _, ok := s.Next(); ok {
		t.Error("Next() after drain returned a frame")
	}

	s.Feed([]byte{End, 0x05})
	s.Reset()
	s.Feed([]byte{End, 0x06, End})
	got, ok = s.Next()
	if !ok || !bytes.Equal(got, []byte{0x06}) {
		t.Errorf("Next() after Reset = %v, %v", got, ok)
	}
}
