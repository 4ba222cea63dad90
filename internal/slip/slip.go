// Package slip frames bridge packets with SLIP (RFC 1055) byte stuffing.
package slip

const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// Encode wraps data in a frame delimited by END on both sides.
func Encode(data []byte) []byte {
	return AppendEncode(make([]byte, 0, len(data)+10), data)
}

// AppendEncode appends the framed form of data to dst.
func AppendEncode(dst, data []byte) []byte {
	dst = append(dst, End)
	for _, b := range data {
		switch b {
		case End:
			dst = append(dst, Esc, EscEnd)
		case Esc:
			dst = append(dst, Esc, EscEsc)
		default:
			dst = append(dst, b)
		}
	}
	return append(dst, End)
}

// Decode strips the END delimiters from frame and unescapes its body.
// An unknown escape yields the escaped byte as is.
func Decode(frame []byte) []byte {
	start, end := 0, len(frame)
	for start < end && frame[start] == End {
		start++
	}
	for end > start && frame[end-1] == End {
		end--
	}
	if start >= end {
		return nil
	}

	body := frame[start:end]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		b := body[i]
		if b == Esc && i+1 < len(body) {
			i++
			switch body[i] {
			case EscEnd:
				b = End
			case EscEsc:
				b = Esc
			default:
				b = body[i]
			}
		}
		out = append(out, b)
	}
	return out
}

// ReadFrame finds the first complete frame in data. It returns the frame
// including its delimiters and whatever follows it. Bytes before the first
// END are discarded with the frame; when no frame is complete, frame is nil
// and remaining is data.
func ReadFrame(data []byte) (frame []byte, remaining []byte) {
	start := -1
	for i, b := range data {
		if b == End {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, data
	}

	inFrame := false
	for i := start; i < len(data); i++ {
		switch {
		case data[i] != End:
			inFrame = true
		case inFrame:
			return data[start : i+1], data[i+1:]
		}
	}
	return nil, data
}

// Splitter collects bytes from a stream and hands out decoded frames.
type Splitter struct {
	buf []byte
}

// Feed appends received bytes.
func (s *Splitter) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the payload of the next complete frame.
func (s *Splitter) Next() ([]byte, bool) {
	for {
		frame, rest := ReadFrame(s.buf)
		if frame == nil {
			return nil, false
		}
		s.buf = rest
		if data := Decode(frame); len(data) > 0 {
			return data, true
		}
	}
}

// Reset drops any partial frame.
func (s *Splitter) Reset() {
	s.buf = s.buf[:0]
}
