package wire

import "encoding/binary"

// Scanner accumulates bytes read off a connection and yields complete
// Frames as they become available, resynchronizing past stray bytes that
// don't start with Mark (spec §4.10: "the receiver scans for mark ...
// bytes that do not match are skipped"). It never blocks; Feed/Next only
// touch the in-memory buffer, matching the server's "non-blocking socket,
// drain into a growable InputDataStream" receive loop.
type Scanner struct {
	buf []byte
}

// NewScanner creates an empty Scanner.
func NewScanner() *Scanner { return &Scanner{} }

// Feed appends newly read bytes to the scan buffer.
func (s *Scanner) Feed(data []byte) {
	s.buf = append(s.buf, data...)
}

// Next extracts one complete frame if the buffer holds enough bytes,
// skipping any garbage before a resynchronized mark. It returns
// ok=false, with the buffer unmodified beyond garbage skipping, when more
// data is needed.
func (s *Scanner) Next() (Frame, bool) {
	for {
		idx := indexOfMark(s.buf)
		if idx < 0 {
			// Keep the last 3 bytes: a split mark could resume here once
			// more data arrives.
			if len(s.buf) > 3 {
				s.buf = s.buf[len(s.buf)-3:]
			}
			return Frame{}, false
		}
		if idx > 0 {
			s.buf = s.buf[idx:]
		}
		if len(s.buf) < 8 {
			return Frame{}, false // mark + payload_length not fully buffered yet
		}
		payloadLength := binary.LittleEndian.Uint32(s.buf[4:8])
		if payloadLength < 8 {
			// A well-formed frame's self-inclusive length always counts at
			// least the length field itself plus app_id+message_type (8
			// bytes); this can only be a false-positive mark match. Skip one byte
			// and keep scanning.
			s.buf = s.buf[1:]
			continue
		}
		total := int(payloadLength) + 4
		if len(s.buf) < total {
			return Frame{}, false // wait for the rest of the frame
		}

		d := NewDecoder(s.buf[8:total])
		d.U16() // app_id, already matched by the mark scan above
		msgType := d.U16()
		payload := d.Remaining()
		s.buf = s.buf[total:]
		return Frame{Type: MessageType(msgType), Payload: payload}, true
	}
}

// indexOfMark returns the byte offset of the first occurrence of Mark in
// buf's little-endian encoding, or -1 if none is present.
func indexOfMark(buf []byte) int {
	if len(buf) < 4 {
		return -1
	}
	var want [4]byte
	binary.LittleEndian.PutUint32(want[:], Mark)
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == want[0] && buf[i+1] == want[1] && buf[i+2] == want[2] && buf[i+3] == want[3] {
			return i
		}
	}
	return -1
}
