// Package wire implements the self-describing binary protocol of spec
// §4.9–§4.10: primitive encodings, message framing with resynchronization,
// and the request/response message taxonomy exchanged with the GUI.
//
// Grounded in aclements-go-perf/perffile's bufDecoder (a hand-rolled
// little-endian cursor over a byte slice for an existing real-world
// binary profile format) rather than encoding/gob or a schema-driven
// codec: the wire format here is fixed by spec, not something Go's
// reflection-based encoders could produce, so a small explicit codec is
// the idiomatic match for what that example repo already does for a
// structurally similar problem.
package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Encoder appends primitive values to an in-memory buffer in the little-
// endian layout spec §4.9 specifies.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder creates an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded payload so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len reports the number of bytes encoded so far.
func (e *Encoder) Len() int { return e.buf.Len() }

func (e *Encoder) U8(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) I32(v int32) { e.U32(uint32(v)) }
func (e *Encoder) I64(v int64) { e.U64(uint64(v)) }

func (e *Encoder) F32(v float32) { e.U32(math.Float32bits(v)) }

// String writes a u32 byte length followed by raw bytes, no trailing NUL
// (spec §4.9).
func (e *Encoder) String(s string) {
	e.U32(uint32(len(s)))
	e.buf.WriteString(s)
}

// WString writes a u32 byte length (= chars × 2) followed by UTF-16LE
// code units (spec §4.9's "wide string").
func (e *Encoder) WString(s string) {
	units := utf16.Encode([]rune(s))
	e.U32(uint32(len(units)) * 2)
	for _, u := range units {
		e.U16(u)
	}
}

// Vector writes a u32 count followed by n calls to write, matching
// spec §4.9's vector<T>/pool<T> encoding (size then elements in order).
func (e *Encoder) Vector(n int, write func(i int)) {
	e.U32(uint32(n))
	for i := 0; i < n; i++ {
		write(i)
	}
}
