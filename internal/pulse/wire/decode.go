package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/coral-mesh/pulse/internal/pulse/perrors"
)

// Decoder reads primitive values off a byte slice in order. It is
// "sticky": once a short read sets Err, every subsequent read is a no-op
// returning the zero value, so callers can chain a sequence of reads and
// check Err once at the end, the way aclements-go-perf/perffile's
// bufDecoder chains reads — except this one reports a catchable error
// instead of panicking, since the bytes here come off the network rather
// than a local file the caller already length-checked.
type Decoder struct {
	buf []byte
	err error
}

// NewDecoder wraps buf for sequential reads. buf is not copied; callers
// must not mutate it while the Decoder is in use.
func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Err returns the first error encountered, if any.
func (d *Decoder) Err() error { return d.err }

// Remaining returns the unread tail of the buffer.
func (d *Decoder) Remaining() []byte { return d.buf }

func (d *Decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if len(d.buf) < n {
		d.err = perrors.ErrStreamCorrupt
		return false
	}
	return true
}

func (d *Decoder) U8() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.buf[0]
	d.buf = d.buf[1:]
	return v
}

func (d *Decoder) U16() uint16 {
	if !d.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(d.buf)
	d.buf = d.buf[2:]
	return v
}

func (d *Decoder) U32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v
}

func (d *Decoder) U64() uint64 {
	if !d.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v
}

func (d *Decoder) I32() int32 { return int32(d.U32()) }
func (d *Decoder) I64() int64 { return int64(d.U64()) }

func (d *Decoder) F32() float32 { return math.Float32frombits(d.U32()) }

// String reads a u32 byte length followed by that many raw bytes.
func (d *Decoder) String() string {
	n := d.U32()
	if !d.need(int(n)) {
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

// WString reads a u32 byte length (= chars × 2) followed by UTF-16LE.
func (d *Decoder) WString() string {
	byteLen := d.U32()
	if !d.need(int(byteLen)) {
		return ""
	}
	n := byteLen / 2
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(d.buf[i*2:])
	}
	d.buf = d.buf[byteLen:]
	return string(utf16.Decode(units))
}

// Vector reads a u32 count then calls read that many times.
func (d *Decoder) Vector(read func(i int)) int {
	n := int(d.U32())
	for i := 0; i < n && d.err == nil; i++ {
		read(i)
	}
	return n
}
