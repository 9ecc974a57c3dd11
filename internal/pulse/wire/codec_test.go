package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Primitives(t *testing.T) {
	e := NewEncoder()
	e.U8(0xAB)
	e.U16(0x1234)
	e.U32(0xDEADBEEF)
	e.U64(0x0123456789ABCDEF)
	e.I32(-7)
	e.I64(-9000)
	e.F32(3.5)
	e.String("hello")
	e.WString("héllo")

	d := NewDecoder(e.Bytes())
	assert.Equal(t, uint8(0xAB), d.U8())
	assert.Equal(t, uint16(0x1234), d.U16())
	assert.Equal(t, uint32(0xDEADBEEF), d.U32())
	assert.Equal(t, uint64(0x0123456789ABCDEF), d.U64())
	assert.Equal(t, int32(-7), d.I32())
	assert.Equal(t, int64(-9000), d.I64())
	assert.Equal(t, float32(3.5), d.F32())
	assert.Equal(t, "hello", d.String())
	assert.Equal(t, "héllo", d.WString())
	require.NoError(t, d.Err())
	assert.Empty(t, d.Remaining())
}

func TestEncodeDecode_Vector(t *testing.T) {
	e := NewEncoder()
	values := []uint32{10, 20, 30}
	e.Vector(len(values), func(i int) { e.U32(values[i]) })

	d := NewDecoder(e.Bytes())
	var got []uint32
	n := d.Vector(func(i int) { got = append(got, d.U32()) })
	require.NoError(t, d.Err())
	assert.Equal(t, len(values), n)
	assert.Equal(t, values, got)
}

func TestDecoder_StickyErrorOnShortRead(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02})
	v := d.U32() // needs 4 bytes, only 2 available
	assert.Equal(t, uint32(0), v)
	require.Error(t, d.Err())

	// Every further read must also return the zero value, not panic or
	// read stale buffer contents.
	assert.Equal(t, uint8(0), d.U8())
	assert.Equal(t, "", d.String())
}

func TestEncodeFrame_PayloadLengthIsSelfInclusive(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	framed := EncodeFrame(TypeEventFrame, payload)

	require.Len(t, framed, headerLen+len(payload))

	d := NewDecoder(framed)
	assert.Equal(t, Mark, d.U32())
	payloadLength := d.U32()
	assert.Equal(t, uint32(len(payload)+8), payloadLength)
	assert.Equal(t, AppID, d.U16())
	assert.Equal(t, uint16(TypeEventFrame), d.U16())
	assert.Equal(t, payload, d.Remaining())
}

func TestStartRequest_RoundTrip(t *testing.T) {
	s := Start{
		Mode:              3,
		CategoryMask:      0xFF,
		SamplingFrequency: 1000,
		TimeLimit:         5000,
		FrameLimit:        100,
		MemoryLimit:       1 << 20,
		Password:          "secret",
	}
	got, err := DecodeStart(s.Encode())
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestTurnSamplingRequest_RoundTrip(t *testing.T) {
	ts := TurnSampling{Index: 4, IsSampling: true}
	got, err := DecodeTurnSampling(ts.Encode())
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}
