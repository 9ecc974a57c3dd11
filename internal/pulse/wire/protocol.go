package wire

// Framing constants (spec §4.10): every message in both directions starts
// with a mark, a payload length, an app id, and a message type code.
const (
	Mark      uint32 = 0xB50FB50F
	AppID     uint16 = 0xB50F
	headerLen        = 4 + 4 + 2 + 2 // mark, payload_length, app_id, message_type
)

// ProtocolVersion is the DataResponse envelope's version field, carried on
// every server→client message so a GUI client can reject a mismatched
// agent build.
const ProtocolVersion uint32 = 22

// Response type codes (server → client). Values must stay stable; they
// match the source's ordering (spec §4.10).
type MessageType uint16

const (
	TypeFrameDescriptionBoard      MessageType = 0
	TypeEventFrame                 MessageType = 1
	TypeSamplingFrame              MessageType = 2 // legacy, unused
	TypeNullFrame                  MessageType = 3
	TypeReportProgress             MessageType = 4
	TypeHandshake                  MessageType = 5
	TypeSynchronizationData        MessageType = 7
	TypeTagsPack                   MessageType = 8
	TypeCallstackDescriptionBoard  MessageType = 9
	TypeCallstackPack              MessageType = 10
	TypeFiberSynchronizationData   MessageType = 256
	TypeSyscallPack                MessageType = 257

	// TypeSummaryPack's code is left as "N" (unspecified) in spec §4.10;
	// 258 continues the FiberSynchronizationData/SyscallPack numbering
	// block rather than colliding with any assigned code above.
	TypeSummaryPack MessageType = 258
)

// Request type codes (client → server).
const (
	TypeStart        MessageType = 100
	TypeStop         MessageType = 101
	TypeTurnSampling MessageType = 102
)

// Frame is one decoded message: its type and its raw, still-undecoded
// payload.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// EncodeFrame wraps payload in the request/response frame header (spec
// §4.10's "framing, both directions"). payload_length is self-inclusive
// of its own 4 bytes plus app_id and message_type, so its value is
// len(payload)+8 — the array-size expression "payload[payload_length-8]"
// in spec §4.10 falls out of that convention.
func EncodeFrame(t MessageType, payload []byte) []byte {
	e := NewEncoder()
	e.U32(Mark)
	e.U32(uint32(len(payload) + 8))
	e.U16(AppID)
	e.U16(uint16(t))
	e.buf.Write(payload)
	return e.Bytes()
}

// EncodeResponseEnvelope wraps payload in the extra server→client
// envelope (spec §4.10: "Responses ... carry an additional envelope")
// before framing it.
func EncodeResponseEnvelope(version uint32, t MessageType, payload []byte) []byte {
	e := NewEncoder()
	e.U32(version)
	e.U32(uint32(len(payload)))
	e.U16(uint16(t))
	e.U16(AppID)
	e.buf.Write(payload)
	return EncodeFrame(t, e.Bytes())
}

// Start is the client's capture-start request (spec §4.10).
type Start struct {
	Mode              uint32
	CategoryMask      uint32
	SamplingFrequency uint32
	TimeLimit         uint32
	FrameLimit        uint32
	MemoryLimit       uint32
	Password          string
}

// Encode serializes a Start request payload.
func (s Start) Encode() []byte {
	e := NewEncoder()
	e.U32(s.Mode)
	e.U32(s.CategoryMask)
	e.U32(s.SamplingFrequency)
	e.U32(s.TimeLimit)
	e.U32(s.FrameLimit)
	e.U32(s.MemoryLimit)
	e.String(s.Password)
	return e.Bytes()
}

// DecodeStart parses a Start request payload.
func DecodeStart(payload []byte) (Start, error) {
	d := NewDecoder(payload)
	s := Start{
		Mode:              d.U32(),
		CategoryMask:      d.U32(),
		SamplingFrequency: d.U32(),
		TimeLimit:         d.U32(),
		FrameLimit:        d.U32(),
		MemoryLimit:       d.U32(),
		Password:          d.String(),
	}
	return s, d.Err()
}

// TurnSampling is the client's per-category sampling toggle request.
type TurnSampling struct {
	Index      uint32
	IsSampling bool
}

// Encode serializes a TurnSampling request payload.
func (t TurnSampling) Encode() []byte {
	e := NewEncoder()
	e.U32(t.Index)
	if t.IsSampling {
		e.U8(1)
	} else {
		e.U8(0)
	}
	return e.Bytes()
}

// DecodeTurnSampling parses a TurnSampling request payload.
func DecodeTurnSampling(payload []byte) (TurnSampling, error) {
	d := NewDecoder(payload)
	t := TurnSampling{Index: d.U32(), IsSampling: d.U8() != 0}
	return t, d.Err()
}
