// Package tags implements the typed, timestamped key-value annotation API
// that attaches to the containing scope of the emitting thread (spec
// §4.5). Each call appends one TagData record to the handle's active
// storage; like Start/PushEvent, every function here is a no-op when the
// handle's storage is inactive.
package tags

import (
	"github.com/coral-mesh/pulse/internal/pulse/describe"
	"github.com/coral-mesh/pulse/internal/pulse/platform"
	"github.com/coral-mesh/pulse/internal/pulse/storage"
)

// maxStringLen bounds the String tag payload; longer values are truncated
// rather than rejected, matching the fixed-size wire representation the
// source uses for this tag kind.
const maxStringLen = 32

func append_(h *storage.Handle, desc *describe.Description, kind storage.TagKind, fill func(*storage.TagData)) {
	s := h.Load()
	if s == nil {
		return
	}
	pool := s.TagPool(kind)
	rec := pool.Add()
	rec.Description = desc
	rec.Timestamp = platform.Now()
	rec.Kind = kind
	fill(rec)
}

// Float32 appends a float tag.
func Float32(h *storage.Handle, desc *describe.Description, v float32) {
	append_(h, desc, storage.TagFloat32, func(r *storage.TagData) { r.F32 = v })
}

// Int32 appends a signed integer tag.
func Int32(h *storage.Handle, desc *describe.Description, v int32) {
	append_(h, desc, storage.TagInt32, func(r *storage.TagData) { r.I32 = v })
}

// Uint32 appends an unsigned 32-bit integer tag.
func Uint32(h *storage.Handle, desc *describe.Description, v uint32) {
	append_(h, desc, storage.TagUint32, func(r *storage.TagData) { r.U32 = v })
}

// Uint64 appends an unsigned 64-bit integer tag.
func Uint64(h *storage.Handle, desc *describe.Description, v uint64) {
	append_(h, desc, storage.TagUint64, func(r *storage.TagData) { r.U64 = v })
}

// Point appends a 3-float point tag.
func Point(h *storage.Handle, desc *describe.Description, x, y, z float32) {
	append_(h, desc, storage.TagPoint3D, func(r *storage.TagData) {
		r.Point = storage.Point3D{X: x, Y: y, Z: z}
	})
}

// String appends a short-string tag, truncated to maxStringLen bytes.
func String(h *storage.Handle, desc *describe.Description, v string) {
	if len(v) > maxStringLen {
		v = v[:maxStringLen]
	}
	append_(h, desc, storage.TagString, func(r *storage.TagData) { r.Str = v })
}
