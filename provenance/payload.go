package provenance

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/unicode/norm"
)

// DefaultMediaType is reported for payloads that do not implement MediaTyper.
const DefaultMediaType = "application/octet-stream"

// Payload is any domain value that can be wrapped with provenance.
//
// ContentHash MUST be a pure function of the value's canonical byte
// encoding, and implementations MUST document that encoding: every claim
// hash built over the payload depends on it.
type Payload interface {
	ContentHash() ContentHash
}

// MediaTyper is implemented by payloads that know their media type.
type MediaTyper interface {
	MediaType() string
}

// Canonical is implemented by values that expose their canonical byte
// encoding. Payloads implementing it can have their bytes persisted next to
// the record; parameter types implement it to be committed.
type Canonical interface {
	CanonicalBytes() []byte
}

// Cloner is implemented by payloads backed by mutable memory. Clone returns
// a deep copy. Builders and Verify keep a clone of such a payload, and the
// Payload accessors hand out clones, so the bytes under a record never change.
type Cloner[T any] interface {
	Clone() T
}

func clonePayload[T Payload](p T) T {
	if c, ok := any(p).(Cloner[T]); ok {
		return c.Clone()
	}
	return p
}

// MediaTypeOf returns p's media type, or DefaultMediaType.
func MediaTypeOf(p Payload) string {
	if mt, ok := p.(MediaTyper); ok {
		if s := mt.MediaType(); s != "" {
			return s
		}
	}
	return DefaultMediaType
}

// CanonicalBytesOf returns p's canonical bytes when p implements Canonical.
func CanonicalBytesOf(p Payload) ([]byte, bool) {
	c, ok := p.(Canonical)
	if !ok {
		return nil, false
	}
	return c.CanonicalBytes(), true
}

// Bytes is an opaque byte payload. Canonical encoding: the bytes themselves.
type Bytes []byte

func (b Bytes) CanonicalBytes() []byte   { return append([]byte{}, b...) }
func (b Bytes) ContentHash() ContentHash { return Sum(b) }
func (b Bytes) Clone() Bytes             { return append(Bytes{}, b...) }

// Text is a string payload. Canonical encoding: NFC-normalized UTF-8.
type Text string

func (t Text) CanonicalBytes() []byte   { return norm.NFC.Bytes([]byte(t)) }
func (t Text) ContentHash() ContentHash { return Sum(t.CanonicalBytes()) }
func (t Text) MediaType() string        { return "text/plain" }

// Numeric payloads. Canonical encoding: fixed-width little-endian.

type Int32 int32

func (v Int32) CanonicalBytes() []byte   { return binary.LittleEndian.AppendUint32(nil, uint32(v)) }
func (v Int32) ContentHash() ContentHash { return Sum(v.CanonicalBytes()) }

type Int64 int64

func (v Int64) CanonicalBytes() []byte   { return binary.LittleEndian.AppendUint64(nil, uint64(v)) }
func (v Int64) ContentHash() ContentHash { return Sum(v.CanonicalBytes()) }

type Uint32 uint32

func (v Uint32) CanonicalBytes() []byte   { return binary.LittleEndian.AppendUint32(nil, uint32(v)) }
func (v Uint32) ContentHash() ContentHash { return Sum(v.CanonicalBytes()) }

type Uint64 uint64

func (v Uint64) CanonicalBytes() []byte   { return binary.LittleEndian.AppendUint64(nil, uint64(v)) }
func (v Uint64) ContentHash() ContentHash { return Sum(v.CanonicalBytes()) }

// Float32 and Float64 encode their IEEE-754 bit patterns, so 0 and -0 differ.

type Float32 float32

func (v Float32) CanonicalBytes() []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v)))
}
func (v Float32) ContentHash() ContentHash { return Sum(v.CanonicalBytes()) }

type Float64 float64

func (v Float64) CanonicalBytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(float64(v)))
}
func (v Float64) ContentHash() ContentHash { return Sum(v.CanonicalBytes()) }
