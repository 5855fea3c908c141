package demo

import (
	"context"
	"encoding/binary"

	"xdao.co/provchain/pipeline"
	"xdao.co/provchain/provenance"
)

// Number is an int64 payload encoded as 8 little-endian bytes, the same
// encoding as provenance.Int64.
type Number int64

func (n Number) CanonicalBytes() []byte {
	return binary.LittleEndian.AppendUint64(nil, uint64(n))
}

func (n Number) ContentHash() provenance.ContentHash { return provenance.Sum(n.CanonicalBytes()) }

func DecodeNumber(b []byte) (Number, error) {
	if len(b) != 8 {
		return 0, errDecode("number", "want 8 bytes, got %d", len(b))
	}
	return Number(binary.LittleEndian.Uint64(b)), nil
}

var (
	Double = pipeline.Map("double", func(n Number) Number { return n * 2 })
	AddTen = pipeline.Map("add_ten", func(n Number) Number { return n + 10 })
)

// Chain is the result of RunChain: start → double → add_ten.
type Chain struct {
	Start   provenance.Verified[Number]
	Doubled provenance.Verified[Number]
	Final   provenance.Verified[Number]
}

// RunChain signs start as a root and derives start*2 and start*2+10 from it
// within the scope carried by ctx.
func RunChain(ctx context.Context, start Number) (Chain, error) {
	var c Chain
	var err error
	if c.Start, err = pipeline.Source(ctx, start); err != nil {
		return c, err
	}
	if c.Doubled, err = Double.Apply(ctx, c.Start); err != nil {
		return c, err
	}
	c.Final, err = AddTen.Apply(ctx, c.Doubled)
	return c, err
}
