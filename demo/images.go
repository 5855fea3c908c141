package demo

import (
	"context"

	"xdao.co/provchain/pipeline"
	"xdao.co/provchain/provenance"
)

// Images is the result of RunImages.
type Images struct {
	Source    provenance.Verified[Image]
	Redacted  provenance.Verified[Image]
	Shifted   provenance.Verified[Image]
	Left      provenance.Verified[Image]
	Right     provenance.Verified[Image]
	Composite provenance.Verified[Image]
}

// RunImages runs the redaction, shift and composite examples in the scope
// carried by ctx:
//
//	pattern(8x4) ─redact(2,1,4,2)─▶ redacted ─shift(1,0 ×0.5)─▶ shifted
//	fill(4x3,0xAA) ─┐
//	                ├─hconcat─▶ composite
//	fill(4x3,0x55) ─┘
func RunImages(ctx context.Context) (Images, error) {
	var r Images
	var err error

	if r.Source, err = pipeline.Source(ctx, TestPattern(8, 4)); err != nil {
		return r, err
	}
	if r.Redacted, err = Redact.Apply(ctx, r.Source, Region{X: 2, Y: 1, W: 4, H: 2}); err != nil {
		return r, err
	}
	if r.Shifted, err = Shift.Apply(ctx, r.Redacted, ShiftParams{Offset: Offset{DX: 1}, Scale: 0.5}); err != nil {
		return r, err
	}

	if r.Left, err = pipeline.Source(ctx, NewImage(4, 3, 0xAA)); err != nil {
		return r, err
	}
	if r.Right, err = pipeline.Source(ctx, NewImage(4, 3, 0x55)); err != nil {
		return r, err
	}
	r.Composite, err = HConcat.Apply(ctx, r.Left, r.Right)
	return r, err
}
