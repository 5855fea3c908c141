package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/provchain/provenance"
)

type hashSigner struct {
	mu    sync.Mutex
	calls int
}

func (s *hashSigner) Sign(claim []byte) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	sum := sha256.Sum256(claim)
	return sum[:], nil
}

func (s *hashSigner) CertificateChain() [][]byte { return nil }

type offset struct{ dx, dy int32 }

func (o offset) CanonicalBytes() []byte {
	b := binary.LittleEndian.AppendUint32(nil, uint32(o.dx))
	return binary.LittleEndian.AppendUint32(b, uint32(o.dy))
}

type shiftParams struct {
	Offset offset
	Scale  provenance.Float64
}

var shift = MapWith("shift",
	func(in provenance.Int64, p shiftParams) provenance.Int64 {
		return provenance.Int64(float64(in+provenance.Int64(p.Offset.dx)) * float64(p.Scale))
	},
	[]Param[shiftParams]{
		CanonicalParam("offset", func(p shiftParams) provenance.Canonical { return p.Offset }),
		CanonicalParam("scale", func(p shiftParams) provenance.Canonical { return p.Scale }),
	},
)

var (
	double = Map("double", func(v provenance.Int64) provenance.Int64 { return v * 2 })
	addTen = Map("add_ten", func(v provenance.Int64) provenance.Int64 { return v + 10 })
)

func recoverScopeError(t *testing.T, fn func()) (se *ScopeError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		se, ok = r.(*ScopeError)
		require.True(t, ok, "panic value %T is not *ScopeError", r)
	}()
	fn()
	return nil
}

func TestRun_Chain(t *testing.T) {
	signer := &hashSigner{}
	var start, doubled, final provenance.Verified[provenance.Int64]

	err := Run(context.Background(), Config{Generator: "demo", Signer: signer}, func(ctx context.Context) error {
		var err error
		if start, err = Source(ctx, provenance.Int64(5)); err != nil {
			return err
		}
		if doubled, err = double.Apply(ctx, start); err != nil {
			return err
		}
		final, err = addTen.Apply(ctx, doubled)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, provenance.Int64(20), final.Payload())
	assert.Equal(t, 3, signer.calls)
	assert.Equal(t, "a9e3099b90e30ac051657e44456e61b19ddaec370adcf3a567d1a73278f186dd", start.ClaimHash().String())
	assert.True(t, start.Record().IsRoot())
	require.Equal(t, 1, final.Record().NumIngredients())
	assert.Equal(t, doubled.ClaimHash(), final.Record().Ingredient(0).ClaimHash)
	assert.Equal(t, start.ClaimHash(), doubled.Record().Ingredient(0).ClaimHash)
	assert.Equal(t, provenance.DerivedFrom, doubled.Record().Ingredient(0).Relation)
}

func TestRun_Deterministic(t *testing.T) {
	run := func() provenance.ClaimHash {
		var out provenance.Verified[provenance.Int64]
		err := Run(context.Background(), Config{Generator: "demo", Signer: &hashSigner{}}, func(ctx context.Context) error {
			in, err := Source(ctx, provenance.Int64(5))
			if err != nil {
				return err
			}
			out, err = double.Apply(ctx, in)
			return err
		})
		require.NoError(t, err)
		return out.ClaimHash()
	}
	assert.Equal(t, run(), run())
}

func TestMapWith_ParamCommits(t *testing.T) {
	var journal []provenance.Entry
	cfg := Config{
		Generator: "demo",
		Signer:    &hashSigner{},
		Journal:   provenance.JournalFunc(func(e provenance.Entry) error { journal = append(journal, e); return nil }),
	}

	apply := func(p shiftParams) provenance.Verified[provenance.Int64] {
		var out provenance.Verified[provenance.Int64]
		err := Run(context.Background(), cfg, func(ctx context.Context) error {
			in, err := Source(ctx, provenance.Int64(100))
			if err != nil {
				return err
			}
			out, err = shift.Apply(ctx, in, p)
			return err
		})
		require.NoError(t, err)
		return out
	}

	a := apply(shiftParams{Offset: offset{5, 10}, Scale: 2})
	b := apply(shiftParams{Offset: offset{5, 10}, Scale: 2})
	c := apply(shiftParams{Offset: offset{6, 10}, Scale: 2})

	assert.Equal(t, provenance.Int64(210), a.Payload())
	assert.Equal(t, a.ClaimHash(), b.ClaimHash())
	assert.NotEqual(t, a.ClaimHash(), c.ClaimHash())

	// The shift manifest carries a transform assertion naming both commits.
	last := journal[len(journal)-1]
	require.Len(t, last.Claim.Assertions, 1)
	assertion := last.Claim.Assertions[0]
	assert.Equal(t, provenance.TransformAssertionLabel, assertion.Label)
	assert.Contains(t, string(assertion.Data), `"transform":"shift"`)
	assert.Contains(t, string(assertion.Data), provenance.Commit("offset", offset{6, 10}).HashHex())
	assert.Contains(t, string(assertion.Data), provenance.Commit("scale", provenance.Float64(2)).HashHex())
}

func TestCompose2_FanIn(t *testing.T) {
	concat := Compose2("concat", func(a provenance.Text, b provenance.Int64) provenance.Text {
		return a + provenance.Text(rune('0'+b))
	})

	err := Run(context.Background(), Config{Generator: "demo", Signer: &hashSigner{}}, func(ctx context.Context) error {
		a, err := Source(ctx, provenance.Text("n="))
		if err != nil {
			return err
		}
		b, err := Source(ctx, provenance.Int64(7))
		if err != nil {
			return err
		}
		out, err := concat.Apply(ctx, a, b)
		if err != nil {
			return err
		}
		assert.Equal(t, provenance.Text("n=7"), out.Payload())
		require.Equal(t, 2, out.Record().NumIngredients())
		assert.Equal(t, a.ClaimHash(), out.Record().Ingredient(0).ClaimHash)
		assert.Equal(t, b.ClaimHash(), out.Record().Ingredient(1).ClaimHash)
		assert.Equal(t, provenance.ComposedFrom, out.Record().Ingredient(0).Relation)
		return nil
	})
	require.NoError(t, err)
}

func TestComposeN_ArityAndOrder(t *testing.T) {
	sum := ComposeN("sum", func(in []provenance.Int64) provenance.Int64 {
		var s provenance.Int64
		for _, v := range in {
			s += v
		}
		return s
	})

	err := Run(context.Background(), Config{Generator: "demo", Signer: &hashSigner{}}, func(ctx context.Context) error {
		a, _ := Source(ctx, provenance.Int64(1))
		b, _ := Source(ctx, provenance.Int64(2))
		c, _ := Source(ctx, provenance.Int64(3))

		abc, err := sum.Apply(ctx, a, b, c)
		require.NoError(t, err)
		cba, err := sum.Apply(ctx, c, b, a)
		require.NoError(t, err)
		assert.Equal(t, abc.Payload(), cba.Payload())
		assert.NotEqual(t, abc.ClaimHash(), cba.ClaimHash())

		_, err = sum.Apply(ctx, a)
		assert.Equal(t, provenance.RuleTooFewInputs, provenance.RuleID(err))
		return nil
	})
	require.NoError(t, err)
}

func TestTryMap_FailureIsDerivationError(t *testing.T) {
	errNegative := errors.New("negative input")
	checked := TryMap("sqrt", func(v provenance.Int64) (provenance.Int64, error) {
		if v < 0 {
			return 0, errNegative
		}
		return v, nil
	})

	signer := &hashSigner{}
	err := Run(context.Background(), Config{Signer: signer}, func(ctx context.Context) error {
		in, err := Source(ctx, provenance.Int64(-4))
		require.NoError(t, err)
		_, err = checked.Apply(ctx, in)
		return err
	})
	require.Error(t, err)
	assert.True(t, provenance.IsKind(err, provenance.KindDerivation))
	assert.ErrorIs(t, err, errNegative)
	assert.Equal(t, 1, signer.calls, "failed transform must not sign")
}

func TestTryMapWith_FailureSkipsParamCommits(t *testing.T) {
	errRejected := errors.New("rejected")
	encoded := 0
	scaled := TryMapWith("scale",
		func(v provenance.Int64, f provenance.Int64) (provenance.Int64, error) {
			if f == 0 {
				return 0, errRejected
			}
			return v * f, nil
		},
		[]Param[provenance.Int64]{{Name: "factor", Encode: func(f provenance.Int64) []byte {
			encoded++
			return f.CanonicalBytes()
		}}},
	)

	err := Run(context.Background(), Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
		in, err := Source(ctx, provenance.Int64(3))
		require.NoError(t, err)

		_, err = scaled.Apply(ctx, in, 0)
		assert.ErrorIs(t, err, errRejected)
		assert.Zero(t, encoded, "parameters are committed only after the function succeeds")

		out, err := scaled.Apply(ctx, in, 2)
		require.NoError(t, err)
		assert.Equal(t, provenance.Int64(6), out.Payload())
		assert.Equal(t, 1, encoded)
		return nil
	})
	require.NoError(t, err)
}

func TestApply_RejectsZeroVerified(t *testing.T) {
	err := Run(context.Background(), Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
		_, err := double.Apply(ctx, provenance.Verified[provenance.Int64]{})
		return err
	})
	assert.Equal(t, provenance.RuleUnsealed, provenance.RuleID(err))
}

func TestScope_ContextAssertions(t *testing.T) {
	note, err := provenance.JSONAssertion("com.example.note", map[string]string{"by": "test"})
	require.NoError(t, err)

	var entries []provenance.Entry
	cfg := Config{
		Signer:     &hashSigner{},
		Assertions: []provenance.CustomAssertion{note},
		Journal:    provenance.JournalFunc(func(e provenance.Entry) error { entries = append(entries, e); return nil }),
	}
	err = Run(context.Background(), cfg, func(ctx context.Context) error {
		in, err := Source(ctx, provenance.Int64(1))
		if err != nil {
			return err
		}
		_, err = double.Apply(ctx, in)
		return err
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "com.example.note", e.Claim.Assertions[0].Label)
		assert.Equal(t, provenance.DefaultGenerator, e.Claim.Generator)
	}
}

func TestScope_Nested(t *testing.T) {
	cfg := Config{Signer: &hashSigner{}}
	_ = Run(context.Background(), cfg, func(ctx context.Context) error {
		se := recoverScopeError(t, func() {
			_ = Run(ctx, cfg, func(context.Context) error { return nil })
		})
		assert.Equal(t, ScopeNested, se.Code)
		assert.Equal(t, "pipeline: pipeline cannot be nested", se.Error())
		return nil
	})
}

func TestScope_Missing(t *testing.T) {
	in, err := provenance.Root(provenance.Int64(1), "demo", &hashSigner{})
	require.NoError(t, err)

	se := recoverScopeError(t, func() { _, _ = double.Apply(context.Background(), in) })
	assert.Equal(t, ScopeMissing, se.Code)
	assert.Equal(t, "double", se.Op)

	se = recoverScopeError(t, func() { _, _ = Source(context.Background(), provenance.Int64(1)) })
	assert.Equal(t, ScopeMissing, se.Code)
}

func TestScope_Closed(t *testing.T) {
	var leaked context.Context
	var in provenance.Verified[provenance.Int64]
	err := Run(context.Background(), Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
		leaked = ctx
		var err error
		in, err = Source(ctx, provenance.Int64(1))
		return err
	})
	require.NoError(t, err)
	assert.False(t, Active(leaked))

	se := recoverScopeError(t, func() { _, _ = double.Apply(leaked, in) })
	assert.Equal(t, ScopeClosed, se.Code)

	// A closed scope does not block a new run.
	err = Run(leaked, Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
		assert.True(t, Active(ctx))
		return nil
	})
	assert.NoError(t, err)
}

func TestScope_Reentrant(t *testing.T) {
	err := Run(context.Background(), Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
		in, err := Source(ctx, provenance.Int64(1))
		require.NoError(t, err)

		reentrant := Map("outer", func(v provenance.Int64) provenance.Int64 {
			se := recoverScopeError(t, func() { _, _ = double.Apply(ctx, in) })
			assert.Equal(t, ScopeBusy, se.Code)
			assert.Equal(t, "outer", se.Holder)
			assert.Equal(t, "pipeline: double called while outer holds the pipeline scope (re-entrant or concurrent use)", se.Error())
			return v
		})
		_, err = reentrant.Apply(ctx, in)
		require.NoError(t, err)

		// The scope is usable again once the outer call returned.
		_, err = double.Apply(ctx, in)
		return err
	})
	require.NoError(t, err)
}

func TestScope_ClosesOnPanic(t *testing.T) {
	var leaked context.Context
	func() {
		defer func() { _ = recover() }()
		_ = Run(context.Background(), Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
			leaked = ctx
			panic("body failed")
		})
	}()
	assert.False(t, Active(leaked))
}

func TestClear(t *testing.T) {
	err := Run(context.Background(), Config{Signer: &hashSigner{}}, func(ctx context.Context) error {
		in, err := Source(ctx, provenance.Int64(100))
		require.NoError(t, err)
		_, err = shift.Apply(ctx, in, shiftParams{Offset: offset{1, 1}, Scale: 1})
		require.NoError(t, err)

		s, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "shift", s.TransformContext().TransformName)
		assert.Len(t, s.TransformContext().ParamCommits, 2)

		Clear(ctx)
		assert.Empty(t, s.TransformContext().TransformName)
		assert.Empty(t, s.TransformContext().ParamCommits)
		return nil
	})
	require.NoError(t, err)
}

func TestDetach(t *testing.T) {
	cfg := Config{Signer: &hashSigner{}}
	err := Run(context.Background(), cfg, func(ctx context.Context) error {
		detached := Detach(ctx)
		assert.False(t, Active(detached))
		return Run(detached, cfg, func(inner context.Context) error {
			assert.True(t, Active(inner))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestBranches(t *testing.T) {
	signer := &hashSigner{}
	cfg := Config{Generator: "demo", Signer: signer}

	var left, right provenance.Verified[provenance.Int64]
	err := Run(context.Background(), cfg, func(ctx context.Context) error {
		return Branches(ctx, cfg,
			func(ctx context.Context) error {
				in, err := Source(ctx, provenance.Int64(5))
				if err != nil {
					return err
				}
				left, err = double.Apply(ctx, in)
				return err
			},
			func(ctx context.Context) error {
				in, err := Source(ctx, provenance.Int64(5))
				if err != nil {
					return err
				}
				right, err = addTen.Apply(ctx, in)
				return err
			},
		)
	})
	require.NoError(t, err)
	assert.Equal(t, provenance.Int64(10), left.Payload())
	assert.Equal(t, provenance.Int64(15), right.Payload())
	assert.Equal(t, left.Record().Ingredient(0).ClaimHash, right.Record().Ingredient(0).ClaimHash)
	assert.Equal(t, 4, signer.calls)
}

func TestBranches_FirstError(t *testing.T) {
	errBranch := errors.New("branch failed")
	err := Branches(context.Background(), Config{Signer: &hashSigner{}},
		func(context.Context) error { return errBranch },
		func(ctx context.Context) error { <-ctx.Done(); return nil },
	)
	assert.ErrorIs(t, err, errBranch)
}
