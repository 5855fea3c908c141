package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// MultiCAS reads through several stores in a fixed order and writes only to
// the first. Callers MUST supply a stable order; it decides which replica
// answers a read.
type MultiCAS struct {
	Adapters []CAS
}

var _ CAS = MultiCAS{}

func (m MultiCAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(m.Adapters) == 0 {
		return cid.Undef, ErrNoBackends
	}
	return m.Adapters[0].Put(ctx, data)
}

func (m MultiCAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return readThrough(ctx, m.Adapters, id)
}

func (m MultiCAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, m.Adapters, id)
}

// readThrough returns the first hit. A backend error other than ErrNotFound
// stops the walk.
func readThrough(ctx context.Context, stores []CAS, id cid.Cid) ([]byte, error) {
	for _, cas := range stores {
		if cas == nil {
			continue
		}
		b, err := cas.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func hasAny(ctx context.Context, stores []CAS, id cid.Cid) (bool, error) {
	var firstErr error
	for _, cas := range stores {
		if cas == nil {
			continue
		}
		ok, err := cas.Has(ctx, id)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}
