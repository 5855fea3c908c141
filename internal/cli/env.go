package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"xdao.co/provchain/keys"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/ledger/grpcledger"
	"xdao.co/provchain/provenance"
)

// openLedger opens the configured ledger, with the configured CAS (if any)
// holding payload bytes.
func (o *RootOptions) openLedger(ctx context.Context) (*ledger.Ledger, func() error, error) {
	cfg := o.Config
	lopts := []ledger.Option{ledger.WithLogger(o.Logger)}
	closeCAS := func() error { return nil }
	if cfg.HasStorage() {
		cas, closer, err := cfg.Storage.Open("")
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "open storage", err)
		}
		closeCAS = closer
		lopts = append(lopts, ledger.WithBlobs(cas))
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
		_ = closeCAS()
		return nil, nil, WrapExitError(ExitCommandError, "create ledger directory", err)
	}
	l, err := ledger.Open(ctx, cfg.Ledger.Path, lopts...)
	if err != nil {
		_ = closeCAS()
		return nil, nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	o.Logger.DebugContext(ctx, "ledger opened", "path", cfg.Ledger.Path, "cas", cfg.HasStorage())
	return l, func() error { return errors.Join(l.Close(), closeCAS()) }, nil
}

// openSource reads from provd when --remote is set, else the local ledger.
func (o *RootOptions) openSource(ctx context.Context) (grpcledger.Source, func() error, error) {
	if o.Remote == "" {
		l, closer, err := o.openLedger(ctx)
		if err != nil {
			return nil, nil, err
		}
		return l, closer, nil
	}
	c, err := grpcledger.Dial(o.Remote)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "dial "+o.Remote, err)
	}
	return c, c.Close, nil
}

func (o *RootOptions) keyStore() (*keys.KeyStore, error) {
	return keys.OpenKeyStore(o.Config.Keys.Dir)
}

// signer loads name/role from the key store, falling back to the
// configured key.
func (o *RootOptions) signer(name, role string) (*keys.Ed25519Signer, error) {
	if name == "" {
		name, role = o.Config.Keys.Name, o.Config.Keys.Role
	}
	if name == "" {
		return nil, NewExitError(ExitCommandError, "no signing key: pass --key or set keys.name (create one with 'provctl key init')")
	}
	ks, err := o.keyStore()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open key store", err)
	}
	s, err := ks.Signer(name, role)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load key", err)
	}
	return s, nil
}

func parseClaimArg(arg string) (provenance.ClaimHash, error) {
	h, err := provenance.ParseClaimHash(arg)
	if err != nil {
		return h, WrapExitError(ExitCommandError, fmt.Sprintf("invalid claim hash %q", arg), err)
	}
	return h, nil
}

// lookupErr maps ledger sentinels to exit codes.
func lookupErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrMissingAncestor):
		return WrapExitError(ExitFailure, "lineage incomplete", err)
	case errors.Is(err, ledger.ErrNotFound):
		return WrapExitError(ExitCommandError, "not recorded", err)
	default:
		return err
	}
}
