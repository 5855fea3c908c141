package localfs

import (
	"context"
	"os"
	"testing"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/storage"
	"xdao.co/provchain/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		t.Cleanup(func() { _ = cas.Close() })
		return cas
	})
}

func TestLocalFS_Compressed_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir(), WithCompression())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		t.Cleanup(func() { _ = cas.Close() })
		return cas
	})
}

func TestLocalFS_ReadsAcrossCompressionModes(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	plain, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, err := plain.Put(ctx, []byte("written uncompressed"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	zst, err := New(dir, WithCompression())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := zst.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "written uncompressed" {
		t.Fatalf("unexpected bytes %q", got)
	}
	if _, err := zst.Put(ctx, []byte("written uncompressed")); err != nil {
		t.Fatalf("idempotent Put across modes failed: %v", err)
	}

	id2, err := zst.Put(ctx, []byte("written compressed"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(zst.pathFor(id2) + zstdSuffix); err != nil {
		t.Fatalf("expected compressed object on disk: %v", err)
	}
	if b, err := plain.Get(ctx, id2); err != nil || string(b) != "written compressed" {
		t.Fatalf("plain store read of compressed object: %q %v", b, err)
	}
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	ctx := context.Background()
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte("original")
	id, err := cas.Put(ctx, orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Corrupt the stored object out-of-band.
	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err = cas.Get(ctx, id)
	if err != storage.ErrCIDMismatch {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}

	// Put must not "repair" or overwrite the corrupted object.
	_, err = cas.Put(ctx, orig)
	if err != storage.ErrImmutable {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}

	wantID, err := cidutil.CIDv1RawSHA256CID(orig)
	if err != nil {
		t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
	}
	if id != wantID {
		t.Fatalf("unexpected CID: got %s want %s", id, wantID)
	}
}
