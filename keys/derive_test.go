package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xdao.co/provchain/provenance"
)

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := testSeed(0)

	a, err := DeriveRoleSeed(root, "ingest")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	b, err := DeriveRoleSeed(root, "ingest")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected deterministic derivation")
	}

	c, err := DeriveRoleSeed(root, "render")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(a) == string(c) {
		t.Fatalf("expected different roles to derive different seeds")
	}
	if _, err := DeriveRoleSeed(root, "bad role"); err == nil {
		t.Fatalf("expected invalid role to be rejected")
	}
}

func TestPublicKeyFromSeedFormat(t *testing.T) {
	pub := PublicKeyFromSeed(testSeed(0x42))
	if !strings.HasPrefix(pub, "ed25519:") {
		t.Fatalf("expected ed25519 prefix, got %q", pub)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(pub, "ed25519:"))
	if err != nil {
		t.Fatalf("expected valid base64: %v", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		t.Fatalf("expected %d pubkey bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
}

func TestKeyStore_CreateDeriveList(t *testing.T) {
	ks, err := OpenKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenKeyStore: %v", err)
	}

	pub, err := ks.Create("camera-1", testSeed(1), false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := ks.Create("camera-1", testSeed(2), false); err == nil {
		t.Fatalf("expected Create without overwrite to fail on existing key")
	}
	if _, err := ks.DeriveRole("camera-1", "render", false); err != nil {
		t.Fatalf("DeriveRole: %v", err)
	}

	info, err := os.Stat(filepath.Join(ks.Directory, "camera-1", "root.key"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("root key permissions: got %o want 600", perm)
	}

	ids, err := ks.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0].Name != "camera-1" || ids[0].PublicKey != pub {
		t.Fatalf("unexpected identities: %+v", ids)
	}
	if len(ids[0].Roles) != 1 || ids[0].Roles[0] != "render" {
		t.Fatalf("unexpected roles: %v", ids[0].Roles)
	}

	s, err := ks.Signer("camera-1", "render")
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	if s.PublicKey() == pub {
		t.Fatalf("role key must differ from root key")
	}
	if _, err := ks.Signer("missing", ""); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestClock_Timestamp(t *testing.T) {
	s, err := NewEd25519Signer(testSeed(3))
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	c := WithClock(s)
	c.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var claim provenance.ClaimHash
	claim[0] = 0xab
	tok, err := c.Timestamp(claim)
	if err != nil {
		t.Fatalf("Timestamp: %v", err)
	}
	if want := "2026-01-02T03:04:05Z " + claim.String(); string(tok) != want {
		t.Fatalf("token: got %q want %q", tok, want)
	}

	// A build requiring a timestamp succeeds with the clock attached.
	var stamped []byte
	_, err = provenance.NewBuilder(provenance.Int64(1)).
		RequireTimestamp(true).
		Journal(provenance.JournalFunc(func(e provenance.Entry) error { stamped = e.Timestamp; return nil })).
		Sign(c)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(string(stamped), "2026-01-02T03:04:05Z ") {
		t.Fatalf("unexpected timestamp token %q", stamped)
	}
}
