package cli

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/provenance"
)

const (
	zeroSeed  = "0000000000000000000000000000000000000000000000000000000000000000"
	rootHash  = "a9e3099b90e30ac051657e44456e61b19ddaec370adcf3a567d1a73278f186dd"
	finalHash = "711642c49695606c780d92dab7d8f3a37fbbc539e3ce5241b9317cd7f86010a6"
)

type harness struct {
	t      *testing.T
	dir    string
	config string
}

func newHarness(t *testing.T, extraConfig string) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := "generator: demo\n" +
		"ledger:\n  path: " + filepath.Join(dir, "ledger.db") + "\n" +
		"keys:\n  dir: " + filepath.Join(dir, "keys") + "\n" +
		extraConfig
	path := filepath.Join(dir, "provchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return &harness{t: t, dir: dir, config: path}
}

// run executes provctl and returns stdout and the error from Execute.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--config", h.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "provctl %s", strings.Join(args, " "))
	return out
}

func (h *harness) seedChain() {
	h.t.Helper()
	h.mustRun("key", "init", "--name", "test", "--seed-hex", zeroSeed)
	h.mustRun("demo", "chain", "--key", "test")
}

func TestDemoChain_Lineage(t *testing.T) {
	h := newHarness(t, "")
	h.mustRun("key", "init", "--name", "test", "--seed-hex", zeroSeed)

	out := h.mustRun("demo", "chain", "--key", "test")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], rootHash)
	assert.Contains(t, lines[2], finalHash)
	assert.True(t, strings.HasSuffix(lines[2], " 20"))

	out = h.mustRun("lineage", "--strict", finalHash)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "lineage_chain", []byte(out))
}

func TestLineage_JSON(t *testing.T) {
	h := newHarness(t, "")
	h.seedChain()

	out := h.mustRun("--format", "json", "lineage", finalHash)
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Subject string   `json:"subject"`
			Roots   []string `json:"roots"`
			Nodes   []struct {
				Transform string `json:"transform"`
			} `json:"nodes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, finalHash, resp.Data.Subject)
	assert.Equal(t, []string{rootHash}, resp.Data.Roots)
	require.Len(t, resp.Data.Nodes, 3)
	assert.Equal(t, "add_ten", resp.Data.Nodes[0].Transform)
}

func TestInspectAndPayload(t *testing.T) {
	h := newHarness(t, "")
	h.seedChain()

	out := h.mustRun("inspect", rootHash)
	assert.Contains(t, out, "manifest   urn:uuid:a9e3099b-90e3-0ac0-5165-7e44456e61b1\n")
	assert.Contains(t, out, "generator  demo\n")
	assert.Contains(t, out, "signature  64 bytes\n")

	payload := h.mustRun("payload", rootHash)
	assert.Equal(t, binary.LittleEndian.AppendUint64(nil, 5), []byte(payload))

	file := filepath.Join(h.dir, "root.bin")
	h.mustRun("payload", "--out", file, rootHash)
	out = h.mustRun("cid", file)
	want := cidutil.FromContentHash(provenance.Sum(binary.LittleEndian.AppendUint64(nil, 5)))
	assert.Contains(t, out, want.String())
	assert.Contains(t, out, "sha256:f13ee6ed54ea2aae9fc49a9faeb5da6e8ddef0e12ed5d30d35a624ae813e0485")
}

func TestAudit(t *testing.T) {
	h := newHarness(t, "")
	h.seedChain()

	out := h.mustRun("audit", "--key", "test", finalHash)
	assert.Contains(t, out, "claim      ok\n")
	assert.Contains(t, out, "payload    ok\n")
	assert.Contains(t, out, "signature  ok\n")

	out = h.mustRun("audit", finalHash)
	assert.Contains(t, out, "signature  skipped\n")

	h.mustRun("key", "init", "--name", "other")
	out, err := h.run("audit", "--key", "other", finalHash)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "signature  FAILED\n")
}

func TestDemo_WithCASStorage(t *testing.T) {
	casDir := t.TempDir()
	h := newHarness(t, "storage:\n  backends:\n    - kind: localfs\n      dir: "+casDir+"\n      compress: true\n")
	h.mustRun("key", "init", "--name", "test", "--seed-hex", zeroSeed)
	h.mustRun("demo", "images", "--key", "test")

	entries, err := os.ReadDir(casDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	out := h.mustRun("--format", "json", "demo", "chain", "--key", "test")
	assert.Contains(t, out, finalHash)
	out = h.mustRun("inspect", rootHash)
	assert.Contains(t, out, "payload    "+cidutil.FromContentHash(provenance.Sum(binary.LittleEndian.AppendUint64(nil, 5))).String())
	h.mustRun("audit", "--key", "test", finalHash)
}

func TestKeyCommands(t *testing.T) {
	h := newHarness(t, "")
	pub := strings.TrimSpace(h.mustRun("key", "init", "--name", "test", "--seed-hex", zeroSeed))
	assert.True(t, strings.HasPrefix(pub, "ed25519:"))

	_, err := h.run("key", "init", "--name", "test", "--seed-hex", zeroSeed)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "existing key without --force")

	rolePub := strings.TrimSpace(h.mustRun("key", "derive", "--from", "test", "--role", "render"))
	assert.NotEqual(t, pub, rolePub)
	assert.Equal(t, rolePub, strings.TrimSpace(h.mustRun("key", "export", "--name", "test", "--role", "render")))

	out := h.mustRun("key", "list")
	assert.Contains(t, out, "test\t"+pub+"\troles=render")
}

func TestErrors_ExitCodes(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.run("--format", "yaml", "key", "list")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("lineage", "not-a-hash")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run("inspect", rootHash)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "unknown claim")

	_, err = h.run("demo", "chain")
	assert.Equal(t, ExitCommandError, GetExitCode(err), "no signing key configured")
}

func TestBundle_ExportImport(t *testing.T) {
	src := newHarness(t, "")
	src.seedChain()

	file := filepath.Join(t.TempDir(), "chain.tar")
	out := src.mustRun("bundle", "export", finalHash, "-o", file)
	assert.Equal(t, "exported 3 manifests, 3 payloads to "+file+"\n", out)

	dst := newHarness(t, "")
	_, err := dst.run("lineage", finalHash)
	require.Error(t, err)

	out = dst.mustRun("bundle", "import", file)
	assert.True(t, strings.HasPrefix(out, "imported 3 manifests, 3 payloads from "))

	lineage := dst.mustRun("lineage", "--strict", finalHash)
	assert.Equal(t, src.mustRun("lineage", "--strict", finalHash), lineage)

	// Importing twice is a no-op.
	dst.mustRun("bundle", "import", file)
	pub := strings.TrimSpace(src.mustRun("key", "export", "--name", "test"))
	out = dst.mustRun("audit", "--public-key", pub, finalHash)
	assert.Contains(t, out, "signature  ok\n")
}

func TestBundle_ImportRejectsGarbage(t *testing.T) {
	h := newHarness(t, "")
	file := filepath.Join(t.TempDir(), "bad.tar")
	require.NoError(t, os.WriteFile(file, []byte("not a tar"), 0o600))

	_, err := h.run("bundle", "import", file)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestCAS_PutGet(t *testing.T) {
	casDir := t.TempDir()
	h := newHarness(t, "storage:\n  backends:\n    - kind: localfs\n      id: local\n      dir: "+casDir+"\n")

	file := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o600))
	id := strings.TrimSpace(h.mustRun("cas", "put", "--backend", "local", file))
	assert.Equal(t, cidutil.CIDv1RawSHA256([]byte("hello")), id)

	assert.Equal(t, "hello", h.mustRun("cas", "get", id))

	_, err := h.run("cas", "get", cidutil.CIDv1RawSHA256([]byte("absent")))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = newHarness(t, "").run("cas", "put", file)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "no storage configured")
}
