package casconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/provchain/storage"
	"xdao.co/provchain/storage/ipfs"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
write_policy: all
backends:
  - kind: localfs
    dir: /tmp/a
    compress: true
  - kind: grpc
    id: mirror
    target: localhost:7777
    timeout: 5s
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "all", cfg.WritePolicy)
	require.Len(t, cfg.Backends, 2)
	assert.True(t, cfg.Backends[0].Compress)
	assert.Equal(t, "mirror", cfg.Backends[1].name())
	assert.Equal(t, 5*time.Second, cfg.Backends[1].Timeout)
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"empty":          {},
		"missing dir":    {Backends: []BackendConfig{{Kind: "localfs"}}},
		"missing kind":   {Backends: []BackendConfig{{Dir: "x"}}},
		"unknown kind":   {Backends: []BackendConfig{{Kind: "s3"}}},
		"duplicate id":   {Backends: []BackendConfig{{Kind: "localfs", Dir: "a"}, {Kind: "localfs", Dir: "b"}}},
		"bad policy":     {WritePolicy: "some", Backends: []BackendConfig{{Kind: "localfs", Dir: "a"}}},
		"missing target": {Backends: []BackendConfig{{Kind: "grpc"}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOpen_Policies(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	backends := []BackendConfig{
		{Kind: "localfs", ID: "a", Dir: dirA},
		{Kind: "localfs", ID: "b", Dir: dirB, Compress: true},
	}

	cas, closeFn, err := Config{WritePolicy: "all", Backends: backends}.Open("")
	require.NoError(t, err)
	defer closeFn()
	_, ok := cas.(storage.ReplicatingCAS)
	require.True(t, ok, "expected ReplicatingCAS, got %T", cas)

	id, err := cas.Put(context.Background(), []byte("both"))
	require.NoError(t, err)

	first, closeFirst, err := Config{Backends: backends}.Open("b")
	require.NoError(t, err)
	defer closeFirst()
	multi, ok := first.(storage.MultiCAS)
	require.True(t, ok, "expected MultiCAS, got %T", first)
	require.Len(t, multi.Adapters, 2)

	has, err := multi.Adapters[0].Has(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, has)

	_, _, err = Config{Backends: backends}.Open("missing")
	assert.Error(t, err)
}

func TestOpen_IPFS(t *testing.T) {
	cfg := Config{Backends: []BackendConfig{{Kind: "ipfs", IPFSPath: t.TempDir()}}}
	require.NoError(t, cfg.Validate())

	cas, closeFn, err := cfg.Open("ipfs")
	require.NoError(t, err)
	defer closeFn()
	_, ok := cas.(*ipfs.CAS)
	assert.True(t, ok, "expected *ipfs.CAS, got %T", cas)
}
