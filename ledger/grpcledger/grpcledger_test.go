package grpcledger

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/provchain/compliance"
	"xdao.co/provchain/keys"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/provenance"
)

func setup(t *testing.T) (*Client, *ledger.Ledger, *keys.Ed25519Signer) {
	t.Helper()
	ctx := context.Background()

	l, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	signer, err := keys.NewEd25519Signer(make([]byte, 32))
	require.NoError(t, err)

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterLedgerServer(srv, &Server{
		Ledger:   l,
		Verifier: keys.Verifier{PublicKey: signer.PublicKey(), HashAlg: signer.HashAlg()},
	})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client, l, signer
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client, l, signer := setup(t)

	root, err := provenance.NewBuilder(provenance.Int64(5)).Generator("demo").Journal(l).Sign(signer)
	require.NoError(t, err)
	child, err := provenance.NewBuilder(provenance.Int64(10)).
		Generator("demo").
		AddIngredient(root, provenance.DerivedFrom).
		Journal(l).
		Sign(signer)
	require.NoError(t, err)

	e, err := client.Entry(ctx, child.ClaimHash())
	require.NoError(t, err)
	assert.Equal(t, child.ClaimHash(), e.Claim.Hash())
	assert.Equal(t, root.ClaimHash(), e.Claim.Ingredients[0].ClaimHash)

	b, err := client.Payload(ctx, child.ClaimHash())
	require.NoError(t, err)
	assert.Equal(t, provenance.Int64(10).CanonicalBytes(), b)

	lin, err := client.Lineage(ctx, child.ClaimHash(), compliance.Strict)
	require.NoError(t, err)
	require.Len(t, lin.Nodes, 2)
	assert.Equal(t, []string{root.ClaimHash().String()}, lin.Roots)

	report, err := client.Audit(ctx, child.ClaimHash(), nil)
	require.NoError(t, err)
	assert.True(t, report.OK(), "problems: %v", report.Problems)
	assert.True(t, report.SignatureChecked)
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	ctx := context.Background()
	client, l, signer := setup(t)

	_, err := client.Manifest(ctx, provenance.ClaimHash{7})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	orphanParent, err := provenance.Root(provenance.Int64(1), "demo", signer)
	require.NoError(t, err)
	orphan, err := provenance.NewBuilder(provenance.Int64(2)).
		AddIngredient(orphanParent, provenance.DerivedFrom).
		Journal(l).
		Sign(signer)
	require.NoError(t, err)

	_, err = client.Lineage(ctx, orphan.ClaimHash(), compliance.Strict)
	assert.ErrorIs(t, err, ledger.ErrMissingAncestor)

	lin, err := client.Lineage(ctx, orphan.ClaimHash(), compliance.Permissive)
	require.NoError(t, err)
	assert.Equal(t, []string{orphanParent.ClaimHash().String()}, lin.Missing)
}

func TestServer_RejectsMalformedClaimHash(t *testing.T) {
	client, _, _ := setup(t)
	_, err := client.client.Manifest(context.Background(), wrapperspb.String("not-hex"))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "INVALID_CLAIM_HASH")
}
