package localfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/storage"
)

const zstdSuffix = ".zst"

// CAS is a local filesystem-backed content-addressable store.
//
// Objects are stored immutably under <root>/<first two CID chars>/<cid>,
// optionally zstd-compressed with a ".zst" suffix. Reads accept either form,
// so a store may be switched to compression without rewriting old objects.
type CAS struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Option configures a CAS.
type Option func(*CAS) error

// WithCompression stores new objects zstd-compressed.
func WithCompression() Option {
	return func(c *CAS) error {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		c.enc = enc
		return nil
	}
}

// New constructs a filesystem CAS rooted at root. The directory will be created if needed.
func New(root string, opts ...Option) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	c := &CAS{root: root, dec: dec}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close releases the zstd coders.
func (c *CAS) Close() error {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
	return nil
}

func (c *CAS) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}

	if existing, found, err := c.read(id); found {
		if err != nil || !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}

	path := c.pathFor(id)
	onDisk := data
	if c.enc != nil {
		path += zstdSuffix
		onDisk = c.enc.EncodeAll(data, nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			// Lost a race with another writer of the same object.
			existing, _, rerr := c.read(id)
			if rerr != nil || !bytes.Equal(existing, data) {
				return cid.Undef, storage.ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}
	defer f.Close()

	if _, err := f.Write(onDisk); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, found, err := c.read(id)
	if !found {
		return nil, storage.ErrNotFound
	}
	return b, err
}

func (c *CAS) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, p := range []string{c.pathFor(id), c.pathFor(id) + zstdSuffix} {
		if _, err := os.Stat(p); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// read loads and checks the object for id. found is false only when
// neither the plain nor the compressed file exists.
func (c *CAS) read(id cid.Cid) (data []byte, found bool, err error) {
	path := c.pathFor(id)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		path += zstdSuffix
		raw, err = os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		if err == nil {
			raw, err = c.dec.DecodeAll(raw, nil)
		}
	}
	if err != nil {
		return nil, true, err
	}
	got, err := cidutil.CIDv1RawSHA256CID(raw)
	if err != nil {
		return nil, true, err
	}
	if !got.Equals(id) {
		return nil, true, storage.ErrCIDMismatch
	}
	return raw, true, nil
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[:2], s)
}
