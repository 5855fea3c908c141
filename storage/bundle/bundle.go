// Package bundle moves recorded lineage between ledgers as a deterministic
// TAR archive:
//
//	blocks/<cid>               payload canonical bytes, named by raw CIDv1
//	manifests/<claim-hash>.json model.Manifest of each recorded claim
//	index.json                 block list and claim → payload CID labels
//
// Every block is checked against its CID and every manifest against its
// claim hash, on export and on import.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/model"
	"xdao.co/provchain/provenance"
	"xdao.co/provchain/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

// ErrClaimMismatch is returned for a manifest whose claim does not hash to
// its claim hash or file name.
var ErrClaimMismatch = errors.New("bundle: manifest claim hash mismatch")

var epoch0 = time.Unix(0, 0).UTC()

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels maps claim hashes (hex) to the CID of their payload block.
	Labels map[string]cid.Cid
	// Manifests are written under manifests/.
	Manifests []model.Manifest
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes a bundle containing the blocks for ids, read from cas.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}
	blocks := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		b, err := cas.Get(ctx, id)
		if err != nil {
			return err
		}
		got, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			return err
		}
		if !got.Equals(id) {
			return storage.ErrCIDMismatch
		}
		blocks = append(blocks, b)
	}
	return WriteBlocks(w, blocks, opts)
}

// WriteBlocks writes a bundle of the given payloads. The output bytes depend
// only on the set of blocks, labels and manifests: entries are sorted and TAR
// headers are normalized.
func WriteBlocks(w io.Writer, blocks [][]byte, opts ExportOptions) error {
	byCID := make(map[string][]byte, len(blocks))
	for _, b := range blocks {
		id, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			return err
		}
		byCID[id.String()] = b
	}
	cidStrings := sortedKeys(byCID)

	manifests := make(map[string][]byte, len(opts.Manifests))
	for _, m := range opts.Manifests {
		if err := checkManifest(m); err != nil {
			return err
		}
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		manifests[m.ClaimHash] = append(b, '\n')
	}

	tw := tar.NewWriter(w)
	fail := func(err error) error {
		_ = tw.Close()
		return err
	}

	idxBlocks := make([]indexBlock, 0, len(cidStrings))
	for _, s := range cidStrings {
		b := byCID[s]
		if err := writeFile(tw, "blocks/"+s, b); err != nil {
			return fail(err)
		}
		idxBlocks = append(idxBlocks, indexBlock{CID: s, Size: len(b)})
	}
	for _, h := range sortedKeys(manifests) {
		if err := writeFile(tw, "manifests/"+h+".json", manifests[h]); err != nil {
			return fail(err)
		}
	}

	if opts.IncludeIndex {
		idx := indexJSON{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    idxBlocks,
		}
		if len(opts.Labels) > 0 {
			keys := make([]string, 0, len(opts.Labels))
			for k := range opts.Labels {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			labels := make([]indexLabel, 0, len(keys))
			for _, k := range keys {
				if k == "" {
					return fail(fmt.Errorf("bundle: empty label key"))
				}
				v := opts.Labels[k]
				if !v.Defined() {
					return fail(storage.ErrInvalidCID)
				}
				if _, ok := byCID[v.String()]; !ok {
					return fail(fmt.Errorf("bundle: label %s names a block not in the bundle", k))
				}
				labels = append(labels, indexLabel{Name: k, CID: v.String()})
			}
			idx.Labels = labels
		}

		b, err := marshalCanonicalIndexJSON(idx)
		if err != nil {
			return fail(err)
		}
		if err := writeFile(tw, "index.json", b); err != nil {
			return fail(err)
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown controls whether unknown TAR entries are ignored.
	//
	// Default (false) is fail-closed: unknown entries cause Import to return an error.
	IgnoreUnknown bool
}

// Contents is what Import read from a bundle.
type Contents struct {
	// Blocks maps CID strings to block bytes.
	Blocks    map[string][]byte
	Labels    map[string]cid.Cid
	Manifests []model.Manifest
}

// Payload returns the payload block labelled with claim hash h.
func (c Contents) Payload(h string) ([]byte, bool) {
	id, ok := c.Labels[h]
	if !ok {
		return nil, false
	}
	b, ok := c.Blocks[id.String()]
	return b, ok
}

// Import reads a bundle from r, copying its blocks into cas when cas is
// not nil. Default behavior is fail-closed: unknown entries cause an error.
func Import(ctx context.Context, r io.Reader, cas storage.CAS) (Contents, error) {
	return ImportWithOptions(ctx, r, cas, ImportOptions{})
}

// ImportWithOptions is Import with options. Each block's bytes must match
// both the filename CID and the computed CID.
func ImportWithOptions(ctx context.Context, r io.Reader, cas storage.CAS, opts ImportOptions) (Contents, error) {
	out := Contents{Blocks: map[string][]byte{}, Labels: map[string]cid.Cid{}}
	var idx *indexJSON

	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Contents{}, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return Contents{}, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return Contents{}, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		switch {
		case name == "index.json":
			idx = &indexJSON{}
			if err := json.NewDecoder(tr).Decode(idx); err != nil {
				return Contents{}, fmt.Errorf("bundle: index.json: %w", err)
			}
		case strings.HasPrefix(name, "manifests/"):
			var m model.Manifest
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return Contents{}, fmt.Errorf("bundle: %s: %w", name, err)
			}
			if strings.TrimSuffix(strings.TrimPrefix(name, "manifests/"), ".json") != m.ClaimHash {
				return Contents{}, fmt.Errorf("%w: %s", ErrClaimMismatch, name)
			}
			if err := checkManifest(m); err != nil {
				return Contents{}, err
			}
			out.Manifests = append(out.Manifests, m)
		case strings.HasPrefix(name, "blocks/"):
			if err := importBlock(ctx, tr, name, cas, out.Blocks); err != nil {
				return Contents{}, err
			}
		default:
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return Contents{}, fmt.Errorf("bundle: unknown entry: %s", name)
		}
	}

	if idx != nil {
		for _, l := range idx.Labels {
			id, err := cid.Decode(l.CID)
			if err != nil {
				return Contents{}, storage.ErrInvalidCID
			}
			out.Labels[l.Name] = id
		}
	}
	return out, nil
}

func importBlock(ctx context.Context, r io.Reader, name string, cas storage.CAS, blocks map[string][]byte) error {
	id, err := cid.Decode(strings.TrimPrefix(name, "blocks/"))
	if err != nil || !id.Defined() {
		return storage.ErrInvalidCID
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	got, err := cidutil.CIDv1RawSHA256CID(payload)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return storage.ErrCIDMismatch
	}

	key := id.String()
	if _, ok := blocks[key]; ok {
		return fmt.Errorf("bundle: duplicate block entry: %s", key)
	}
	blocks[key] = payload

	if cas == nil {
		return nil
	}
	putID, err := cas.Put(ctx, payload)
	if err != nil {
		return err
	}
	if !putID.Equals(id) {
		return storage.ErrCIDMismatch
	}
	return nil
}

func checkManifest(m model.Manifest) error {
	want, err := provenance.ParseClaimHash(m.ClaimHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClaimMismatch, err)
	}
	e, err := m.ToEntry()
	if err != nil {
		return fmt.Errorf("bundle: manifest %s: %w", m.ClaimHash, err)
	}
	if e.Claim.Hash() != want {
		return fmt.Errorf("%w: %s", ErrClaimMismatch, m.ClaimHash)
	}
	return nil
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

func marshalCanonicalIndexJSON(idx indexJSON) ([]byte, error) {
	// indexJSON is composed only of structs + slices; encoding/json will be deterministic.
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanTarPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return strings.Join(parts, "/")
}
