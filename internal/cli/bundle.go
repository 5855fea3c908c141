package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/compliance"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/model"
	"xdao.co/provchain/storage/bundle"
)

type bundleSummary struct {
	File      string `json:"file"`
	Manifests int    `json:"manifests"`
	Blocks    int    `json:"blocks"`
}

// NewBundleCommand creates the "bundle" command group.
func NewBundleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Move recorded lineage between ledgers",
	}
	cmd.AddCommand(newBundleExportCommand(rootOpts))
	cmd.AddCommand(newBundleImportCommand(rootOpts))
	return cmd
}

func newBundleExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <claim-hash>",
		Short: "Write the lineage of a claim, with payloads, as a tar bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := parseClaimArg(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return NewExitError(ExitCommandError, "--out is required")
			}
			src, closer, err := rootOpts.openSource(ctx)
			if err != nil {
				return err
			}
			defer closer()

			lin, err := src.Lineage(ctx, h, compliance.Permissive)
			if err != nil {
				return lookupErr(err)
			}

			opts := bundle.ExportOptions{Labels: map[string]cid.Cid{}, IncludeIndex: true}
			var blocks [][]byte
			for _, n := range lin.Nodes {
				claim, err := parseClaimArg(n.ClaimHash)
				if err != nil {
					return err
				}
				m, err := src.Manifest(ctx, claim)
				if err != nil {
					return lookupErr(err)
				}
				opts.Manifests = append(opts.Manifests, m)

				p, err := src.Payload(ctx, claim)
				if errors.Is(err, ledger.ErrNotFound) {
					rootOpts.Logger.WarnContext(ctx, "payload not available", "claim", n.ClaimHash)
					continue
				}
				if err != nil {
					return lookupErr(err)
				}
				id, err := cidutil.CIDv1RawSHA256CID(p)
				if err != nil {
					return err
				}
				opts.Labels[m.ClaimHash] = id
				blocks = append(blocks, p)
			}

			f, err := os.Create(out)
			if err != nil {
				return WrapExitError(ExitCommandError, "create bundle", err)
			}
			if err := bundle.WriteBlocks(f, blocks, opts); err != nil {
				_ = f.Close()
				return WrapExitError(ExitCommandError, "write bundle", err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			sum := bundleSummary{File: out, Manifests: len(opts.Manifests), Blocks: len(opts.Labels)}
			return rootOpts.formatter(cmd).Emit(sum, func(w io.Writer) {
				fmt.Fprintf(w, "exported %d manifests, %d payloads to %s\n", sum.Manifests, sum.Blocks, sum.File)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "bundle file to write")
	return cmd
}

func newBundleImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Record the manifests and payloads of a bundle in the local ledger",
		Long: `Record the manifests and payloads of a bundle in the local ledger.

Every manifest is checked against its claim hash and every block against
its CID before anything is recorded. Claims already in the ledger are left
as they are.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if rootOpts.Remote != "" {
				return NewExitError(ExitCommandError, "bundle import writes the local ledger; drop --remote")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "open bundle", err)
			}
			defer f.Close()

			contents, err := bundle.Import(ctx, f, nil)
			if err != nil {
				return WrapExitError(ExitFailure, "invalid bundle", err)
			}

			l, closer, err := rootOpts.openLedger(ctx)
			if err != nil {
				return err
			}
			defer closer()

			blocks := 0
			for _, m := range contents.Manifests {
				e, err := m.ToEntry()
				if err != nil {
					return err
				}
				if p, ok := contents.Payload(m.ClaimHash); ok {
					e.Payload = p
					blocks++
				}
				if err := l.RecordContext(ctx, e); err != nil {
					return WrapExitError(ExitCommandError, "record "+short(m.ClaimHash), err)
				}
				rootOpts.Logger.DebugContext(ctx, "imported", "claim", m.ClaimHash)
			}

			sum := bundleSummary{File: args[0], Manifests: len(contents.Manifests), Blocks: blocks}
			return rootOpts.formatter(cmd).Emit(sum, func(w io.Writer) { printImport(w, sum, contents.Manifests) })
		},
	}
}

func printImport(w io.Writer, sum bundleSummary, ms []model.Manifest) {
	fmt.Fprintf(w, "imported %d manifests, %d payloads from %s\n", sum.Manifests, sum.Blocks, sum.File)
	for _, m := range ms {
		fmt.Fprintf(w, "  %s %s\n", short(m.ClaimHash), m.Generator)
	}
}
