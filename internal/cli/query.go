package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"xdao.co/provchain/compliance"
	"xdao.co/provchain/keys"
	"xdao.co/provchain/ledger"
	"xdao.co/provchain/model"
)

func short(hexHash string) string {
	if len(hexHash) > 16 {
		return hexHash[:16]
	}
	return hexHash
}

// NewInspectCommand creates "inspect <claim-hash>".
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <claim-hash>",
		Short: "Show a recorded manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseClaimArg(args[0])
			if err != nil {
				return err
			}
			src, closer, err := rootOpts.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			m, err := src.Manifest(cmd.Context(), h)
			if err != nil {
				return lookupErr(err)
			}
			return rootOpts.formatter(cmd).Emit(m, func(w io.Writer) { printManifest(w, m) })
		},
	}
}

func printManifest(w io.Writer, m model.Manifest) {
	fmt.Fprintf(w, "manifest   %s\n", m.ManifestID)
	fmt.Fprintf(w, "claim      %s\n", m.ClaimHash)
	fmt.Fprintf(w, "generator  %s\n", m.Generator)
	fmt.Fprintf(w, "media      %s\n", m.MediaType)
	if m.Binding.Kind == "box" {
		fmt.Fprintf(w, "binding    box %s [%d+%d]\n", m.Binding.Hash, m.Binding.Offset, m.Binding.Length)
	} else {
		fmt.Fprintf(w, "binding    %s %s\n", m.Binding.Kind, m.Binding.Hash)
	}
	if m.PayloadCID != "" {
		fmt.Fprintf(w, "payload    %s\n", m.PayloadCID)
	}
	for i, ing := range m.Ingredients {
		fmt.Fprintf(w, "ingredient %d %s %s\n", i, ing.Relation, ing.ClaimHash)
	}
	for _, a := range m.Assertions {
		fmt.Fprintf(w, "assertion  %s %s\n", a.Label, a.Data)
	}
	fmt.Fprintf(w, "signature  %d bytes\n", len(m.Signature))
	if len(m.Timestamp) > 0 {
		fmt.Fprintf(w, "timestamp  %s\n", m.Timestamp)
	}
}

// NewLineageCommand creates "lineage <claim-hash>".
func NewLineageCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "lineage <claim-hash>",
		Short: "Walk recorded ingredients back to their roots",
		Long: `Walk recorded ingredients back to their roots, breadth first.

In the default permissive mode an ancestor missing from the ledger is
reported and the walk continues. With --strict it fails the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseClaimArg(args[0])
			if err != nil {
				return err
			}
			mode := compliance.Permissive
			if strict {
				mode = compliance.Strict
			}
			src, closer, err := rootOpts.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			lin, err := src.Lineage(cmd.Context(), h, mode)
			if err != nil {
				return lookupErr(err)
			}
			return rootOpts.formatter(cmd).Emit(lin, func(w io.Writer) { printLineage(w, lin) })
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on a missing ancestor")
	return cmd
}

func printLineage(w io.Writer, lin model.Lineage) {
	fmt.Fprintf(w, "lineage %s (%s)\n", lin.Subject, lin.Compliance)
	for _, n := range lin.Nodes {
		transform := n.Transform
		if transform == "" {
			transform = "-"
		}
		fmt.Fprintf(w, "%d %s %s %s\n", n.Depth, short(n.ClaimHash), n.Generator, transform)
		for _, p := range n.Parents {
			fmt.Fprintf(w, "    %s %s\n", p.Relation, short(p.ClaimHash))
		}
	}
	roots := make([]string, len(lin.Roots))
	for i, r := range lin.Roots {
		roots[i] = short(r)
	}
	fmt.Fprintf(w, "roots: %s\n", strings.Join(roots, " "))
	if len(lin.Missing) > 0 {
		missing := make([]string, len(lin.Missing))
		for i, m := range lin.Missing {
			missing[i] = short(m)
		}
		fmt.Fprintf(w, "missing: %s\n", strings.Join(missing, " "))
	}
}

// NewAuditCommand creates "audit <claim-hash>".
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	var publicKey, hashAlg, keyName, role string

	cmd := &cobra.Command{
		Use:   "audit <claim-hash>",
		Short: "Re-check a recorded manifest",
		Long: `Recompute the claim hash from the recorded claim, check the payload bytes
against the asset binding and, when a public key is known, verify the
signature.

The key comes from --public-key, or from --key/--role in the key store.
Against --remote the server's configured key is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseClaimArg(args[0])
			if err != nil {
				return err
			}

			var verifier ledger.SignatureVerifier
			if rootOpts.Remote == "" {
				if publicKey == "" && keyName != "" {
					s, err := rootOpts.signer(keyName, role)
					if err != nil {
						return err
					}
					publicKey, hashAlg = s.PublicKey(), s.HashAlg()
				}
				if publicKey != "" {
					verifier = keys.Verifier{PublicKey: publicKey, HashAlg: hashAlg}
				}
			}

			src, closer, err := rootOpts.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			report, err := src.Audit(cmd.Context(), h, verifier)
			if err != nil {
				return lookupErr(err)
			}
			if err := rootOpts.formatter(cmd).Emit(report, func(w io.Writer) { printAudit(w, report) }); err != nil {
				return err
			}
			if !report.OK() {
				return NewExitError(ExitFailure, "audit failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKey, "public-key", "", "signer public key (ed25519:<b64> or dilithium3:<b64>)")
	cmd.Flags().StringVar(&hashAlg, "hash", keys.HashSHA256, "digest the signer applied (sha256|sha512|sha3-256)")
	cmd.Flags().StringVar(&keyName, "key", "", "take the public key from this stored identity")
	cmd.Flags().StringVar(&role, "role", "", "role key of --key")
	return cmd
}

func printAudit(w io.Writer, r model.AuditReport) {
	check := func(ran, ok bool) string {
		switch {
		case !ran:
			return "skipped"
		case ok:
			return "ok"
		default:
			return "FAILED"
		}
	}
	fmt.Fprintf(w, "claim      %s\n", check(true, r.ClaimOK))
	fmt.Fprintf(w, "payload    %s\n", check(r.PayloadChecked, r.PayloadOK))
	fmt.Fprintf(w, "signature  %s\n", check(r.SignatureChecked, r.SignatureOK))
	for _, p := range r.Problems {
		fmt.Fprintf(w, "problem: %s\n", p)
	}
}

// NewPayloadCommand creates "payload <claim-hash>".
func NewPayloadCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "payload <claim-hash>",
		Short: "Write the recorded canonical payload bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := parseClaimArg(args[0])
			if err != nil {
				return err
			}
			src, closer, err := rootOpts.openSource(cmd.Context())
			if err != nil {
				return err
			}
			defer closer()

			b, err := src.Payload(cmd.Context(), h)
			if err != nil {
				return lookupErr(err)
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(out, b, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
