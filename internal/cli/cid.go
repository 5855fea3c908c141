package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"xdao.co/provchain/cidutil"
	"xdao.co/provchain/provenance"
)

type cidResult struct {
	CID    string `json:"cid"`
	Digest string `json:"digest,omitempty"`
}

// NewCIDCommand creates "cid <file>".
func NewCIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cid <file>",
		Short: "Print the CIDv1 and sha256 digest of a file",
		Long: `Print the raw-codec CIDv1 and OCI-style digest of a file's bytes.

For a payload written by 'provctl payload', both equal the content hash
in the manifest's asset binding.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read file", err)
			}
			h := provenance.Sum(b)
			res := cidResult{
				CID:    cidutil.FromContentHash(h).String(),
				Digest: cidutil.Digest(h).String(),
			}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				fmt.Fprintln(w, res.CID)
				fmt.Fprintln(w, res.Digest)
			})
		},
	}
}
