package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"xdao.co/provchain/storage"
)

// NewCASCommand creates the "cas" command group for raw blocks in the
// configured storage.
func NewCASCommand(rootOpts *RootOptions) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "cas",
		Short: "Put and get raw blocks in the configured storage",
		Long: `Put and get raw blocks (CIDv1 raw + sha2-256) in the storage backends
of the config file. --backend picks the backend, by id or kind, that
receives writes and is read first.`,
	}
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "preferred backend id or kind")

	open := func() (storage.CAS, func() error, error) {
		if !rootOpts.Config.HasStorage() {
			return nil, nil, NewExitError(ExitCommandError, "no storage backends configured")
		}
		cas, closer, err := rootOpts.Config.Storage.Open(backend)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "open storage", err)
		}
		return cas, closer, nil
	}

	put := &cobra.Command{
		Use:   "put <file>",
		Short: "Store a file as one block and print its CID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read file", err)
			}
			cas, closer, err := open()
			if err != nil {
				return err
			}
			defer closer()

			id, err := cas.Put(cmd.Context(), b)
			if err != nil {
				return WrapExitError(ExitFailure, "put", err)
			}
			res := cidResult{CID: id.String()}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) { fmt.Fprintln(w, res.CID) })
		},
	}

	var out string
	get := &cobra.Command{
		Use:   "get <cid>",
		Short: "Write a block's bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cid.Decode(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid cid %q", args[0]), err)
			}
			cas, closer, err := open()
			if err != nil {
				return err
			}
			defer closer()

			b, err := cas.Get(cmd.Context(), id)
			if storage.IsNotFound(err) {
				return WrapExitError(ExitCommandError, "not stored", err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "get", err)
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(out, b, 0o644)
		},
	}
	get.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")

	cmd.AddCommand(put, get)
	return cmd
}
