package cli

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"xdao.co/provchain/keys"
)

// NewKeyCommand creates "key" and its subcommands.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage signing identities in the local key store",
	}
	cmd.AddCommand(newKeyInitCommand(rootOpts))
	cmd.AddCommand(newKeyDeriveCommand(rootOpts))
	cmd.AddCommand(newKeyListCommand(rootOpts))
	cmd.AddCommand(newKeyExportCommand(rootOpts))
	return cmd
}

type keyResult struct {
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	PublicKey string `json:"publicKey"`
}

func newKeyInitCommand(rootOpts *RootOptions) *cobra.Command {
	var name, seedHex string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a root identity",
		Long: `Create a root Ed25519 identity. Without --seed-hex a random seed is used.

Examples:
  provctl key init --name camera-1
  provctl key init --name test --seed-hex 0000000000000000000000000000000000000000000000000000000000000000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, ed25519.SeedSize)
			if seedHex != "" {
				var err error
				if seed, err = keys.ParseSeedHex(seedHex); err != nil {
					return WrapExitError(ExitCommandError, "--seed-hex", err)
				}
			} else if _, err := io.ReadFull(rand.Reader, seed); err != nil {
				return err
			}

			ks, err := rootOpts.keyStore()
			if err != nil {
				return err
			}
			pub, err := ks.Create(name, seed, force)
			if err != nil {
				return WrapExitError(ExitCommandError, "create key", err)
			}
			res := keyResult{Name: name, PublicKey: pub}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				fmt.Fprintln(w, pub)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "identity name")
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "32-byte Ed25519 seed as 64 hex chars")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeyDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	var from, role string
	var force bool

	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive a role key from a root identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := rootOpts.keyStore()
			if err != nil {
				return err
			}
			pub, err := ks.DeriveRole(from, role, force)
			if err != nil {
				return WrapExitError(ExitCommandError, "derive key", err)
			}
			res := keyResult{Name: from, Role: role, PublicKey: pub}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				fmt.Fprintln(w, pub)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "root identity name")
	cmd.Flags().StringVar(&role, "role", "", "role name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing role key")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newKeyListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := rootOpts.keyStore()
			if err != nil {
				return err
			}
			ids, err := ks.List()
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []keys.Identity{}
			}
			return rootOpts.formatter(cmd).Emit(ids, func(w io.Writer) {
				for _, id := range ids {
					roles := "-"
					if len(id.Roles) > 0 {
						roles = strings.Join(id.Roles, ",")
					}
					fmt.Fprintf(w, "%s\t%s\troles=%s\n", id.Name, id.PublicKey, roles)
				}
			})
		},
	}
}

func newKeyExportCommand(rootOpts *RootOptions) *cobra.Command {
	var name, role string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the public key of an identity or role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.signer(name, role)
			if err != nil {
				return err
			}
			res := keyResult{Name: name, Role: role, PublicKey: s.PublicKey()}
			return rootOpts.formatter(cmd).Emit(res, func(w io.Writer) {
				fmt.Fprintln(w, s.PublicKey())
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "identity name")
	cmd.Flags().StringVar(&role, "role", "", "role name (optional)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
