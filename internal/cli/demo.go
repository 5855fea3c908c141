package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"xdao.co/provchain/demo"
	"xdao.co/provchain/keys"
	"xdao.co/provchain/pipeline"
	"xdao.co/provchain/provenance"
)

// DemoOptions holds flags shared by the demo subcommands.
type DemoOptions struct {
	*RootOptions
	Key       string
	Role      string
	Generator string
	Stamp     bool
}

// step is one signed value printed by a demo run.
type step struct {
	Name       string `json:"name"`
	ClaimHash  string `json:"claimHash"`
	ManifestID string `json:"manifestID"`
	Value      string `json:"value"`
}

func stepOf[T provenance.Payload](name string, v provenance.Verified[T], value string) step {
	return step{
		Name:       name,
		ClaimHash:  v.ClaimHash().String(),
		ManifestID: v.Record().ManifestID(),
		Value:      value,
	}
}

// NewDemoCommand creates "demo" with the chain and images pipelines.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an example pipeline and record it in the ledger",
	}
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "", "signing identity (default: keys.name from config)")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", "", "role key of --key")
	cmd.PersistentFlags().StringVar(&opts.Generator, "generator", "", "generator label (default: generator from config)")
	cmd.PersistentFlags().BoolVar(&opts.Stamp, "timestamp", false, "attach a local time token to every manifest")

	var start int64
	chain := &cobra.Command{
		Use:   "chain",
		Short: "start → double → add_ten",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c demo.Chain
			err := opts.run(cmd.Context(), func(ctx context.Context) error {
				var err error
				c, err = demo.RunChain(ctx, demo.Number(start))
				return err
			})
			if err != nil {
				return err
			}
			steps := []step{
				stepOf("start", c.Start, fmt.Sprint(int64(c.Start.Payload()))),
				stepOf("double", c.Doubled, fmt.Sprint(int64(c.Doubled.Payload()))),
				stepOf("add_ten", c.Final, fmt.Sprint(int64(c.Final.Payload()))),
			}
			return opts.formatter(cmd).Emit(steps, printSteps(steps))
		},
	}
	chain.Flags().Int64Var(&start, "start", 5, "starting value")

	images := &cobra.Command{
		Use:   "images",
		Short: "redact, shift and horizontally concatenate grayscale images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r demo.Images
			err := opts.run(cmd.Context(), func(ctx context.Context) error {
				var err error
				r, err = demo.RunImages(ctx)
				return err
			})
			if err != nil {
				return err
			}
			dims := func(v provenance.Verified[demo.Image]) string {
				return fmt.Sprintf("%dx%d", v.Payload().Width, v.Payload().Height)
			}
			steps := []step{
				stepOf("source", r.Source, dims(r.Source)),
				stepOf("redact", r.Redacted, dims(r.Redacted)),
				stepOf("shift", r.Shifted, dims(r.Shifted)),
				stepOf("left", r.Left, dims(r.Left)),
				stepOf("right", r.Right, dims(r.Right)),
				stepOf("hconcat", r.Composite, dims(r.Composite)),
			}
			return opts.formatter(cmd).Emit(steps, printSteps(steps))
		},
	}

	cmd.AddCommand(chain, images)
	return cmd
}

// run opens the ledger and a pipeline scope journaling into it.
func (o *DemoOptions) run(ctx context.Context, body func(ctx context.Context) error) error {
	s, err := o.signer(o.Key, o.Role)
	if err != nil {
		return err
	}
	l, closeLedger, err := o.openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger()

	generator := o.Generator
	if generator == "" {
		generator = o.Config.Generator
	}
	cfg := pipeline.Config{
		Generator:        generator,
		Signer:           keys.WithClock(s),
		Journal:          l,
		RequireTimestamp: o.Stamp,
	}
	o.Logger.DebugContext(ctx, "running demo pipeline", "generator", generator, "signer", s.PublicKey())
	return pipeline.Run(ctx, cfg, body)
}

func printSteps(steps []step) func(io.Writer) {
	return func(w io.Writer) {
		for _, s := range steps {
			fmt.Fprintf(w, "%-8s %s %s\n", s.Name, s.ClaimHash, s.Value)
		}
	}
}
