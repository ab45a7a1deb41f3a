package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/drainer"
)

func drainCmd(v *viper.Viper) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Broadcast every staged transaction and remove the ones that land",
		Long: `
Drain submits the staged transactions in queue order and waits for each to
reach the configured commitment. Confirmed transactions are removed from the
queue in a single write at the end of the pass. Everything else stays queued
unchanged for the next pass.

With --watch a pass runs every drain_interval_seconds until interrupted.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			q, err := a.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			client, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			d := a.drainer(client, q)
			if watch {
				a.logger.Info().Dur("interval", a.cfg.DrainInterval()).Msg("draining until interrupted")
				d.Run(ctx)
				return nil
			}

			summary, err := d.Drain(ctx)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep draining every drain interval")
	return cmd
}

func printSummary(out io.Writer, s *drainer.Summary) {
	confirmed, retained := s.Counts()
	fmt.Fprintf(out, "Sent %d transactions, %d failed\n", confirmed, retained)
	for _, f := range s.Failures {
		fmt.Fprintf(out, "  %s: %v\n", f.Nonce, f.Err)
	}
	for _, nonce := range s.Stale {
		fmt.Fprintf(out, "warning: nonce %s has advanced past its staged transaction, abandon it with `pdurable queue abandon %s`\n", nonce, nonce)
	}
}
