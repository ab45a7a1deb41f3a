package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/api"
	"github.com/pushchain/pdurable/relayer/queue"
)

func queueCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the staging queue",
	}
	cmd.AddCommand(queueListCmd(v))
	cmd.AddCommand(queueAbandonCmd(v))
	return cmd
}

func queueListCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staged transactions in broadcast order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			q, err := a.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			records, err := q.Load(cmd.Context())
			if err != nil {
				return err
			}
			entries := make([]api.QueueEntry, 0, len(records))
			for _, rec := range records {
				entries = append(entries, api.Describe(rec))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "queue is empty")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NONCE\tSIGNATURE\tANCHOR\tMISSING\tSIZE")
			for _, e := range entries {
				if e.Error != "" {
					fmt.Fprintf(w, "%s\t<undecodable: %s>\t\t\t\n", e.Nonce, e.Error)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", e.Nonce, e.Signature, e.Anchor, e.MissingSignatures, e.Size)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func queueAbandonCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <nonce-address>",
		Short: "Drop the staged transaction of a nonce account without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			q, err := a.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			if err := abandon(cmd.Context(), q, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Abandoned staged transaction for nonce %s\n", args[0])
			return nil
		},
	}
}

var errNotStaged = errors.New("no transaction staged")

func abandon(ctx context.Context, q queue.Queue, nonce string) error {
	drop := func(current []queue.Record) ([]queue.Record, error) {
		next := queue.Without(current, nonce)
		if len(next) == len(current) {
			return nil, errors.Wrapf(errNotStaged, "nonce %s", nonce)
		}
		return next, nil
	}

	if u, ok := q.(queue.Updater); ok {
		return u.Update(ctx, drop)
	}
	current, err := q.Load(ctx)
	if err != nil {
		return err
	}
	next, err := drop(current)
	if err != nil {
		return err
	}
	return q.Replace(ctx, next)
}
