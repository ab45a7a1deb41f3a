package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pushchain/pdurable/relayer/api"
	"github.com/pushchain/pdurable/relayer/metrics"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(v *viper.Viper) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drain on an interval and serve queue status, health and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(v, logOutput)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.cfg.QueryServerPort = port
			}
			a.metrics = metrics.New()

			q, err := a.openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			records, err := q.Load(ctx)
			if err != nil {
				return err
			}
			a.metrics.SetQueueDepth(len(records))

			client, err := a.dial(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			server := api.NewServer(a.logger, a.cfg.QueryServerPort, q, client, a.metrics)
			if err := server.Start(); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					a.logger.Error().Err(err).Msg("failed to stop query server")
				}
			}()

			drained := a.drainer(client, q).Start(ctx)
			a.logger.Info().
				Int("port", a.cfg.QueryServerPort).
				Int("staged", len(records)).
				Dur("interval", a.cfg.DrainInterval()).
				Msg("serving")

			<-ctx.Done()
			a.logger.Info().Msg("shutting down")
			<-drained
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "query server port (overrides query_server_port)")
	return cmd
}
