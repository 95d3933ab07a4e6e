package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/ports"
	"pqrsd/internal/platform/messaging"
)

func newWatchCmd() *cobra.Command {
	var (
		redisURL string
		topic    string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print lifecycle envelopes relayed to Redis until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := messaging.NewRedis(redisURL, "", nil)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}

			out := cmd.OutOrStdout()
			var subscriber ports.EventSubscriber = client
			err = subscriber.Subscribe(ctx, topic, "pqrsdctl-watch", func(_ context.Context, event ports.EventEnvelope) error {
				return writeJSON(out, event)
			})
			if err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL")
	cmd.Flags().StringVar(&topic, "topic", "pqrsd.request.*", "Topic or pattern to follow")
	return cmd
}
