/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account events on the message broker",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the account events channel and log each event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer queue.Close()

		logger.Info("tailing account events", zap.String("channel", cfg.MQ.EventsChannel))
		publisher := events.NewPublisher(queue, cfg.MQ.EventsChannel, logger)
		err = publisher.Consume(ctx, func(ctx context.Context, event events.Event) error {
			logger.Info("account event",
				zap.String("type", event.Type),
				zap.String("user_id", event.UserID),
				zap.String("email", event.Email),
				zap.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
