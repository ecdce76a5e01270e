package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/pageindexer/internal/events"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/queue"
	"github.com/jonesrussell/pageindexer/internal/worker"
)

func newWorkerCommand() *cobra.Command {
	var consumerID string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the submission queue worker",
		Long: `Consumes (page, engine) work items from the Redis submission stream
and dispatches them through the engine adapters. Also subscribes to
page publish events and feeds them into the queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			streams, err := queue.NewStreamsClient(queue.StreamsConfig{
				Addr:     deps.Config.Redis.Addr,
				Password: deps.Config.Redis.Password,
				DB:       deps.Config.Redis.DB,
			})
			if err != nil {
				return err
			}
			defer streams.Close()

			if consumerID == "" {
				hostname, _ := os.Hostname()
				consumerID = fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())
			}

			consumer, err := queue.NewConsumer(streams, queue.ConsumerConfig{
				ConsumerID: consumerID,
			})
			if err != nil {
				return err
			}

			handler := worker.NewSubmissionHandler(deps.Pages, deps.Sites, deps.Orchestrator)

			pool, err := worker.NewPool(worker.Config{
				Count:        deps.Config.Worker.Count,
				ItemTimeout:  worker.DefaultItemTimeout,
				DrainTimeout: worker.DefaultDrainTimeout,
			}, consumer, handler, deps.Metrics, deps.Logger)
			if err != nil {
				return err
			}

			subscriber := startSubscriber(ctx, deps, streams, consumerID)
			if subscriber != nil {
				defer subscriber.Stop()
			}

			return pool.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&consumerID, "consumer-id", "", "unique consumer identifier (default derives from hostname)")

	return cmd
}

// startSubscriber wires the page event subscriber so published pages
// flow into the submission queue without a separate process.
func startSubscriber(ctx context.Context, deps *Deps, streams *queue.StreamsClient, consumerID string) *events.Subscriber {
	producer := queue.NewProducer(streams, queue.ProducerConfig{})

	subscriber := events.NewSubscriber(
		streams.Client(), consumerID, deps.Pages, deps.Sites, producer, deps.Logger,
	)
	if subscriber == nil {
		return nil
	}

	if err := subscriber.Start(ctx); err != nil {
		deps.Logger.Error("failed to start event subscriber", logger.Err(err))
		return nil
	}
	return subscriber
}
