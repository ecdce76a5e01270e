package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/pageindexer/internal/api"
	"github.com/jonesrussell/pageindexer/internal/events"
	"github.com/jonesrussell/pageindexer/internal/logger"
	"github.com/jonesrussell/pageindexer/internal/queue"
)

// errorChannelBufferSize buffers the server error channel so the serve
// goroutine never blocks on shutdown.
const errorChannelBufferSize = 1

func newHTTPDCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, cleanup, err := newDeps(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			apiDeps := api.Deps{
				Logger:  deps.Logger,
				Indexer: deps.Orchestrator,
				Pages:   deps.Pages,
				Jobs:    deps.Jobs,
				Sites:   deps.Sites,
				Monitor: deps.Discovery,
			}

			// Event publishing is optional; without Redis the endpoint
			// reports unavailable and everything else still works.
			if publisher := newEventPublisher(deps); publisher != nil {
				apiDeps.Publisher = publisher
			}

			router := api.SetupRouter(apiDeps)
			addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
			server := api.NewServer(addr, router)

			errChan := make(chan error, errorChannelBufferSize)
			go func() {
				deps.Logger.Info("http server listening", logger.String("addr", addr))
				if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					errChan <- serveErr
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case serveErr := <-errChan:
				return fmt.Errorf("server error: %w", serveErr)
			case sig := <-sigChan:
				deps.Logger.Info("shutdown signal received", logger.String("signal", sig.String()))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

// newEventPublisher connects to Redis for the publish endpoint. A
// connection failure is logged and disables the endpoint rather than
// failing the server.
func newEventPublisher(deps *Deps) *events.Publisher {
	streams, err := queue.NewStreamsClient(queue.StreamsConfig{
		Addr:     deps.Config.Redis.Addr,
		Password: deps.Config.Redis.Password,
		DB:       deps.Config.Redis.DB,
	})
	if err != nil {
		deps.Logger.Warn("event publishing disabled", logger.Err(err))
		return nil
	}
	return events.NewPublisher(streams.Client(), deps.Logger)
}
