package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves the workspace over HTTP: document CRUD, intents posted as bus
messages, a server-sent event stream per document and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Templates.Watch {
			if err := st.WatchTemplates(ctx); err != nil {
				logger.Warn("template watch disabled", "err", err)
			}
		}

		opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
		if cfg.Server.Metrics {
			opts = append(opts, httpAdapter.WithMetrics(st.Metrics.Handler()))
		}
		server := httpAdapter.NewServer(st.Workspace, opts...)
		srv := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: server.Routes(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("arbor server listening", "addr", srv.Addr, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				_ = st.Close(context.Background())
				return err
			}
		case <-ctx.Done():
			logger.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			_ = srv.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("stream shutdown failed", "err", err)
		}
		return st.Close(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
}
