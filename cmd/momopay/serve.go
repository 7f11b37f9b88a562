package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/momopay/api/routes"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *globalOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local payment agent API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *opts)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					a.logg.Error(context.Background(), "error closing resources", err)
				}
			}()
			a.start(ctx)

			if port == "" {
				port = a.cfg.Server.Port
			}
			addr := ":" + port
			server := &http.Server{
				Addr: addr,
				Handler: routes.NewRouter(a.cfg, a.logg, routes.Deps{
					Payments: a.service,
					Store:    a.service,
					Notices:  a.bridge,
					Gatherer: a.registry,
				}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			logCtx := a.logg.WithFields(ctx, map[string]any{
				"env":    a.cfg.App.Env,
				"addr":   addr,
				"driver": a.cfg.Store.NormalizedDriver(),
			})
			a.logg.Info(logCtx, "starting payment agent")

			errCh := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					a.logg.Error(logCtx, "payment agent stopped unexpectedly", err)
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logg.Info(logCtx, "shutting down payment agent")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to MOMOPAY_SERVER_PORT)")
	return cmd
}
