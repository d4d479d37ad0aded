package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-identity/internal/app"
	"github.com/ovaphlow/pitchfork/service-identity/internal/schema"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if serveMigrate {
			if err := schema.Migrate(ctx, db); err != nil {
				return err
			}
		}

		a := app.New(cfg, db, logger, app.Options{})
		defer a.Close()
		if err := a.Sweeper.Start(cfg.SessionSweepSchedule); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errc := make(chan error, 1)
		go func() {
			logger.Infow("http.listen", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
			close(errc)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down")

		// give a short grace period for in-flight requests
		doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(doneCtx); err != nil {
			logger.Warnf("http server shutdown failed: %v", err)
		}
		if err := db.PingContext(doneCtx); err != nil {
			logger.Warnf("db ping on shutdown failed: %v", err)
		}
		logger.Info("goodbye")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create missing tables before serving")
}
