package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/streetcover/internal/api"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded runs, observations and summaries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.New(st, api.Options{AllowedOrigins: cfg.Server.AllowedOrigins}).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
