package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"risk-vetting-engine/safelist"
	"risk-vetting-engine/vetting"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		go safelist.Refresh(ctx, a.cache, a.cfg.SafeListRefresh)

		handler := vetting.NewHandler(a.engine, a.cache, a.logger)
		srv := &http.Server{
			Addr: a.cfg.ListenAddr,
			Handler: handler.Router(vetting.ServerOptions{
				RequestTimeout: a.cfg.RequestTimeout(),
				RateLimit:      rate.Limit(a.cfg.RateLimitRPS),
				RateBurst:      a.cfg.RateLimitBurst,
			}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      a.cfg.RequestTimeout() + 15*time.Second,
			IdleTimeout:       120 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			a.logger.Infow("[Server] listening", "addr", srv.Addr)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Infow("[Server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
