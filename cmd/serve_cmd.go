package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily backup schedule and the metrics endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.cfg.Schedule.Enabled && a.cfg.Metrics.ListenAddress == "" {
			return errors.New("nothing to serve: enable schedule or set metrics.listen_address")
		}

		sched := scheduler.New(a.manager.RunScheduled,
			scheduler.WithTimeout(a.cfg.Backup.Timeout),
			scheduler.WithLogger(a.log),
		)
		defer sched.Stop()
		if a.cfg.Schedule.Enabled {
			tod, err := config.ParseTimeOfDay(a.cfg.Schedule.TimeOfDay)
			if err != nil {
				return err
			}
			if err := sched.Configure(true, &tod); err != nil {
				return err
			}
		}

		errCh := make(chan error, 1)
		var srv *http.Server
		if addr := a.cfg.Metrics.ListenAddress; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())
			srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				a.log.Info("metrics listening", "address", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()
		}

		select {
		case <-cmd.Context().Done():
			a.log.Info("shutting down")
		case err := <-errCh:
			return err
		}
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Warn("metrics server shutdown", "error", err.Error())
			}
		}
		return nil
	},
}
