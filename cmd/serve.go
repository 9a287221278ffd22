package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/birchwood-sourdough/orders/config"
	"github.com/birchwood-sourdough/orders/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the order API",
	Long: `Start the HTTP API along with the notification workers and the scheduled
retry and cleanup jobs. Stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(envDir)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
	switch cfg.Server.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.Server.GinMode)
	default:
		logger.WithField("gin_mode", cfg.Server.GinMode).Warn("Unknown gin mode, using release")
		gin.SetMode(gin.ReleaseMode)
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		logger.WithField("missing", strings.Join(missing, ",")).Warn("Required settings are not configured")
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.WithField("addr", srv.Addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	// The dispatcher outlives the HTTP server so orders accepted while draining still get
	// their confirmation.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server")
		app.hub.Close()
		return shutdownInOrder(srv, cfg.Server.ShutdownTimeout, stopDispatch)
	})

	g.Go(func() error {
		return app.dispatcher.Run(dispatchCtx)
	})

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Notify.RetryInterval),
			gocron.NewTask(func() {
				if n := app.dispatcher.RetryFailed(); n > 0 {
					logger.WithField("count", n).Info("Requeued failed notifications")
				}
			}),
		)
		if err != nil {
			return errors.Wrap(err, "schedule notification retries")
		}

		if app.memKV != nil {
			_, err = scheduler.NewJob(
				gocron.DurationJob(cfg.KV.SweepInterval),
				gocron.NewTask(func() {
					if n := app.memKV.Sweep(); n > 0 {
						logger.WithField("count", n).Debug("Swept expired keys")
					}
				}),
			)
			if err != nil {
				return errors.Wrap(err, "schedule kv sweep")
			}
		}

		scheduler.Start()
		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Server stopped with error")
		return err
	}
	logger.Info("Server stopped")
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// shutdownInOrder drains in-flight requests before stopping the notification workers.
func shutdownInOrder(srv shutdowner, timeout time.Duration, stopDispatch func()) error {
	defer stopDispatch()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
