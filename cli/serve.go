package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/giygas/labref-api/config"
	"github.com/giygas/labref-api/data"
	"github.com/giygas/labref-api/errors"
	"github.com/giygas/labref-api/handlers"
	"github.com/giygas/labref-api/health"
	"github.com/giygas/labref-api/loader"
	"github.com/giygas/labref-api/logging"
	"github.com/giygas/labref-api/scheduler"
	"github.com/giygas/labref-api/server"
	"github.com/giygas/labref-api/validation"
	"github.com/giygas/labref-api/watcher"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the HTTP API",
		Long: `Load the reference set, serve it over HTTP and reload it on the
RELOAD_SCHEDULE cron expression. With WATCH_REFERENCES=true the reference
directory is also reloaded when its files change.

Configuration comes from the environment (and .env): PORT, ADDRESS, ENV,
LOG_LEVEL, LOG_DIR, LAB_REF_DIR, RELOAD_SCHEDULE, WATCH_REFERENCES, ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.dir != "" {
				cfg.ReferenceDir = opts.dir
			}
			return runServe(cmd.Context(), cfg, opts.verbose > 0)
		},
	}
}

// runServe runs the server until SIGINT or SIGTERM
func runServe(ctx context.Context, cfg *config.Config, verbose bool) error {
	logging.InitLoggerFromConfig(cfg, verbose)
	defer logging.Close()

	store := data.NewDataContainer()
	store.SetServerStartTime(time.Now())

	l := loader.New(cfg.ReferenceDir)
	sched := scheduler.NewScheduler(store, l, cfg.ReloadSchedule)
	if err := sched.Start(); err != nil {
		return errors.Wrap(err, "failed to load the reference set")
	}
	defer sched.Stop()

	if cfg.WatchReferences {
		w, err := watcher.New(cfg.ReferenceDir, cfg.WatchDebounce, func(ctx context.Context) error {
			return sched.ReloadFor(ctx, scheduler.TriggerWatch)
		})
		if err != nil {
			return err
		}
		w.Start()
		defer w.Stop()
		logging.Info("Watching reference directory", "dir", cfg.ReferenceDir, "debounce", cfg.WatchDebounce)
	}

	h := handlers.NewHTTPHandler(store, validation.NewDataValidator(), health.NewHealthChecker(store, sched))
	srv := server.NewServer(cfg, h)

	pterm.Info.Printf("Serving %s on http://%s:%s\n", l.Location(), cfg.Address, cfg.Port)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown error")
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}
