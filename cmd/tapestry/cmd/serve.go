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
	"go.uber.org/zap"

	"github.com/pthm/tapestry"
	"github.com/pthm/tapestry/example/tasks"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(configFile *string) *cobra.Command {
	var (
		addr string
		seed bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task list demo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			reg, err := newRegistry(cfg, logger, seed)
			if err != nil {
				return err
			}
			defer func() {
				if err := reg.Shutdown(); err != nil {
					logger.Warn("registry shutdown", zap.Error(err))
				}
			}()
			if err := reg.PerformRegistryStartup(); err != nil {
				return err
			}

			app, err := tapestry.NewApp(reg)
			if err != nil {
				return err
			}
			app.AddPage(tasks.PageName, tasks.NewPage)
			h, err := app.Handler()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &http.Server{Addr: cfg.Addr, Handler: h}, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overriding the settings file")
	cmd.Flags().BoolVar(&seed, "seed", true, "Add sample tasks at startup")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("page", "/"+tasks.PageName))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
