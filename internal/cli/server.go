package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-arena/internal/app"
	"quiz-arena/internal/config"
	"quiz-arena/internal/domain"
	"quiz-arena/internal/gameshow"
	"quiz-arena/internal/selfpaced"
	transport "quiz-arena/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	b, err := setup(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer b.Close()
	cfg, logger := b.cfg, b.logger

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	pools := b.pools()
	sessions := b.sessions(pools)

	janitor, err := app.NewJanitor(sessions, cfg.Janitor.Schedule, config.TTLDuration(cfg.Janitor.SessionMaxAge, 24*time.Hour), logger)
	if err != nil {
		return err
	}

	controller := gameshow.NewController(b.store, b.keys, sessions, logger, gameshow.Options{
		TurnSeconds: cfg.Game.TurnSeconds,
		ResultDelay: config.TTLDuration(cfg.Game.ResultDelay, gameshow.DefaultResultDelay),
	})
	defer controller.Close()
	if _, err := controller.Resume(ctx); err != nil && !errors.Is(err, domain.ErrGameNotFound) {
		logger.Warn("game show not resumed", zap.Error(err))
	}

	runner := selfpaced.NewRunner(b.store, b.keys, logger, selfpaced.Options{})
	defer runner.Close()
	if _, err := runner.Resume(ctx); err != nil && !errors.Is(err, domain.ErrGameNotFound) {
		logger.Warn("self-paced quiz not resumed", zap.Error(err))
	}

	api := transport.NewAPI(pools, sessions, controller, runner, logger)
	router := transport.NewRouter(api, transport.NewWSHandler(sessions, logger), logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz-arena", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		janitor.Start()
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		janitor.Stop(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
