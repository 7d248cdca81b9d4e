package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kridavyuha/auction-server/internals/auction"
	"github.com/kridavyuha/auction-server/internals/auth"
	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/leaderboard"
	"github.com/kridavyuha/auction-server/internals/ledger"
	"github.com/kridavyuha/auction-server/internals/queue"
	"github.com/kridavyuha/auction-server/internals/squad"
	"github.com/kridavyuha/auction-server/internals/storage"
	"github.com/kridavyuha/auction-server/pkg/conf"
	"github.com/kridavyuha/auction-server/pkg/kvstore"
	"github.com/kridavyuha/auction-server/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type App struct {
	DB      *gorm.DB
	R       *chi.Mux
	KVStore kvstore.KVStore
	Hub     *broadcast.Hub
	Relay   broadcast.Relay
	Engine  *auction.Engine
	Ledger  *ledger.LedgerService
	Queue   *queue.QueueService
	Squads  *squad.SquadService
	Auth    *auth.AuthService
	Monitor *storage.Monitor
	Logger  zerolog.Logger
	Config  *conf.Config

	Leaderboard *leaderboard.Leaderboard
}

func main() {
	cfg, err := conf.Load(".")
	if err != nil {
		l := logger.New("info")
		l.Fatal().Err(err).Msg("could not load configuration")
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{Config: cfg, Logger: log}
	if err := app.initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.close()

	if err := app.run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

// run serves HTTP and keeps the storage monitor and the relay consumer going
// until ctx is cancelled or one of them fails.
func (app *App) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.Config.Server.Addr,
		Handler:           app.R,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Monitor.Run(ctx)
	})

	relayDone, err := app.Hub.StartRelay(ctx)
	if err != nil {
		return err
	}
	g.Go(func() error {
		select {
		case <-relayDone:
			if ctx.Err() == nil {
				return errors.New("broadcast relay closed")
			}
		case <-ctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		app.Logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
