package main

import (
	"context"
	"fmt"

	"github.com/kridavyuha/auction-server/internals/auction"
	"github.com/kridavyuha/auction-server/internals/auth"
	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/increment"
	"github.com/kridavyuha/auction-server/internals/leaderboard"
	"github.com/kridavyuha/auction-server/internals/ledger"
	"github.com/kridavyuha/auction-server/internals/queue"
	"github.com/kridavyuha/auction-server/internals/squad"
	"github.com/kridavyuha/auction-server/internals/storage"
	"github.com/kridavyuha/auction-server/pkg/kvstore"
)

func (app *App) initialize(ctx context.Context) error {
	if err := app.initDB(); err != nil {
		return err
	}
	if err := app.initKVStore(); err != nil {
		return err
	}
	if err := app.initRelay(); err != nil {
		return err
	}
	if err := app.initServices(ctx); err != nil {
		return err
	}
	app.initHandlers()
	return app.bootstrapOperator(ctx)
}

func (app *App) initDB() error {
	db, err := storage.Open(app.Config.DB.DSN)
	if err != nil {
		return err
	}

	var rules increment.Table
	if len(app.Config.Auction.DefaultRules) > 0 {
		if rules, err = increment.New(app.Config.Auction.DefaultRules); err != nil {
			return err
		}
	}
	if err := storage.Migrate(db, rules); err != nil {
		return err
	}
	if err := auth.Migrate(db); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}

	app.DB = db
	return nil
}

func (app *App) initKVStore() error {
	rc := app.Config.Redis
	kv, err := kvstore.NewRedis(rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return err
	}
	app.KVStore = kv
	return nil
}

func (app *App) initRelay() error {
	bc := app.Config.Broadcast
	switch bc.Relay {
	case "redis":
		app.Relay = broadcast.NewRedisRelay(app.KVStore, bc.Channel, app.Logger)
	case "amqp":
		relay, err := broadcast.NewAMQPRelay(bc.AMQPURL, bc.Exchange, app.Logger)
		if err != nil {
			return err
		}
		app.Relay = relay
	}
	return nil
}

// initServices builds the hub and the services on top of an already open DB
// and KV store, and primes the hub with the stored version.
func (app *App) initServices(ctx context.Context) error {
	bc := app.Config.Broadcast
	app.Hub = broadcast.NewHub(broadcast.Options{
		ClientBuffer: bc.ClientBuffer,
		GapTimeout:   bc.GapTimeout,
	}, app.Logger)
	if app.Relay != nil {
		app.Hub.SetRelay(app.Relay)
	}

	app.Monitor = storage.NewMonitor(app.DB, app.Config.Storage.PingInterval, app.Logger)
	app.Ledger = ledger.New(app.DB, app.Logger)
	app.Queue = queue.New(app.DB, app.Logger)
	app.Squads = squad.New(app.DB)
	app.Leaderboard = leaderboard.New(app.DB)
	app.Auth = auth.New(app.KVStore, app.DB, app.Config.Auth.Secret, app.Config.Auth.TokenTTL)
	app.Engine = auction.New(app.DB, app.Hub, app.Monitor, app.Logger, auction.Options{
		MaxRetries: app.Config.Auction.MaxRetries,
	})

	lot, err := app.Engine.CurrentLot(ctx)
	if err != nil {
		return fmt.Errorf("read auction state: %w", err)
	}
	app.Hub.Prime(broadcast.AuctionRoom, lot.Version)
	return nil
}

func (app *App) bootstrapOperator(ctx context.Context) error {
	ac := app.Config.Auth
	if ac.OperatorUser == "" {
		return nil
	}
	_, err := app.Auth.EnsureUser(ctx, ac.OperatorUser, ac.OperatorPassword, auth.RoleOperator, nil)
	if err != nil {
		return fmt.Errorf("bootstrap operator: %w", err)
	}
	return nil
}

func (app *App) close() {
	if app.Hub != nil {
		app.Hub.Close()
	}
	if app.Relay != nil {
		if err := app.Relay.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("closing relay")
		}
	}
	if app.KVStore != nil {
		app.KVStore.Close()
	}
	if app.DB != nil {
		if sqlDB, err := app.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
