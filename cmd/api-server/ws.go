package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kridavyuha/auction-server/internals/broadcast"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const snapshotAttempts = 3

func (app *App) upgrader() websocket.Upgrader {
	allowed := make(map[string]bool, len(app.Config.Server.AllowedOrigins))
	for _, o := range app.Config.Server.AllowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// handleWebSocket upgrades the connection and hands it to the hub. Clients
// send {"type":"join-room","room":"auction-room","last_seq":N} and get a
// snapshot of the current lot right after joining.
func (app *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := app.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	app.Hub.ServeConn(conn, app.sendSnapshot)
}

func (app *App) sendSnapshot(c *broadcast.Client, room string) {
	if room != broadcast.AuctionRoom {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// a commit between the read and the send makes the snapshot stale; read again
	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		ev, err := app.Engine.Snapshot(ctx)
		if err != nil {
			app.Logger.Warn().Err(err).Str("client_id", c.ID).Msg("snapshot failed")
			return
		}
		err = app.Hub.Send(c, ev)
		if errors.Is(err, broadcast.ErrStaleEvent) {
			continue
		}
		if err != nil {
			app.Logger.Debug().Err(err).Str("client_id", c.ID).Msg("snapshot not delivered")
		}
		return
	}
	app.Logger.Warn().Str("client_id", c.ID).Msg("snapshot kept falling behind, client must refetch")
}
