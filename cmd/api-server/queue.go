package main

import (
	"context"
	"net/http"

	"github.com/kridavyuha/auction-server/internals/storage"
)

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

func (app *App) GetQueue(w http.ResponseWriter, r *http.Request) {
	players, err := app.Queue.List(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, players)
}

func (app *App) Enqueue(w http.ResponseWriter, r *http.Request) {
	app.playerAction(w, r, app.Queue.Enqueue)
}

func (app *App) RemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	app.playerAction(w, r, app.Queue.Remove)
}

func (app *App) ApprovePlayer(w http.ResponseWriter, r *http.Request) {
	app.playerAction(w, r, app.Queue.Approve)
}

func (app *App) playerAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, playerID string) (storage.Player, error)) {
	var req playerRequest
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	player, err := action(r.Context(), req.PlayerID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, player)
}
