package main

import (
	"net/http"

	"github.com/kridavyuha/auction-server/internals/storage"

	"github.com/go-chi/chi/v5"
)

func (app *App) GetSquad(w http.ResponseWriter, r *http.Request) {
	sq, err := app.Squads.Get(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, sq)
}

func (app *App) GetStandings(w http.ResponseWriter, r *http.Request) {
	sport := storage.Sport(r.URL.Query().Get("sport"))

	standings, err := app.Leaderboard.Standings(r.Context(), sport)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, standings)
}
