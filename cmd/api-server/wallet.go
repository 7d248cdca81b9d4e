package main

import (
	"net/http"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/ledger"

	"github.com/go-chi/chi/v5"
)

type teamRequest struct {
	TeamID string `json:"team_id"`
}

func (app *App) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := app.Ledger.Team(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, team)
}

func (app *App) AdjustWallet(w http.ResponseWriter, r *http.Request) {
	var req ledger.AdjustRequestBody
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if req.Reason == "" {
		req.Reason = "manual " + string(req.Action)
	}

	team, err := app.Ledger.Adjust(r.Context(), req.TeamID, req.Action, req.Amount, req.Reason)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, team)
}

func (app *App) ResetWallet(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	result, err := app.Ledger.ResetWallet(r.Context(), req.TeamID)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, result)
}

// ReconcileWallet reports drift between the cached and derived budget;
// repair=true also writes the derived value back.
func (app *App) ReconcileWallet(w http.ResponseWriter, r *http.Request) {
	teamID := r.URL.Query().Get("team_id")
	if teamID == "" {
		sendError(w, r, apperr.New(apperr.CodeInvalidInput, "team_id is required"))
		return
	}

	var (
		rec ledger.Reconciliation
		err error
	)
	if r.URL.Query().Get("repair") == "true" {
		rec, err = app.Ledger.Repair(r.Context(), teamID)
	} else {
		rec, err = app.Ledger.Reconcile(r.Context(), teamID)
	}
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, rec)
}
