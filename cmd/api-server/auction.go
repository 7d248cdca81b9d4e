package main

import (
	"net/http"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/increment"
	"github.com/kridavyuha/auction-server/internals/storage"
)

type bidRequest struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Amount   int64  `json:"amount"`
}

type startLotRequest struct {
	PlayerID  string `json:"player_id"`
	BasePrice *int64 `json:"base_price"`
}

type resolveSoldRequest struct {
	TeamID string `json:"team_id"`
	Price  *int64 `json:"price"`
}

type toggleRequest struct {
	IsActive *bool `json:"is_active"`
}

type registrationRequest struct {
	IsOpen *bool `json:"is_open"`
}

type rulesRequest struct {
	Rules []increment.Rule `json:"rules"`
}

func (app *App) GetCurrentLot(w http.ResponseWriter, r *http.Request) {
	lot, err := app.Engine.CurrentLot(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, lot)
}

func (app *App) GetLotBids(w http.ResponseWriter, r *http.Request) {
	bids, err := app.Engine.LotBids(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, bids)
}

// PlaceBid lets a bidder bid for their own team. Operators may bid for any
// team, for example on behalf of a bidder at the venue.
func (app *App) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	claims := claimsFrom(r)
	if req.TeamID == "" {
		req.TeamID = claims.TeamID
	}
	if !claims.CanBidFor(req.TeamID) {
		sendError(w, r, apperr.New(apperr.CodeForbidden, "you cannot bid for this team"))
		return
	}

	bid, err := app.Engine.PlaceBid(r.Context(), req.PlayerID, req.TeamID, req.Amount)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusCreated, bid)
}

func (app *App) StartLot(w http.ResponseWriter, r *http.Request) {
	var req startLotRequest
	if err := getOptionalBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	st, err := app.Engine.StartLot(r.Context(), req.PlayerID, req.BasePrice)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, st)
}

func (app *App) ResolveSold(w http.ResponseWriter, r *http.Request) {
	var req resolveSoldRequest
	if err := getOptionalBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	player, err := app.Engine.ResolveSold(r.Context(), req.TeamID, req.Price)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, player)
}

func (app *App) ResolveUnsold(w http.ResponseWriter, r *http.Request) {
	player, err := app.Engine.ResolveUnsold(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, player)
}

func (app *App) ResetBid(w http.ResponseWriter, r *http.Request) {
	st, err := app.Engine.ResetBid(r.Context())
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, st)
}

func (app *App) ToggleActive(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if req.IsActive == nil {
		sendError(w, r, apperr.New(apperr.CodeInvalidInput, "is_active is required"))
		return
	}

	st, err := app.Engine.ToggleActive(r.Context(), *req.IsActive)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, st)
}

func (app *App) SetRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}
	if req.IsOpen == nil {
		sendError(w, r, apperr.New(apperr.CodeInvalidInput, "is_open is required"))
		return
	}

	st, err := app.Engine.SetRegistration(r.Context(), *req.IsOpen)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, st)
}

func (app *App) UpdateIncrementRules(w http.ResponseWriter, r *http.Request) {
	var req rulesRequest
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	st, err := app.Engine.UpdateIncrementRules(r.Context(), req.Rules)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, st)
}

func (app *App) SetOverlay(w http.ResponseWriter, r *http.Request) {
	var req storage.Overlay
	if err := getBody(r, &req); err != nil {
		sendError(w, r, err)
		return
	}

	st, err := app.Engine.SetOverlay(r.Context(), req)
	if err != nil {
		sendError(w, r, err)
		return
	}
	sendData(w, http.StatusOK, st)
}
