package main

import (
	"net/http"
)

// GetProfile returns the caller's account, plus the squad of their team when
// they bid for one.
func (app *App) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	user, err := app.Auth.Profile(r.Context(), claims.UserID)
	if err != nil {
		sendError(w, r, err)
		return
	}

	data := map[string]interface{}{"user": user}
	if user.TeamID != nil {
		sq, err := app.Squads.Get(r.Context(), *user.TeamID)
		if err != nil {
			sendError(w, r, err)
			return
		}
		data["squad"] = sq
	}
	sendData(w, http.StatusOK, data)
}
