package main

import (
	"net/http"

	"github.com/kridavyuha/auction-server/internals/auth"
)

func (app *App) Login(w http.ResponseWriter, r *http.Request) {
	var loginDetails auth.LoginRequestBody
	if err := getBody(r, &loginDetails); err != nil {
		sendError(w, r, err)
		return
	}

	token, err := app.Auth.Login(r.Context(), loginDetails)
	if err != nil {
		sendError(w, r, err)
		return
	}

	sendData(w, http.StatusOK, map[string]interface{}{"data": token, "message": "Logged in successfully"})
}

func (app *App) Logout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	token, _ := r.Context().Value(tokenKey).(string)

	var err error
	if r.URL.Query().Get("all") == "true" {
		err = app.Auth.LogoutAll(r.Context(), claims.UserID)
	} else {
		err = app.Auth.Logout(r.Context(), claims.UserID, token)
	}
	if err != nil {
		sendError(w, r, err)
		return
	}

	sendData(w, http.StatusOK, map[string]interface{}{"message": "Logged out successfully"})
}
