package main

import (
	"net/http"

	"github.com/kridavyuha/auction-server/internals/broadcast"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

func (app *App) initHandlers() {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   app.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(RequestLogger(app.Logger))

	r.Get("/health", app.Health)
	r.Post("/auth/login", app.Login)

	r.Group(func(r chi.Router) {
		r.Use(app.Middleware)

		r.Post("/auth/logout", app.Logout)
		r.Get("/ws", app.handleWebSocket)

		r.Get("/auction/current", app.GetCurrentLot)
		r.Get("/auction/bids", app.GetLotBids)
		r.Post("/auction/bid", app.PlaceBid)
		r.Get("/queue", app.GetQueue)
		r.Get("/teams/{teamID}", app.GetTeam)
		r.Get("/teams/{teamID}/squad", app.GetSquad)
		r.Get("/standings", app.GetStandings)
		r.Get("/me", app.GetProfile)

		r.Group(func(r chi.Router) {
			r.Use(app.RequireOperator)

			r.Post("/auction/lot/start", app.StartLot)
			r.Post("/auction/lot/sold", app.ResolveSold)
			r.Post("/auction/lot/unsold", app.ResolveUnsold)
			r.Post("/auction/lot/reset", app.ResetBid)
			r.Post("/auction/active", app.ToggleActive)
			r.Post("/auction/registration", app.SetRegistration)
			r.Put("/auction/rules", app.UpdateIncrementRules)
			r.Put("/auction/overlay", app.SetOverlay)

			r.Post("/queue/enqueue", app.Enqueue)
			r.Post("/queue/remove", app.RemoveFromQueue)
			r.Post("/players/approve", app.ApprovePlayer)

			r.Post("/wallet/adjust", app.AdjustWallet)
			r.Post("/wallet/reset", app.ResetWallet)
			r.Get("/wallet/reconcile", app.ReconcileWallet)
		})
	})

	app.R = r
}

func (app *App) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !app.Monitor.Healthy() {
		status = http.StatusServiceUnavailable
	}
	sendData(w, status, map[string]interface{}{
		"storage":     app.Monitor.Healthy(),
		"subscribers": app.Hub.Subscribers(broadcast.AuctionRoom),
	})
}
