package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/auth"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	claimsKey    contextKey = "claims"
	tokenKey     contextKey = "token"
)

// RequestLogger tags every request with an id and puts a child logger
// carrying it into the context.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set("X-Request-ID", requestID)

			l := logger.With().Str("request_id", requestID).Logger()
			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = l.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))

			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}

// Middleware authenticates the caller from the Authorization header, or from
// the token query parameter for websocket upgrades.
func (app *App) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			token = authHeader[len("Bearer "):]
		} else {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			sendError(w, r, apperr.New(apperr.CodeUnauthorized, "Unauthorized"))
			return
		}

		claims, err := app.Auth.Authenticate(r.Context(), token)
		if err != nil {
			sendError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, tokenKey, token)
		ctx = zerolog.Ctx(ctx).With().Int("user_id", claims.UserID).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *App) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !claimsFrom(r).IsOperator() {
			sendError(w, r, apperr.New(apperr.CodeForbidden, "operator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(r *http.Request) auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(auth.Claims)
	return claims
}
