package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/auth"
	"github.com/kridavyuha/auction-server/internals/broadcast"
	"github.com/kridavyuha/auction-server/internals/storage"
	"github.com/kridavyuha/auction-server/internals/storage/storagetest"
	"github.com/kridavyuha/auction-server/pkg/conf"
	"github.com/kridavyuha/auction-server/pkg/kvstore"

	"github.com/gorilla/websocket"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
)

type apiResp struct {
	Status   int               `json:"status"`
	IsError  bool              `json:"is_error"`
	Error    string            `json:"error"`
	Code     apperr.Code       `json:"code"`
	Metadata map[string]string `json:"metadata"`
	Data     json.RawMessage   `json:"data"`
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	db := storagetest.NewDB(t)
	assert.NoError(t, auth.Migrate(db))

	mr := miniredis.RunT(t)
	kv, err := kvstore.NewRedis(mr.Addr(), "", 0)
	assert.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	app := &App{
		DB:      db,
		KVStore: kv,
		Logger:  zerolog.Nop(),
		Config: &conf.Config{
			Server: conf.Server{AllowedOrigins: []string{"*"}},
			Auth:   conf.Auth{Secret: "test-secret", TokenTTL: time.Hour},
		},
	}
	assert.NoError(t, app.initServices(context.Background()))
	app.initHandlers()
	t.Cleanup(app.Hub.Close)
	return app
}

func call(t *testing.T, app *App, method, path, token string, body interface{}) apiResp {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.R.ServeHTTP(rec, req)

	var resp apiResp
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	check.Equal(t, rec.Code, resp.Status)
	return resp
}

func login(t *testing.T, app *App, name string, role auth.Role, teamID *string) string {
	t.Helper()
	_, err := app.Auth.EnsureUser(context.Background(), name, "pw-"+name, role, teamID)
	assert.NoError(t, err)

	resp := call(t, app, http.MethodPost, "/auth/login", "", auth.LoginRequestBody{UserName: name, Password: "pw-" + name})
	assert.Equal(t, http.StatusOK, resp.Status)
	var data struct {
		Data string `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(resp.Data, &data))
	return data.Data
}

func TestAuctionOverHTTP(t *testing.T) {
	app := newTestApp(t)
	storagetest.SeedTeam(t, app.DB, "t1", 1000)
	storagetest.SeedTeam(t, app.DB, "t2", 1000)
	storagetest.SeedPlayer(t, app.DB, "p1", storage.StatusApproved, 50)

	t1 := "t1"
	op := login(t, app, "ops", auth.RoleOperator, nil)
	bidder := login(t, app, "captain", auth.RoleBidder, &t1)

	resp := call(t, app, http.MethodGet, "/auction/current", "", nil)
	check.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = call(t, app, http.MethodPost, "/auction/lot/start", bidder, map[string]string{"player_id": "p1"})
	check.Equal(t, http.StatusForbidden, resp.Status)

	resp = call(t, app, http.MethodPost, "/auction/lot/start", op, map[string]string{"player_id": "p1"})
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodPost, "/auction/bid", bidder, bidRequest{PlayerID: "p1", TeamID: "t2", Amount: 60})
	check.Equal(t, http.StatusForbidden, resp.Status)

	resp = call(t, app, http.MethodPost, "/auction/bid", bidder, bidRequest{PlayerID: "p1", Amount: 55})
	check.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	check.Equal(t, apperr.CodeBidTooLow, resp.Code)
	check.Equal(t, "60", resp.Metadata["min_next"])

	resp = call(t, app, http.MethodPost, "/auction/bid", bidder, bidRequest{PlayerID: "p1", Amount: 60})
	assert.Equal(t, http.StatusCreated, resp.Status)

	resp = call(t, app, http.MethodPost, "/auction/lot/start", op, map[string]string{"player_id": "p1"})
	check.Equal(t, http.StatusConflict, resp.Status)
	check.Equal(t, apperr.CodeAuctionBusy, resp.Code)

	resp = call(t, app, http.MethodPost, "/auction/lot/sold", op, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	var player storage.Player
	assert.NoError(t, json.Unmarshal(resp.Data, &player))
	check.Equal(t, storage.StatusSold, player.Status)

	resp = call(t, app, http.MethodPost, "/auction/lot/sold", op, nil)
	check.Equal(t, apperr.CodeNoActiveLot, resp.Code)

	resp = call(t, app, http.MethodGet, "/teams/t1", bidder, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	var team storage.Team
	assert.NoError(t, json.Unmarshal(resp.Data, &team))
	check.Equal(t, int64(940), team.RemainingBudget)

	resp = call(t, app, http.MethodGet, "/me", bidder, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	var me struct {
		User  auth.Users `json:"user"`
		Squad struct {
			Players []storage.Player `json:"players"`
			Spent   int64            `json:"spent"`
		} `json:"squad"`
	}
	assert.NoError(t, json.Unmarshal(resp.Data, &me))
	check.Equal(t, "captain", me.User.UserName)
	check.Equal(t, int64(60), me.Squad.Spent)
	check.Equal(t, 1, len(me.Squad.Players))

	resp = call(t, app, http.MethodGet, "/teams/t2/squad", bidder, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	check.True(t, strings.Contains(string(resp.Data), `"spent":0`))

	resp = call(t, app, http.MethodGet, "/standings", bidder, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	var standings []struct {
		Rank   int    `json:"rank"`
		TeamID string `json:"team_id"`
	}
	assert.NoError(t, json.Unmarshal(resp.Data, &standings))
	assert.Equal(t, 2, len(standings))
	check.Equal(t, "t1", standings[0].TeamID)
	check.Equal(t, 1, standings[0].Rank)

	resp = call(t, app, http.MethodGet, "/wallet/reconcile?team_id=t1", op, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	check.True(t, strings.Contains(string(resp.Data), `"consistent":true`))

	resp = call(t, app, http.MethodPost, "/auth/logout", bidder, nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	resp = call(t, app, http.MethodGet, "/auction/current", bidder, nil)
	check.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestWalletAndQueueOverHTTP(t *testing.T) {
	app := newTestApp(t)
	storagetest.SeedTeam(t, app.DB, "t1", 100)
	storagetest.SeedPlayer(t, app.DB, "p1", storage.StatusPending, 50)
	op := login(t, app, "ops", auth.RoleOperator, nil)

	resp := call(t, app, http.MethodPost, "/wallet/adjust", op, map[string]interface{}{"team_id": "t1", "action": "debit", "amount": 500})
	check.Equal(t, apperr.CodeInsufficientFunds, resp.Code)

	resp = call(t, app, http.MethodPost, "/wallet/adjust", op, map[string]interface{}{"team_id": "t1", "action": "credit", "amount": 25})
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodPost, "/queue/enqueue", op, playerRequest{PlayerID: "p1"})
	check.Equal(t, apperr.CodeWrongPlayerStatus, resp.Code)

	resp = call(t, app, http.MethodPost, "/players/approve", op, playerRequest{PlayerID: "p1"})
	assert.Equal(t, http.StatusOK, resp.Status)
	resp = call(t, app, http.MethodPost, "/queue/enqueue", op, playerRequest{PlayerID: "p1"})
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodGet, "/queue", op, nil)
	var queued []storage.Player
	assert.NoError(t, json.Unmarshal(resp.Data, &queued))
	check.Equal(t, 1, len(queued))

	resp = call(t, app, http.MethodPost, "/auction/lot/start", op, nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodPost, "/wallet/reset", op, teamRequest{TeamID: "t1"})
	assert.Equal(t, http.StatusOK, resp.Status)
	check.Equal(t, int64(100), storagetest.LoadTeam(t, app.DB, "t1").RemainingBudget)
}

func TestWebSocketReceivesSnapshotAndEvents(t *testing.T) {
	app := newTestApp(t)
	storagetest.SeedTeam(t, app.DB, "t1", 1000)
	storagetest.SeedPlayer(t, app.DB, "p1", storage.StatusApproved, 50)
	token := login(t, app, "ops", auth.RoleOperator, nil)

	srv := httptest.NewServer(app.R)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	defer conn.Close()

	assert.NoError(t, conn.WriteJSON(broadcast.ClientMessage{Type: broadcast.MessageJoinRoom, Room: broadcast.AuctionRoom}))

	read := func() broadcast.Event {
		t.Helper()
		assert.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev broadcast.Event
		assert.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	snap := read()
	check.Equal(t, broadcast.EventSnapshot, snap.Type)

	ctx := context.Background()
	_, err = app.Engine.StartLot(ctx, "p1", nil)
	assert.NoError(t, err)
	_, err = app.Engine.PlaceBid(ctx, "p1", "t1", 60)
	assert.NoError(t, err)

	started := read()
	check.Equal(t, broadcast.EventLotStarted, started.Type)
	check.Equal(t, snap.Seq+1, started.Seq)

	accepted := read()
	check.Equal(t, broadcast.EventBidAccepted, accepted.Type)
	check.Equal(t, snap.Seq+2, accepted.Seq)
}

func TestLogoutEverywhere(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "ops", auth.RoleOperator, nil)

	resp := call(t, app, http.MethodPost, "/auth/logout?all=true", token, nil)
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = call(t, app, http.MethodGet, "/queue", token, nil)
	check.Equal(t, http.StatusUnauthorized, resp.Status)
}
