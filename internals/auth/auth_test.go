package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/internals/storage/storagetest"
	"github.com/kridavyuha/auction-server/pkg/kvstore"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	db := storagetest.NewDB(t)
	assert.NoError(t, Migrate(db))

	mr := miniredis.RunT(t)
	kv, err := kvstore.NewRedis(mr.Addr(), "", 0)
	assert.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	return New(kv, db, "test-secret", time.Hour)
}

func TestLoginValidateLogout(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	team := "t1"
	user, err := a.EnsureUser(ctx, "captain", "hunter2", RoleBidder, &team)
	assert.NoError(t, err)

	token, err := a.Login(ctx, LoginRequestBody{UserName: "captain", Password: "hunter2"})
	assert.NoError(t, err)

	claims, err := a.Authenticate(ctx, token)
	assert.NoError(t, err)
	check.Equal(t, user.UserID, claims.UserID)
	check.Equal(t, RoleBidder, claims.Role)
	check.Equal(t, "t1", claims.TeamID)
	check.True(t, claims.CanBidFor("t1"))
	check.False(t, claims.CanBidFor("t2"))
	check.False(t, claims.IsOperator())

	assert.NoError(t, a.Logout(ctx, claims.UserID, token))
	_, err = a.Authenticate(ctx, token)
	check.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestLogoutAllEndsEverySession(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	user, err := a.EnsureUser(ctx, "ops", "secret", RoleOperator, nil)
	assert.NoError(t, err)

	first, err := a.Login(ctx, LoginRequestBody{UserName: "ops", Password: "secret"})
	assert.NoError(t, err)
	second, err := a.Login(ctx, LoginRequestBody{UserName: "ops", Password: "secret"})
	assert.NoError(t, err)

	assert.NoError(t, a.LogoutAll(ctx, user.UserID))
	for _, token := range []string{first, second} {
		_, err = a.Authenticate(ctx, token)
		check.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	_, err := a.EnsureUser(ctx, "ops", "secret", RoleOperator, nil)
	assert.NoError(t, err)

	_, err = a.Login(ctx, LoginRequestBody{UserName: "ops", Password: "wrong"})
	check.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
	_, err = a.Login(ctx, LoginRequestBody{UserName: "nobody", Password: "secret"})
	check.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	a := newAuth(t)
	other := New(a.KV, a.DB, "other-secret", time.Hour)
	token, err := other.GenerateToken(Users{UserID: 1, Role: RoleOperator})
	assert.NoError(t, err)

	_, err = a.ValidateToken(token)
	check.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	first, err := a.EnsureUser(ctx, "ops", "secret", RoleOperator, nil)
	assert.NoError(t, err)
	second, err := a.EnsureUser(ctx, "ops", "changed", RoleOperator, nil)
	assert.NoError(t, err)
	check.Equal(t, first.UserID, second.UserID)

	_, err = a.EnsureUser(ctx, "bidder", "secret", RoleBidder, nil)
	check.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestProfile(t *testing.T) {
	a := newAuth(t)
	ctx := context.Background()
	team := "t1"
	user, err := a.EnsureUser(ctx, "captain", "hunter2", RoleBidder, &team)
	assert.NoError(t, err)

	got, err := a.Profile(ctx, user.UserID)
	assert.NoError(t, err)
	check.Equal(t, "captain", got.UserName)
	check.Equal(t, RoleBidder, got.Role)

	_, err = a.Profile(ctx, user.UserID+100)
	check.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
