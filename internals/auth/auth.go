// Package auth issues and checks session tokens. Tokens are JWTs, and a token
// is only honoured while it is on the user's whitelist in the KV store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/kridavyuha/auction-server/internals/apperr"
	"github.com/kridavyuha/auction-server/pkg/kvstore"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const DefaultTokenTTL = 72 * time.Hour

var errInvalidCredentials = apperr.New(apperr.CodeUnauthorized, "invalid credentials")

type AuthService struct {
	KV     kvstore.KVStore
	DB     *gorm.DB
	secret []byte
	ttl    time.Duration
}

func New(kv kvstore.KVStore, db *gorm.DB, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &AuthService{
		KV:     kv,
		DB:     db,
		secret: []byte(secret),
		ttl:    ttl,
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Users{})
}

func sessionKey(userID int) string {
	return fmt.Sprintf("session_token_%d", userID)
}

// Login checks the credentials and whitelists a fresh token. A user may hold
// several tokens at once, one per device.
func (a *AuthService) Login(ctx context.Context, loginDetails LoginRequestBody) (string, error) {
	if loginDetails.UserName == "" || loginDetails.Password == "" {
		return "", apperr.New(apperr.CodeInvalidInput, "user_name and password are required")
	}

	var user Users
	err := a.DB.WithContext(ctx).Where("user_name = ?", loginDetails.UserName).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(loginDetails.Password)) != nil {
		return "", errInvalidCredentials
	}

	token, err := a.GenerateToken(user)
	if err != nil {
		return "", err
	}
	key := sessionKey(user.UserID)
	if err := a.KV.RPush(ctx, key, token); err != nil {
		return "", err
	}
	if err := a.KV.Expire(ctx, key, int64(a.ttl.Seconds())); err != nil {
		return "", err
	}
	return token, nil
}

func (a *AuthService) GenerateToken(user Users) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.UserID,
		"role":    string(user.Role),
		"exp":     time.Now().Add(a.ttl).Unix(),
	}
	if user.TeamID != nil {
		claims["team_id"] = *user.TeamID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthService) ValidateToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return Claims{}, apperr.Wrap(apperr.CodeUnauthorized, "invalid token", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, apperr.New(apperr.CodeUnauthorized, "invalid token")
	}
	userID, ok := mc["user_id"].(float64)
	if !ok {
		return Claims{}, apperr.New(apperr.CodeUnauthorized, "token has no user_id")
	}
	role, _ := mc["role"].(string)
	teamID, _ := mc["team_id"].(string)
	return Claims{UserID: int(userID), Role: Role(role), TeamID: teamID}, nil
}

// RevokeToken drops the token from the whitelist; it stops working at once
// even though it has not expired.
func (a *AuthService) RevokeToken(ctx context.Context, userID int, tokenString string) error {
	return a.KV.LRem(ctx, sessionKey(userID), 0, tokenString)
}

func (a *AuthService) CheckIfTokenIsWhiteListed(ctx context.Context, userID int, tokenString string) bool {
	tokens, err := a.KV.LRange(ctx, sessionKey(userID), 0, -1)
	if err != nil {
		return false
	}
	for _, t := range tokens {
		if t == tokenString {
			return true
		}
	}
	return false
}

// Authenticate validates the token and checks the whitelist.
func (a *AuthService) Authenticate(ctx context.Context, tokenString string) (Claims, error) {
	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return Claims{}, err
	}
	if !a.CheckIfTokenIsWhiteListed(ctx, claims.UserID, tokenString) {
		return Claims{}, apperr.New(apperr.CodeUnauthorized, "token has been revoked")
	}
	return claims, nil
}

func (a *AuthService) Logout(ctx context.Context, userID int, tokenString string) error {
	return a.RevokeToken(ctx, userID, tokenString)
}

// LogoutAll drops the user's whole whitelist, ending every session.
func (a *AuthService) LogoutAll(ctx context.Context, userID int) error {
	return a.KV.Delete(ctx, sessionKey(userID))
}

// EnsureUser creates the user if the name is free. It is used to bootstrap
// the operator account from configuration.
func (a *AuthService) EnsureUser(ctx context.Context, name, password string, role Role, teamID *string) (Users, error) {
	if name == "" || password == "" {
		return Users{}, apperr.New(apperr.CodeInvalidInput, "user_name and password are required")
	}
	if role != RoleOperator && role != RoleBidder {
		return Users{}, apperr.Newf(apperr.CodeInvalidInput, "unknown role %q", role)
	}
	if role == RoleBidder && (teamID == nil || *teamID == "") {
		return Users{}, apperr.New(apperr.CodeInvalidInput, "bidders need a team_id")
	}

	var user Users
	err := a.DB.WithContext(ctx).Where("user_name = ?", name).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Users{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Users{}, err
	}
	user = Users{UserName: name, PasswordHash: string(hash), Role: role, TeamID: teamID}
	if err := a.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return Users{}, err
	}
	return user, nil
}

func (a *AuthService) Profile(ctx context.Context, userID int) (Users, error) {
	var user Users
	err := a.DB.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Users{}, apperr.Newf(apperr.CodeNotFound, "user %d not found", userID)
	}
	if err != nil {
		return Users{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}
