package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pyama86/dispatchd/domain/entity"
	"github.com/pyama86/dispatchd/domain/repository"
)

type contextKey string

const userContextKey contextKey = "dispatchd_user"

type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// Authenticator は HS256 の Bearer トークンを検証し、ユーザーをディレクトリから引く
type Authenticator struct {
	secret    []byte
	directory repository.DirectoryRepository
	access    func(ctx context.Context, userID int64) (bool, error)
}

func NewAuthenticator(secret string, directory repository.DirectoryRepository, access func(ctx context.Context, userID int64) (bool, error)) *Authenticator {
	return &Authenticator{
		secret:    []byte(secret),
		directory: directory,
		access:    access,
	}
}

func (a *Authenticator) IssueToken(userID int64, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  fmt.Sprintf("%d", userID),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(a.secret)
}

func (a *Authenticator) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware はディスパッチを利用できないユーザーを 403 で弾く
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			writeMessage(w, http.StatusUnauthorized, "authorization required")
			return
		}
		claims, err := a.ParseToken(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "invalid token")
			return
		}
		user, err := a.directory.UserByID(r.Context(), claims.UserID)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "unknown user")
			return
		}
		ok, err := a.access(r.Context(), user.ID)
		if err != nil {
			slog.Error("Failed to check dispatch access", slog.Int64("user_id", user.ID), slog.Any("err", err))
			writeMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !ok {
			writeMessage(w, http.StatusForbidden, "you have no access to dispatch")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func RequireDispatchAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsDispatchAdmin {
			writeError(w, entity.Forbidden("dispatch admin only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) *entity.User {
	u, ok := r.Context().Value(userContextKey).(*entity.User)
	if !ok {
		return &entity.User{}
	}
	return u
}
