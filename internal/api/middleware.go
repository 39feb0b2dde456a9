// Package api implements the Quill REST API using chi.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/quill/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeJWT      = "jwt"
)

// AuthSettings selects how requests are authenticated.
//
//   - "disabled": every request acts as the system admin.
//   - "token": a static Bearer token; its holder is an admin.
//   - "jwt": an HS256 Bearer JWT whose sub and role claims name the actor.
type AuthSettings struct {
	Mode      string
	Token     string
	JWTSecret string
}

// Claims are the JWT claims understood in jwt mode.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by AuthMiddleware. Requests that never
// passed the middleware get an actor without a role.
func ActorFrom(ctx context.Context) models.Actor {
	a, _ := ctx.Value(actorKey{}).(models.Actor)
	return a
}

// AuthMiddleware returns middleware that authenticates the Bearer credential
// according to settings and stores the resulting actor in the request context.
func AuthMiddleware(settings AuthSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if settings.Mode == AuthModeDisabled || settings.Mode == "" {
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), models.System)))
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			cred := strings.TrimPrefix(auth, "Bearer ")

			var actor models.Actor
			switch settings.Mode {
			case AuthModeToken:
				if cred != settings.Token {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				actor = models.Actor{Subject: "token", Role: models.RoleAdmin}
			case AuthModeJWT:
				a, err := ParseToken(settings.JWTSecret, cred)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				actor = a
			default:
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ParseToken verifies an HS256 token signed with secret and returns its actor.
func ParseToken(secret, token string) (models.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, fmt.Errorf("api: parse token: %w", err)
	}
	if claims.Subject == "" {
		return models.Actor{}, errors.New("api: token has no subject")
	}
	if !claims.Role.Valid() {
		return models.Actor{}, fmt.Errorf("api: token has unknown role %q", claims.Role)
	}
	return models.Actor{Subject: claims.Subject, Role: claims.Role}, nil
}

// IssueToken signs an HS256 token for actor that expires after ttl.
func IssueToken(secret string, actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
