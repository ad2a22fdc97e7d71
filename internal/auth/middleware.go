package auth

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleDriver  Role = "driver"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller, as asserted by the identity layer's
// token. Issuing tokens is out of scope here; we only verify and unpack them.
type Actor struct {
	UserID int
	Role   Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManage reports whether the actor may use the manager tooling surface.
func (a Actor) CanManage() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}

type contextKey struct{}

// ActorFrom returns the actor stored by Middleware.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(Actor)
	return actor, ok
}

// Middleware verifies the bearer token and stores the resulting Actor on the
// request context. Websocket clients cannot set headers, so a "token" query
// parameter is accepted as a fallback.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if strings.HasPrefix(raw, "Bearer ") {
				raw = strings.TrimPrefix(raw, "Bearer ")
			} else {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			actor, err := ParseToken(raw, secret)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates an HS256 token and unpacks the sub and role claims.
func ParseToken(raw, secret string) (Actor, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Actor{}, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	userID, err := subjectID(claims)
	if err != nil {
		return Actor{}, err
	}

	role, _ := claims["role"].(string)
	switch Role(role) {
	case RoleDriver, RoleManager, RoleAdmin:
	default:
		return Actor{}, fmt.Errorf("unknown role %q", role)
	}

	return Actor{UserID: userID, Role: Role(role)}, nil
}

func subjectID(claims jwt.MapClaims) (int, error) {
	switch sub := claims["sub"].(type) {
	case float64:
		return int(sub), nil
	case string:
		id, err := strconv.Atoi(sub)
		if err != nil {
			return 0, fmt.Errorf("non-numeric sub claim %q", sub)
		}
		return id, nil
	}
	return 0, fmt.Errorf("missing sub claim")
}
