package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

func TestParseToken(t *testing.T) {
	t.Run("valid driver token", func(t *testing.T) {
		raw := signToken(t, testSecret, jwt.MapClaims{"sub": float64(42), "role": "driver"})
		actor, err := ParseToken(raw, testSecret)
		if err != nil {
			t.Fatalf("ParseToken: %v", err)
		}
		if actor.UserID != 42 || actor.Role != RoleDriver {
			t.Errorf("got actor %+v", actor)
		}
	})

	t.Run("string sub claim", func(t *testing.T) {
		raw := signToken(t, testSecret, jwt.MapClaims{"sub": "7", "role": "manager"})
		actor, err := ParseToken(raw, testSecret)
		if err != nil {
			t.Fatalf("ParseToken: %v", err)
		}
		if actor.UserID != 7 || actor.Role != RoleManager {
			t.Errorf("got actor %+v", actor)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		raw := signToken(t, "other-secret", jwt.MapClaims{"sub": float64(1), "role": "driver"})
		if _, err := ParseToken(raw, testSecret); err == nil {
			t.Error("token signed with a different secret should be rejected")
		}
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		raw := signToken(t, testSecret, jwt.MapClaims{"sub": float64(1), "role": "superuser"})
		if _, err := ParseToken(raw, testSecret); err == nil {
			t.Error("unknown role should be rejected")
		}
	})

	t.Run("missing sub rejected", func(t *testing.T) {
		raw := signToken(t, testSecret, jwt.MapClaims{"role": "driver"})
		if _, err := ParseToken(raw, testSecret); err == nil {
			t.Error("token without sub should be rejected")
		}
	})
}

func TestMiddleware(t *testing.T) {
	var seen Actor
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		called = true
	})
	handler := Middleware(testSecret)(next)

	t.Run("bearer header", func(t *testing.T) {
		called = false
		raw := signToken(t, testSecret, jwt.MapClaims{"sub": float64(5), "role": "admin"})
		req := httptest.NewRequest("GET", "/api/bookings", nil)
		req.Header.Set("Authorization", "Bearer "+raw)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if !called {
			t.Fatalf("handler not reached, status %d", rr.Code)
		}
		if seen.UserID != 5 || !seen.IsAdmin() {
			t.Errorf("got actor %+v", seen)
		}
	})

	t.Run("query param fallback", func(t *testing.T) {
		called = false
		raw := signToken(t, testSecret, jwt.MapClaims{"sub": float64(9), "role": "driver"})
		req := httptest.NewRequest("GET", "/api/ws/me?token="+raw, nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if !called {
			t.Fatalf("handler not reached, status %d", rr.Code)
		}
		if seen.UserID != 9 {
			t.Errorf("got actor %+v", seen)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		called = false
		req := httptest.NewRequest("GET", "/api/bookings", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if called {
			t.Error("handler should not be reached without a token")
		}
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
		}
	})
}

func TestActorPermissions(t *testing.T) {
	if (Actor{Role: RoleDriver}).CanManage() {
		t.Error("driver should not manage")
	}
	if !(Actor{Role: RoleManager}).CanManage() {
		t.Error("manager should manage")
	}
	if !(Actor{Role: RoleAdmin}).CanManage() || !(Actor{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin should manage and be admin")
	}
}
