package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oppa-kitchen/storefront/internal/auth"
	"go.uber.org/zap"
)

type contextKey string

const cartKey contextKey = "cart"

const (
	CartCookie = "oppa_cart"
	CartHeader = "X-Cart-Token"
)

type cartSession struct {
	id    uuid.UUID
	token string
}

// CartSession resolves the caller's cart from the cart cookie or header.
// A missing, expired or forged token starts a new cart. The effective token
// is always echoed back in both the cookie and the header.
func CartSession(secret string, ttl time.Duration, secure bool, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(CartHeader)
			if token == "" {
				if c, err := r.Cookie(CartCookie); err == nil {
					token = c.Value
				}
			}

			var sess cartSession
			if token != "" {
				if claims, err := auth.ValidateCartToken(secret, token); err == nil {
					sess = cartSession{id: claims.CartID, token: token}
				} else {
					log.Debug("replacing cart session", zap.Error(err))
				}
			}
			if sess.id == uuid.Nil {
				id := uuid.New()
				issued, err := auth.GenerateCartToken(secret, id, ttl)
				if err != nil {
					log.Error("issue cart session", zap.Error(err))
					writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "failed to start cart session"})
					return
				}
				sess = cartSession{id: id, token: issued}
			}

			w.Header().Set(CartHeader, sess.token)
			http.SetCookie(w, &http.Cookie{
				Name:     CartCookie,
				Value:    sess.token,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := context.WithValue(r.Context(), cartKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CartIDFromContext returns the cart resolved by CartSession.
func CartIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	sess, ok := ctx.Value(cartKey).(cartSession)
	return sess.id, ok
}

// RequireBearer rejects requests without an Authorization header. The
// credential itself is checked by the order service.
func RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Authorization token required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken returns the token of a "Bearer <token>" Authorization
// header, or "" when there is none.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
