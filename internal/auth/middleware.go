package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/device"
)

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Service *Service
}

// Authenticate attaches the user identifier when the request carries a valid
// bearer token or the device holds a valid session. Anonymous requests pass through.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid session with 401.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrInvalidToken) {
				common.WriteError(w, err)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Service == nil {
		return r.Context(), errors.New("auth: service not configured")
	}
	if token := bearerToken(r); token != "" {
		userID, err := m.Service.ParseToken(token)
		if err != nil {
			return r.Context(), err
		}
		return common.WithToken(common.WithUserID(r.Context(), userID), token), nil
	}
	deviceID, ok := device.FromContext(r.Context())
	if !ok {
		return r.Context(), ErrNoSession
	}
	sess, err := m.Service.CheckSession(r.Context(), deviceID)
	if err != nil {
		return r.Context(), err
	}
	return common.WithToken(common.WithUserID(r.Context(), sess.User.ID), sess.Token), nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
