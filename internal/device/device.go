// Package device resolves the owner of per-device cart, wishlist and session state.
package device

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// DefaultHeader carries the device id on requests and responses.
const DefaultHeader = "X-Device-ID"

// QueryParam is the fallback location for the device id.
const QueryParam = "deviceId"

type contextKey string

const deviceContextKey contextKey = "device.id"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Valid reports whether id can be used as a storage namespace.
func Valid(id string) bool {
	return validID.MatchString(id)
}

// Resolver reads the device id from the configured header, then the query
// string, then the default. With no default a fresh id is minted and echoed
// back in the response header.
type Resolver struct {
	HeaderName    string
	DefaultDevice string
}

// NewResolver returns a resolver for headerName, using DefaultHeader when empty.
func NewResolver(headerName, defaultDevice string) *Resolver {
	headerName = strings.TrimSpace(headerName)
	if headerName == "" {
		headerName = DefaultHeader
	}
	return &Resolver{HeaderName: headerName, DefaultDevice: strings.TrimSpace(defaultDevice)}
}

// Resolve returns the raw device id supplied by the request, if any.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if id := strings.TrimSpace(req.Header.Get(r.HeaderName)); id != "" {
		return id
	}
	return strings.TrimSpace(req.URL.Query().Get(QueryParam))
}

// Middleware injects the device id into the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := r.Resolve(req)
		if id == "" {
			id = r.DefaultDevice
		}
		if id == "" {
			id = uuid.NewString()
		}
		if !Valid(id) {
			common.JSONError(w, http.StatusBadRequest, "INVALID_DEVICE_ID", "device id must be 1-128 letters, digits, '-' or '_'", nil)
			return
		}
		w.Header().Set(r.HeaderName, id)
		next.ServeHTTP(w, req.WithContext(With(req.Context(), id)))
	})
}

// With stores the device id inside the context.
func With(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, deviceContextKey, id)
}

// FromContext extracts the device id from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(deviceContextKey).(string)
	if !ok {
		return "", false
	}
	id = strings.TrimSpace(id)
	return id, id != ""
}

// ErrMissing is returned when a handler runs without a resolved device.
var ErrMissing = common.NewAppError("DEVICE_REQUIRED", "device id is required", http.StatusBadRequest, nil)

// FromRequest returns the device id resolved by Middleware.
func FromRequest(r *http.Request) (string, error) {
	if id, ok := FromContext(r.Context()); ok {
		return id, nil
	}
	return "", ErrMissing
}
