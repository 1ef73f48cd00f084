package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ClientCookie holds the anonymous per-browser id used for preferences.
const ClientCookie = "paradero_client"

const clientCookieMaxAge = 365 * 24 * time.Hour

type clientKey struct{}

// WithClientID returns a context carrying the client id.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientKey{}, id)
}

// ClientID returns the client id stored by WithClientID, or "".
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientKey{}).(string)
	return id
}

// EnsureClient reads the client cookie, issuing a new id when it is missing
// or malformed.
func EnsureClient(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(ClientCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
