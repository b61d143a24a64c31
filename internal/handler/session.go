package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCookieName is used when Config.CookieName is empty.
const DefaultCookieName = "session_id"

type sessionKey struct{}

type session struct {
	ID string
	// FromCookie is false when the ID was issued by this request.
	FromCookie bool
}

// session resolves the caller's session from the cookie, issuing a new one
// when the cookie is missing.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := session{}
		if c, err := r.Cookie(h.cookie.CookieName); err == nil && c.Value != "" {
			s.ID, s.FromCookie = c.Value, true
		} else {
			s.ID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     h.cookie.CookieName,
				Value:    s.ID,
				Path:     "/",
				MaxAge:   int(h.cookie.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   h.cookie.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, s)
		ctx = zctx.With(ctx, zap.Bool("new_session", !s.FromCookie))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) session {
	s, _ := ctx.Value(sessionKey{}).(session)
	return s
}
