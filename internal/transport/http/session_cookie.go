package http

import (
	"context"
	"net/http"

	"quiz-retry-service/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	cookieName   = "quiz-session"
	sessionIDKey = "sid"
)

type sessionIDCtxKey struct{}

// SessionCookies issues every browser a signed cookie carrying an opaque session id.
// Quiz state itself lives server-side in the session store, keyed by that id.
type SessionCookies struct {
	store *sessions.CookieStore
	log   *logger.Logger
}

func NewSessionCookies(secret []byte, secure bool, log *logger.Logger) *SessionCookies {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SessionCookies{store: store, log: log}
}

// Middleware resolves (or mints) the session id and puts it on the request context.
func (c *SessionCookies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A cookie signed with an old secret decodes with an error; Get still returns a fresh session.
		sess, _ := c.store.Get(r, cookieName)
		sid, _ := sess.Values[sessionIDKey].(string)
		if sid == "" {
			sid = uuid.NewString()
			sess.Values[sessionIDKey] = sid
			if err := sess.Save(r, w); err != nil {
				c.log.Error("save session cookie failed", "error", err)
				writeError(w, r, http.StatusInternalServerError, "internal_error", "could not start session")
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDCtxKey{}, sid)))
	})
}

// SessionID returns the session id placed on ctx by SessionCookies.Middleware.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDCtxKey{}).(string)
	return sid
}
