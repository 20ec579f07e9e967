package internalhttp

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/solarmarket/creative-rotation/internal/frequency"
)

const visitorCookieMaxAge = 365 * 24 * 60 * 60

// ensureVisitor reads the session and visitor tokens, minting and setting
// them when absent. The session cookie lives for the browsing session; the
// visitor cookie persists and scopes the daily frequency cap.
func ensureVisitor(w http.ResponseWriter, r *http.Request) frequency.Visitor {
	var v frequency.Visitor

	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		v.SessionID = c.Value
	} else {
		v.SessionID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    v.SessionID,
			Path:     "/",
			HttpOnly: true,
		})
	}

	if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
		v.VisitorID = c.Value
	} else {
		v.VisitorID = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     visitorCookie,
			Value:    v.VisitorID,
			Path:     "/",
			MaxAge:   visitorCookieMaxAge,
			HttpOnly: true,
		})
	}

	return v
}
