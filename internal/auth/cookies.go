package auth

import "net/http"

const (
	AccessCookieName  = "authToken"
	RefreshCookieName = "refreshToken"
)

// CookieWriter sets and clears the session cookies. Secure is only set
// in production so local development over plain HTTP still works.
type CookieWriter struct {
	Secure          bool
	AccessMaxAgeSec int
	RefreshMaxAge   int
}

func (c *CookieWriter) SetSession(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, c.sessionCookie(AccessCookieName, pair.AccessToken, c.AccessMaxAgeSec))
	http.SetCookie(w, c.sessionCookie(RefreshCookieName, pair.RefreshToken, c.RefreshMaxAge))
}

// ClearSession expires both cookies. Safe to call when no session
// exists; clearing is idempotent.
func (c *CookieWriter) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, c.sessionCookie(AccessCookieName, "", -1))
	http.SetCookie(w, c.sessionCookie(RefreshCookieName, "", -1))
}

// ClearAccess expires only the access cookie. Used when a refresh
// fails: the stale access token must not linger, but the refresh
// cookie is left for the client to retry or sign out.
func (c *CookieWriter) ClearAccess(w http.ResponseWriter) {
	http.SetCookie(w, c.sessionCookie(AccessCookieName, "", -1))
}

func (c *CookieWriter) sessionCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
