package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/grosir-api/internal/common"
)

const defaultCSRFName = "X-CSRF-Token"

// CSRF protects cookie-authenticated admin requests with the double-submit
// pattern. Requests carrying a bearer token are exempt.
type CSRF struct {
	// Header is both the request header and the cookie name.
	Header string
	Secure bool
}

func (c CSRF) name() string {
	if name := strings.TrimSpace(c.Header); name != "" {
		return name
	}
	return defaultCSRFName
}

// Issue sets a fresh token cookie readable by the admin frontend.
func (c CSRF) Issue(w http.ResponseWriter, expires time.Time) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// Middleware requires unsafe requests without a bearer token to echo the cookie in the header.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	name := c.name()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(name))
		cookie, err := r.Cookie(name)
		switch {
		case token == "":
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf token", nil)
		case err != nil || strings.TrimSpace(cookie.Value) == "":
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf cookie", nil)
		case subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1:
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "invalid csrf token", nil)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
