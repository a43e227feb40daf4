package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) })
}

func TestCSRFMiddleware(t *testing.T) {
	h := CSRF{}.Middleware(status(http.StatusOK))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/1/label", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "CSRF_FAILED")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/1/label", nil)
	req.Header.Set("X-CSRF-Token", "a")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "b"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/orders/1", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "bearer requests are exempt")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFIssueRoundTrip(t *testing.T) {
	csrf := CSRF{Header: "X-Grosir-CSRF"}
	issued := httptest.NewRecorder()
	token, err := csrf.Issue(issued, time.Now().Add(time.Hour))
	require.NoError(t, err)
	cookies := issued.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.False(t, cookies[0].HttpOnly, "frontend must read the token")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/1/status", nil)
	req.Header.Set("X-Grosir-CSRF", token)
	req.AddCookie(cookies[0])
	rr := httptest.NewRecorder()
	csrf.Middleware(status(http.StatusNoContent)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHeadersMiddleware(t *testing.T) {
	mw := Headers{Enable: true, EnableHSTS: true, HSTSIncludeSubdomains: true, NoStorePrefixes: []string{"/api/v1/admin", "/api/v1/orders"}}
	h := mw.Middleware(status(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/api/v1/admin/orders", nil)
	req.TLS = &tls.ConnectionState{}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://api.example.com/api/v1/products", nil))
	assert.Empty(t, rr.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	Headers{}.Middleware(status(http.StatusOK)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rr.Header().Get("X-Content-Type-Options"))
}

func TestBodyLimit(t *testing.T) {
	var captured string
	h := BodyLimit{Max: 10}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		captured = string(data)
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("hello")))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello", captured)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this is far too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")

	req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("0123456789abc")))
	req.ContentLength = -1
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, "chunked bodies are measured too")
}
