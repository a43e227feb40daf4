package auth

import (
	"net/http"
	"time"

	"github.com/noah-isme/grosir-api/internal/common"
)

// CSRFIssuer hands out a double-submit token alongside the session cookie.
type CSRFIssuer interface {
	Issue(w http.ResponseWriter, expires time.Time) (string, error)
}

// Handler exposes the admin login endpoint.
type Handler struct {
	Service      *Service
	AccessCookie string
	CookieSecure bool
	CSRF         CSRFIssuer
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=1024"`
}

// Login handles POST /api/v1/admin/login.
func (h Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUTH_DISABLED", "admin auth not configured", nil)
		return
	}
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	resp := map[string]any{
		"accessToken": result.AccessToken,
		"tokenType":   result.TokenType,
		"expiresAt":   result.ExpiresAt,
		"subject":     result.Subject,
	}
	if h.AccessCookie != "" {
		if h.CSRF != nil {
			token, err := h.CSRF.Issue(w, result.ExpiresAt)
			if err != nil {
				common.WriteError(w, err)
				return
			}
			resp["csrfToken"] = token
		}
		http.SetCookie(w, &http.Cookie{
			Name:     h.AccessCookie,
			Value:    result.AccessToken,
			Path:     "/api/v1/admin",
			Expires:  result.ExpiresAt,
			HttpOnly: true,
			Secure:   h.CookieSecure,
			SameSite: http.SameSiteStrictMode,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}
