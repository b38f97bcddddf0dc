// Package csrf protects the API from cross-site requests made by browsers
// holding cached Basic credentials.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/ProfDrJones/journals/internal/config"
)

const (
	cookieName = "journals_csrf"
	// HeaderName carries the token on mutating browser requests. Responses
	// echo the current token under the same name.
	HeaderName = "X-CSRF-Token"
)

// Middleware rejects mutating requests that a browser sent cross-site and
// requires a double-submit token from same-origin browser requests.
// Requests without Origin and Sec-Fetch-Site come from non-browser clients
// and pass unchecked.
func Middleware(cfg *config.Config) func(http.Handler) http.Handler {
	origin, secure := "", true
	if base, err := url.Parse(cfg.BaseURL); err == nil {
		origin = base.Scheme + "://" + base.Host
		secure = base.Scheme == "https"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cookieName); err == nil {
				token = c.Value
			}
			issued := false
			if token == "" {
				var err error
				if token, err = generateToken(); err != nil {
					http.Error(w, "failed to issue csrf token", http.StatusInternalServerError)
					return
				}
				issued = true
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
			}
			w.Header().Set(HeaderName, token)

			if isStateChanging(r.Method) {
				if reason := rejectReason(r, origin, token, issued); reason != "" {
					http.Error(w, reason, http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectReason(r *http.Request, origin, token string, issued bool) string {
	reqOrigin := r.Header.Get("Origin")
	fetchSite := strings.ToLower(r.Header.Get("Sec-Fetch-Site"))
	if reqOrigin == "" && fetchSite == "" {
		return ""
	}
	if reqOrigin != "" && !strings.EqualFold(reqOrigin, origin) {
		return "cross-origin request rejected"
	}
	if fetchSite == "cross-site" || fetchSite == "same-site" {
		return "cross-site request rejected"
	}
	if issued || !validToken(r.Header.Get(HeaderName), token) {
		return "invalid csrf token"
	}
	return ""
}

func validToken(provided, expected string) bool {
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
