package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ProfDrJones/journals/internal/config"
)

const origin = "https://journals.example.org"

func newHandler() http.Handler {
	cfg := &config.Config{BaseURL: origin + "/"}
	return Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestMiddlewareIssuesToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/config", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != cookieName || !cookies[0].Secure || cookies[0].SameSite != http.SameSiteStrictMode {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
	if rec.Header().Get(HeaderName) != cookies[0].Value {
		t.Fatal("expected the token to be echoed in the response header")
	}
}

func TestMiddlewareValidatesMutations(t *testing.T) {
	testCases := []struct {
		name       string
		origin     string
		fetchSite  string
		cookie     string
		header     string
		wantStatus int
	}{
		{name: "non-browser client", wantStatus: http.StatusNoContent},
		{name: "same origin with token", origin: origin, fetchSite: "same-origin", cookie: "abc", header: "abc", wantStatus: http.StatusNoContent},
		{name: "fetch metadata only", fetchSite: "same-origin", cookie: "abc", header: "abc", wantStatus: http.StatusNoContent},
		{name: "token mismatch", origin: origin, cookie: "abc", header: "xyz", wantStatus: http.StatusForbidden},
		{name: "missing header", origin: origin, cookie: "abc", wantStatus: http.StatusForbidden},
		{name: "no cookie yet", origin: origin, header: "abc", wantStatus: http.StatusForbidden},
		{name: "foreign origin", origin: "https://evil.example", cookie: "abc", header: "abc", wantStatus: http.StatusForbidden},
		{name: "cross-site fetch", fetchSite: "cross-site", wantStatus: http.StatusForbidden},
		{name: "sibling subdomain", fetchSite: "same-site", cookie: "abc", header: "abc", wantStatus: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/editor/save", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.fetchSite != "" {
				req.Header.Set("Sec-Fetch-Site", tc.fetchSite)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: cookieName, Value: tc.cookie})
			}
			if tc.header != "" {
				req.Header.Set(HeaderName, tc.header)
			}
			rec := httptest.NewRecorder()
			newHandler().ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}
