package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vocabquiz/internal/auth"
)

func TestIPRateLimiterAllow(t *testing.T) {
	l := NewIPRateLimiter(2, 0)
	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatalf("keys must be counted separately")
	}
}

func TestIPRateLimiterWindowResetAndSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewIPRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || l.Allow("a") {
		t.Fatalf("expected one request per window")
	}
	now = now.Add(2 * time.Minute)
	if !l.Allow("b") {
		t.Fatalf("fresh key should pass")
	}
	if _, ok := l.store["a"]; ok {
		t.Fatalf("expired bucket should be swept")
	}
	if !l.Allow("a") {
		t.Fatalf("new window should allow again")
	}
}

func TestRateLimitMiddlewareSetsRetryAfter(t *testing.T) {
	l := NewIPRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestCSRFMiddleware(t *testing.T) {
	next := CSRFMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{
			name: "matching cookie and header", method: http.MethodPost,
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
				r.Header.Set(csrfHeaderName, "abc")
			},
			wantStatus: http.StatusOK,
		},
		{name: "missing token", method: http.MethodPost, setup: func(r *http.Request) {}, wantStatus: http.StatusForbidden},
		{
			name: "mismatched token", method: http.MethodPost,
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
				r.Header.Set(csrfHeaderName, "xyz")
			},
			wantStatus: http.StatusForbidden,
		},
		{name: "safe method", method: http.MethodGet, setup: func(r *http.Request) {}, wantStatus: http.StatusOK},
		{
			name: "bearer token", method: http.MethodPost,
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer t") },
			wantStatus: http.StatusOK,
		},
		{
			name: "grading token", method: http.MethodPost,
			setup:      func(r *http.Request) { r.Header.Set(auth.ServiceTokenHeader, "g") },
			wantStatus: http.StatusOK,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/quizzes/q1/draft/submit", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			next.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
		})
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	w := httptest.NewRecorder()
	CSRFTokenHandler(false)(w, httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf", nil))

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != csrfCookieName || cookies[0].Value != body["csrf_token"] {
		t.Fatalf("cookie and body token must match: %+v %v", cookies, body)
	}
}
