package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iconidentify/xfetch/internal/domain"
)

func authedHandler(apiKey string) http.Handler {
	return APIKeyAuth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
}

func TestAPIKeyAuth(t *testing.T) {
	const apiKey = "test-secret-key"

	tests := []struct {
		name       string
		setRequest func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "missing key",
			setRequest: func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "valid X-API-Key header",
			setRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", apiKey)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "invalid X-API-Key header",
			setRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", "wrong-key")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "valid Bearer token",
			setRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+apiKey)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "malformed Authorization header",
			setRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "valid query parameter",
			setRequest: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("key", apiKey)
				r.URL.RawQuery = q.Encode()
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "header takes precedence over query",
			setRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", "wrong-key")
				q := r.URL.Query()
				q.Set("key", apiKey)
				r.URL.RawQuery = q.Encode()
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	handler := authedHandler(apiKey)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
			tt.setRequest(req)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestAPIKeyAuthRejectionBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rr := httptest.NewRecorder()

	authedHandler("test-secret-key").ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rr.Body.String(), domain.ErrInvalidAPIKey.Error()) {
		t.Errorf("body = %q, want it to mention %q", rr.Body.String(), domain.ErrInvalidAPIKey)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/downloads", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

func TestCORSPassthrough(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header on normal request")
	}
}
