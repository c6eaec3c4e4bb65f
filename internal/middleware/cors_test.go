package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestCORS_AllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		expectHeaders  bool
	}{
		{"exact_match", []string{"http://localhost:4000"}, "http://localhost:4000", true},
		{"second_of_many", []string{"http://a.test", "http://b.test"}, "http://b.test", true},
		{"wildcard", []string{"*"}, "http://anything.test", true},
		{"not_allowed", []string{"http://a.test"}, "http://evil.test", false},
		{"no_origin_header", []string{"*"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.allowedOrigins)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
			if tt.requestOrigin != "" {
				req.Header.Set("Origin", tt.requestOrigin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusTeapot, rec.Code)
			if tt.expectHeaders {
				assert.Equal(t, tt.requestOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
				assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORS_PreflightRequest(t *testing.T) {
	handler := CORS([]string{"http://localhost:4000"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "http://localhost:4000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:4000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightWithDisallowedOrigin(t *testing.T) {
	handler := CORS([]string{"http://localhost:4000"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single_origin", "http://localhost:4000", []string{"http://localhost:4000"}},
		{"multiple_origins", "http://a.test,http://b.test", []string{"http://a.test", "http://b.test"}},
		{"trim_spaces", " http://a.test , http://b.test ", []string{"http://a.test", "http://b.test"}},
		{"wildcard", "*", []string{"*"}},
		{"empty_string", "", []string{}},
		{"skips_empty_entries", "http://a.test,,", []string{"http://a.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseOrigins(tt.input))
		})
	}
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		host    string
		want    bool
	}{
		{"no_origin", []string{"http://a.test"}, "", "relay.test", true},
		{"listed", []string{"http://a.test"}, "http://a.test", "relay.test", true},
		{"wildcard", []string{"*"}, "http://b.test", "relay.test", true},
		{"same_origin", []string{"http://a.test"}, "http://relay.test:4000", "relay.test:4000", true},
		{"foreign", []string{"http://a.test"}, "http://evil.test", "relay.test", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/socket", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, OriginAllowed(tt.allowed)(req))
		})
	}
}
