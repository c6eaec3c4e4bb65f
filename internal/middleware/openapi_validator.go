package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"chat-relay/internal/observability"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig holds configuration for OpenAPI validation middleware
type OpenAPIValidatorConfig struct {
	// Enabled controls whether validation is active
	Enabled bool
	// SpecPath is the path to the OpenAPI document
	SpecPath string
	// ValidateRequests rejects requests that do not match the document
	ValidateRequests bool
	// ValidateResponses checks handler responses and reports mismatches.
	// Responses are buffered while this is on.
	ValidateResponses bool
	// SkipPaths are path prefixes that bypass validation
	SkipPaths []string
}

// DefaultOpenAPIValidatorConfig validates requests against the document at specPath
func DefaultOpenAPIValidatorConfig(enabled bool, specPath string) *OpenAPIValidatorConfig {
	return &OpenAPIValidatorConfig{
		Enabled:          enabled,
		SpecPath:         specPath,
		ValidateRequests: true,
		SkipPaths: []string{
			"/health",
			"/metrics",
		},
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

// OpenAPIValidator checks API traffic against an OpenAPI 3 document.
// Invalid requests get a 400. Invalid responses are still sent, then logged
// and counted in openapi_response_violations_total.
func OpenAPIValidator(config *OpenAPIValidatorConfig) func(next http.Handler) http.Handler {
	if config == nil {
		config = DefaultOpenAPIValidatorConfig(true, "api/openapi.yaml")
	}

	if !config.Enabled {
		slog.Info("OpenAPI validation disabled")
		return passthrough
	}

	router, err := loadRouter(config.SpecPath)
	if err != nil {
		// a broken document must not take the API down
		slog.Error("OpenAPI validation unavailable",
			slog.String("path", config.SpecPath),
			slog.String("error", err.Error()))
		return passthrough
	}

	slog.Info("OpenAPI validation enabled",
		slog.Bool("validate_requests", config.ValidateRequests),
		slog.Bool("validate_responses", config.ValidateResponses),
		slog.String("spec_path", config.SpecPath))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if config.ValidateRequests {
					slog.Warn("request path not found in OpenAPI spec",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path))
					writeValidationError(w, fmt.Sprintf("Path not found in OpenAPI spec: %s %s", r.Method, r.URL.Path))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}

			if config.ValidateRequests {
				if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
					slog.Warn("request validation failed",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()))
					writeValidationError(w, fmt.Sprintf("Request validation failed: %s", err.Error()))
					return
				}
			}

			// upgraded connections have no response body to check and need the
			// original writer for hijacking
			if !config.ValidateResponses || isUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}

			capture := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			checkResponse(input, capture)
		})
	}
}

func loadRouter(specPath string) (routers.Router, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("load spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid spec: %w", err)
	}
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	return router, nil
}

func checkResponse(input *openapi3filter.RequestValidationInput, capture *capturingWriter) {
	r := input.Request
	err := openapi3filter.ValidateResponse(r.Context(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: input,
		Status:                 capture.status,
		Header:                 capture.Header(),
		Body:                   io.NopCloser(bytes.NewReader(capture.body.Bytes())),
		Options:                input.Options,
	})
	if err == nil {
		return
	}

	observability.OpenAPIResponseViolations.WithLabelValues(input.Route.Operation.OperationID).Inc()
	slog.Warn("response validation failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("operation", input.Route.Operation.OperationID),
		slog.Int("status", capture.status),
		slog.String("error", err.Error()))
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// shouldSkipPath checks if a path should skip validation
func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath || strings.HasPrefix(path, strings.TrimSuffix(skipPath, "/")+"/") {
			return true
		}
	}
	return false
}

// writeValidationError writes a JSON error response
func writeValidationError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// capturingWriter passes the response through while keeping a copy of the
// status and body
type capturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *capturingWriter) WriteHeader(status int) {
	if !c.wroteHeader {
		c.status = status
		c.wroteHeader = true
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	c.wroteHeader = true
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *capturingWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}
