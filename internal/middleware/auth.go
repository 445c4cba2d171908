package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"user-onboarding/internal/common/logging"
)

const (
	// APIKeyHeader is checked when an API key is configured
	APIKeyHeader = "X-API-Key"
	// SignatureHeader carries the hex HMAC-SHA256 of the request body
	SignatureHeader = "X-Webhook-Signature"
)

// maxSignedBody bounds how much of a body is read for verification
const maxSignedBody = 1 << 20

// APIKey rejects requests without the configured key: 401 when the header is
// missing, 403 when it does not match. An empty key disables the check.
func APIKey(key string, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				logger.Warn("API key missing", logging.String("path", r.URL.Path))
				w.Header().Set("WWW-Authenticate", "ApiKey")
				writeDetail(w, http.StatusUnauthorized, "API key required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.Warn("Invalid API key", logging.String("path", r.URL.Path))
				writeDetail(w, http.StatusForbidden, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Signature verifies X-Webhook-Signature against the HMAC-SHA256 of the body.
// The header may carry a "sha256=" prefix. An empty secret disables the check.
func Signature(secret string, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBody+1))
			if err != nil {
				writeDetail(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			if len(body) > maxSignedBody {
				writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			provided := strings.TrimPrefix(r.Header.Get(SignatureHeader), "sha256=")
			if provided == "" || !hmac.Equal([]byte(provided), []byte(ComputeSignature(body, secret))) {
				logger.Warn("Webhook signature rejected", logging.String("path", r.URL.Path))
				writeDetail(w, http.StatusUnauthorized, "Invalid webhook signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ComputeSignature returns the hex HMAC-SHA256 of payload
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
