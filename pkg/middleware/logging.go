// Package middleware provides HTTP middleware for the tournament BFF.
//
// This file implements request-ID propagation and structured application
// logging:
//   - Correlation ID storage/retrieval via context
//   - JSON structured logging
//   - Sensitive-field redaction (token/authorization/bearer never logged)
//
// Design Notes:
//   - Uses standard log package for compatibility
//   - Correlation IDs enable distributed tracing across services
//   - Request IDs stored in context for downstream use
package middleware

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
)

// contextKey type for context keys to avoid collisions
type contextKey string

const (
	// requestIDKey is the context key for request IDs
	requestIDKey contextKey = "request-id"
)

// WithRequestID adds a request ID to the context.
// Useful for manually propagating request IDs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromCtx retrieves the request ID from the context.
// Returns empty string if not found.
func RequestIDFromCtx(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// sensitiveFieldNames are field keys that LogWithRequestID redacts before
// marshaling, so a caller passing the upstream bearer token (or an
// Authorization header) through fields can never leak it into a log line.
var sensitiveFieldNames = map[string]bool{
	"token":          true,
	"authorization":  true,
	"bearer":         true,
	"upstream_token": true,
}

const redactedPlaceholder = "[REDACTED]"

func redactSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	clean := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sensitiveFieldNames[strings.ToLower(k)] {
			clean[k] = redactedPlaceholder
			continue
		}
		clean[k] = v
	}
	return clean
}

// LogWithRequestID logs a message with the request ID from context.
// Useful for application-level logging that should include correlation IDs.
// Any field whose key matches a known secret name (token, authorization,
// bearer, ...) is redacted before marshaling — the upstream bearer token
// must never reach a log line.
//
// Example:
//
//	LogWithRequestID(ctx, "Cache hit", map[string]interface{}{"key": "user:123"})
func LogWithRequestID(ctx context.Context, message string, fields map[string]interface{}) {
	requestID := RequestIDFromCtx(ctx)

	logEntry := map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
		"message":    message,
	}

	for k, v := range redactSensitiveFields(fields) {
		logEntry[k] = v
	}

	data, err := json.Marshal(logEntry)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal log entry: %v", err)
		return
	}

	log.Printf("[INFO] %s", string(data))
}
