// AngelaMos | 2026
// context.go

package core

import (
	"context"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	uploadsKey   contextKey = "uploads"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUploads records file fields that were already pushed to the image
// host, keyed by form field name, valued by the stored public ID.
func WithUploads(ctx context.Context, uploads map[string]string) context.Context {
	return context.WithValue(ctx, uploadsKey, uploads)
}

func UploadsFromContext(ctx context.Context) map[string]string {
	if uploads, ok := ctx.Value(uploadsKey).(map[string]string); ok {
		return uploads
	}
	return nil
}
