// Package core defines the interfaces shared between the editor components.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// TokenSource supplies the bearer token for a single backend request.
// Implementations must not be assumed to cache; callers ask once per request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NotificationKind classifies a user-facing notification.
type NotificationKind string

// Notification kinds surfaced to the user.
const (
	KindCatalogUnavailable NotificationKind = "catalog_unavailable"
	KindPreviewFailed      NotificationKind = "preview_failed"
	KindExportSucceeded    NotificationKind = "export_succeeded"
	KindExportFailed       NotificationKind = "export_failed"
)

// Notification is a message shown to the user. BlockID is set for per-block failures.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	BlockID string           `json:"block_id,omitempty"`
	Message string           `json:"message"`
}

// Notifier delivers notifications to the user. Notify must not block on the caller.
type Notifier interface {
	Notify(n Notification)
}
