package driven

import "context"

// ObjectStore abstracts the blob store holding uploaded files and
// conversion outputs. Implementations are S3-compatible; errors are
// propagated to the caller as job failures, not retried internally.
type ObjectStore interface {
	// Download fetches the object at key.
	Download(ctx context.Context, key string) ([]byte, error)

	// Upload writes data under key and returns a public or signed URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
}
