package driven

import "context"

// DocumentSource fetches raw document bytes from file storage.
type DocumentSource interface {
	// Fetch returns the bytes stored at storagePath.
	Fetch(ctx context.Context, storagePath string) ([]byte, error)
}
