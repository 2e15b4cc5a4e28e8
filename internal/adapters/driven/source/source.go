// Package source fetches raw document bytes for the downloading stage.
//
// Storage paths are either local (a bare path or a file:// URI, resolved
// under a root directory) or S3 objects addressed as s3://bucket/key.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.DocumentSource = (*Router)(nil)

// Storage path schemes.
const (
	SchemeFile = "file://"
	SchemeS3   = "s3://"
)

// Router dispatches a storage path to the source for its scheme.
type Router struct {
	local driven.DocumentSource
	s3    driven.DocumentSource
}

// NewRouter creates a router. s3 may be nil when object storage is not
// configured; s3:// paths then fail.
func NewRouter(local, s3 driven.DocumentSource) *Router {
	return &Router{local: local, s3: s3}
}

// Fetch returns the bytes stored at storagePath.
func (r *Router) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	if strings.HasPrefix(storagePath, SchemeS3) {
		if r.s3 == nil {
			return nil, fmt.Errorf("%w: object storage is not configured for %s", domain.ErrInvalidInput, storagePath)
		}
		return r.s3.Fetch(ctx, storagePath)
	}
	if r.local == nil {
		return nil, fmt.Errorf("%w: local storage is not configured", domain.ErrInvalidInput)
	}
	return r.local.Fetch(ctx, storagePath)
}
