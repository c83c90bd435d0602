// Package storage uploads post media and returns the public URL of each object.
package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/lumi/internal/model"
)

// BlobStore persists one media object and returns the URL clients fetch it from.
type BlobStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
}

// ObjectKey names a new object "posts/<uuid>.<ext>", where ext is the part of
// the content type after the last "/" ("image/png" gives "png").
func ObjectKey(contentType string) string {
	if contentType == "" {
		contentType = model.DefaultMediaType
	}
	ext := contentType
	if i := strings.LastIndex(ext, "/"); i >= 0 {
		ext = ext[i+1:]
	}
	return "posts/" + uuid.NewString() + "." + ext
}
