// Package media implements the external media-storage collaborator: uploads
// of avatar and cover images to an S3-compatible object store.
package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage uploads a media object and returns its public URL. Failures are
// transport/quota errors from the object store; callers decide how to map
// them (the orchestrator treats them as upstream-dependency faults and never
// retries).
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// RandomStorageKey returns a date-sharded object key for an uploaded file.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("users/%d/%02d/%02d/%v", d.Year(), int(d.Month()), d.Day(), uuid.New())
}
