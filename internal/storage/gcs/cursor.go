package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

// maxMarkerBytes bounds the marker object; anything larger is not a marker.
const maxMarkerBytes = 4096

// CursorStore keeps the marker in a single object.
type CursorStore struct {
	client *storage.Client
	bucket string
	object string
}

// NewCursorStore returns a store for gs://bucket/object.
func NewCursorStore(client *storage.Client, bucket, object string) (*CursorStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" || strings.TrimSpace(object) == "" {
		return nil, fmt.Errorf("bucket and object are required")
	}
	return &CursorStore{client: client, bucket: bucket, object: object}, nil
}

// Load reads the marker object. A missing object means no marker.
func (s *CursorStore) Load(ctx context.Context) (string, bool, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("open cursor object: %w", err)
	}
	defer r.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(io.LimitReader(r, maxMarkerBytes+1))
	if err != nil {
		return "", false, fmt.Errorf("read cursor object: %w", err)
	}
	if len(data) > maxMarkerBytes {
		return "", false, fmt.Errorf("cursor object %s: %w", s.object, crawler.ErrCorruptMarker)
	}
	marker := strings.TrimSpace(string(data))
	if marker == "" {
		return "", false, nil
	}
	return marker, true, nil
}

// Save overwrites the marker object.
func (s *CursorStore) Save(ctx context.Context, marker string) error {
	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := io.WriteString(w, marker); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return fmt.Errorf("write cursor object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write cursor object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close cursor writer: %w", err)
	}
	return nil
}
