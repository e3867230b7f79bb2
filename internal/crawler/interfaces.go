package crawler

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrCorruptMarker is returned by cursor stores whose persisted marker cannot be parsed.
var ErrCorruptMarker = errors.New("corrupt cursor marker")

// PageSource yields pages of postings in fetch order. more is false once no
// page follows the one returned.
type PageSource interface {
	NextPage(ctx context.Context) (postings []RawPosting, more bool, err error)
}

// DetailFetcher completes a posting from its detail page. Sources that only
// see listing summaries implement it.
type DetailFetcher interface {
	Detail(ctx context.Context, posting RawPosting) (RawPosting, error)
}

// CursorStore persists the resumption marker between runs.
type CursorStore interface {
	Load(ctx context.Context) (marker string, ok bool, err error)
	Save(ctx context.Context, marker string) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Catalog records persisted snapshots.
type Catalog interface {
	RecordSnapshot(ctx context.Context, meta SnapshotMeta) error
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]SnapshotMeta, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Hasher computes digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
