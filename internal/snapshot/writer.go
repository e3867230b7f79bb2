// Package snapshot persists a run's vacancy document to the blob store and
// records it in the catalog.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
	"github.com/JakeFAU/job-skills-crawler/internal/id/uuid"
	"github.com/JakeFAU/job-skills-crawler/internal/vacancy"
)

// ContentType of snapshot documents.
const ContentType = "application/json"

// Skills groups canonical skills by section kind.
type Skills struct {
	Required []crawler.CanonicalSkill `json:"required"`
	Optional []crawler.CanonicalSkill `json:"optional"`
	Other    []crawler.CanonicalSkill `json:"other"`
	All      []crawler.CanonicalSkill `json:"all"`
}

// Window is the half-open posting window (previous, next] a run covered.
type Window struct {
	PreviousMarker string `json:"previous_marker,omitempty"`
	NewMarker      string `json:"new_marker,omitempty"`
	Outcome        string `json:"outcome"`
}

// Document is the JSON body of one snapshot.
type Document struct {
	RunID     string           `json:"run_id"`
	CreatedAt time.Time        `json:"created_at"`
	Window    Window           `json:"window"`
	Vacancies []vacancy.Record `json:"vacancies"`
	Skills    Skills           `json:"skills"`
	Top       Skills           `json:"top"`
}

// FileName is vacancies_YYYY_MM_DD_<run>.json.
func FileName(createdAt time.Time, runID string) string {
	name := "vacancies_" + createdAt.UTC().Format("2006_01_02")
	if runID != "" {
		name += "_" + uuid.Short(runID)
	}
	return name + ".json"
}

// Writer stores documents.
type Writer struct {
	blobs   crawler.BlobStore
	catalog crawler.Catalog
	hasher  crawler.Hasher
	prefix  string
	logger  *zap.Logger
}

// NewWriter wires the writer. prefix is prepended to object paths.
func NewWriter(
	blobs crawler.BlobStore,
	catalog crawler.Catalog,
	hasher crawler.Hasher,
	prefix string,
	logger *zap.Logger,
) (*Writer, error) {
	if blobs == nil || catalog == nil || hasher == nil {
		return nil, errors.New("blob store, catalog and hasher are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{blobs: blobs, catalog: catalog, hasher: hasher, prefix: prefix, logger: logger}, nil
}

// Write uploads doc and records it. The catalog row is only written after
// the upload succeeded.
func (w *Writer) Write(ctx context.Context, doc Document) (crawler.SnapshotMeta, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return crawler.SnapshotMeta{}, fmt.Errorf("encode snapshot: %w", err)
	}
	digest, err := w.hasher.Hash(body)
	if err != nil {
		return crawler.SnapshotMeta{}, fmt.Errorf("hash snapshot: %w", err)
	}
	name := FileName(doc.CreatedAt, doc.RunID)
	uri, err := w.blobs.PutObject(ctx, path.Join(w.prefix, name), ContentType, bytes.NewReader(body))
	if err != nil {
		return crawler.SnapshotMeta{}, fmt.Errorf("upload snapshot: %w", err)
	}
	meta := crawler.SnapshotMeta{
		RunID:     doc.RunID,
		FileName:  name,
		URI:       uri,
		Digest:    digest,
		Postings:  len(doc.Vacancies),
		Skills:    len(doc.Skills.All),
		CreatedAt: doc.CreatedAt,
	}
	if err := w.catalog.RecordSnapshot(ctx, meta); err != nil {
		return crawler.SnapshotMeta{}, fmt.Errorf("record snapshot: %w", err)
	}
	w.logger.Info("snapshot written",
		zap.String("run_id", doc.RunID),
		zap.String("uri", uri),
		zap.Int("postings", meta.Postings),
	)
	return meta, nil
}
