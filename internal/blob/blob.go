// Package blob stores the file artifacts attached to collection records:
// primary sequence maps (.dna), rendered previews (.png), GenBank exports
// (.gbk), and info sheets. Backends share create-only Put semantics so a
// derived artifact is never silently replaced mid-regeneration; the map
// pipeline writes a fresh timestamped key instead.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory, the single-host default
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// PutOptions carries the optional attributes recorded with an artifact.
// Metadata typically holds the owning record reference, e.g.
// {"entity": "plasmid/123"}.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions holds options for generating a pre-signed URL, used to
// hand map downloads to the browser without proxying the bytes.
type SignedURLOptions struct {
	Method string        // only GET is generated internally
	Expiry time.Duration // default 15m
}

// Info describes a stored artifact.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the artifact storage boundary. Keys follow the canonical naming
// in keys.go, e.g. collection/plasmid/png/pLAB123_20240602_150405.png.
type Store interface {
	// Put stores a new artifact at key and fails if the key exists. The
	// pipeline relies on this to never clobber a map while a preview of it
	// is being rendered.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get retrieves the artifact contents and metadata.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	// Head returns metadata only.
	Head(ctx context.Context, key string) (Info, error)
	// Delete removes an artifact. Returns (false, nil) if not found.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts under a prefix ordered by key, e.g. every PNG
	// preview of a collection via ArtifactPrefix.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a time-limited download URL for the key.
	// Backends without URL support return ErrUnsupported.
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	// Driver reports the configured backend.
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("blob: unsupported operation")

func cloneMD(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
