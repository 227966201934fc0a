package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned by Get, Head and SetMetadata when the key does
// not exist. Every backend translates its own missing-key error into this
// sentinel so callers can test with errors.Is.
var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key         string
	Size        int64
	Uploaded    time.Time
	ETag        string
	ContentType string
	Metadata    map[string]string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ListOptions pages through a key namespace. Cursor is the last key of the
// previous page; keys lexically at or before it are skipped.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
}

type ListResult struct {
	Objects   []ObjectInfo
	Truncated bool
	Cursor    string
}

// ObjectStore is the opaque key/blob surface the backup engine and the
// failover gateway operate against.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, opts PutOptions) error
	Get(ctx context.Context, key string) ([]byte, *ObjectInfo, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	List(ctx context.Context, opts ListOptions) (*ListResult, error)

	// Delete is idempotent: removing an absent key succeeds.
	Delete(ctx context.Context, key string) error

	// SetMetadata replaces the custom metadata of an existing object without
	// rewriting its data.
	SetMetadata(ctx context.Context, key string, metadata map[string]string) error
}
