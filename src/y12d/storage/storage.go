// Package storage provides the artifact store backends for y12d.
//
// Objects are addressed by slash separated keys. Build artifacts live under
// builds/<job id>/<file>, see ArtifactStore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bitswalk/y12/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the storage package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

var (
	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.New("object not found")

	// ErrPresignUnsupported is returned by backends without presigned URLs
	ErrPresignUnsupported = errors.New("presigned URLs not supported by this backend")
)

// Backend defines the interface for storage backends
type Backend interface {
	// Upload stores the reader under key. size < 0 means unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, opts UploadOptions) error

	// Download opens an object for reading
	Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	Delete(ctx context.Context, key string) error

	// Move replaces dst with src and removes src. Non-empty opts replace the
	// content type and metadata, otherwise those of src are kept.
	Move(ctx context.Context, src, dst string, opts UploadOptions) error

	// Stat returns object metadata or an error wrapping ErrNotFound
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// List lists objects with the given prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// PresignURL returns a time limited download URL, or ErrPresignUnsupported
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Ping checks if the storage is accessible
	Ping(ctx context.Context) error

	// Type returns the storage backend type
	Type() string

	// Location returns a human-readable location description
	Location() string
}

// UploadOptions carries per object attributes
type UploadOptions struct {
	ContentType string
	// Metadata keys must be lower case to survive S3 round trips
	Metadata map[string]string
}

func (o UploadOptions) empty() bool {
	return o.ContentType == "" && len(o.Metadata) == 0
}

// ObjectInfo holds metadata about a storage object
type ObjectInfo struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Config holds the storage configuration
type Config struct {
	// Type is the storage backend type: "s3" or "local"
	Type string

	Local LocalConfig
	S3    S3Config
}

// DefaultConfig returns a default storage configuration (local filesystem)
func DefaultConfig() Config {
	return Config{
		Type: "local",
		Local: LocalConfig{
			BasePath: "~/.y12d/artifacts",
		},
		S3: S3Config{
			Region:       "auto",
			UsePathStyle: true,
		},
	}
}

// New creates a new storage backend based on configuration
func New(cfg Config) (Backend, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg.S3)
	case "local", "":
		return NewLocal(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// IsNotFound reports whether err means the key does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
