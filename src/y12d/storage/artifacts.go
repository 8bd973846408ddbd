package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/bitswalk/y12/src/y12d/generate"
)

// Object metadata keys set on uploaded images
const (
	MetaSHA256   = "sha256"
	MetaSize     = "size"
	MetaUploaded = "uploaded"
)

// ImageInfo describes a stored final image
type ImageInfo struct {
	Key        string
	Size       int64
	SHA256     string
	UploadedAt time.Time
}

// ArtifactStore namespaces a Backend per build job
type ArtifactStore struct {
	backend Backend
}

// NewArtifactStore wraps backend
func NewArtifactStore(backend Backend) *ArtifactStore {
	return &ArtifactStore{backend: backend}
}

// Backend returns the underlying backend
func (s *ArtifactStore) Backend() Backend {
	return s.backend
}

// JobPrefix is the key prefix of every object belonging to job id
func JobPrefix(id string) string {
	return "builds/" + id
}

// Key returns the object key of one job file
func Key(id, name string) string {
	return JobPrefix(id) + "/" + name
}

// ImageKey returns the object key of the final image
func ImageKey(id string) string {
	return Key(id, generate.FileImage)
}

// StagingKey returns a per upload key next to the image. Staged objects are
// hidden from local listings and never served.
func StagingKey(id string) string {
	return Key(id, uploadPrefix+uuid.New().String()+".iso")
}

// Put stores one text artifact
func (s *ArtifactStore) Put(ctx context.Context, id, name string, data []byte) error {
	err := s.backend.Upload(ctx, Key(id, name), bytes.NewReader(data), int64(len(data)), UploadOptions{
		ContentType: generate.ContentType(name),
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}
	return nil
}

// PutString is Put for string content
func (s *ArtifactStore) PutString(ctx context.Context, id, name, content string) error {
	return s.Put(ctx, id, name, []byte(content))
}

// Get reads one artifact fully. Missing artifacts wrap ErrNotFound.
func (s *ArtifactStore) Get(ctx context.Context, id, name string) ([]byte, error) {
	rc, _, err := s.backend.Download(ctx, Key(id, name))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// GetString is Get for text artifacts
func (s *ArtifactStore) GetString(ctx context.Context, id, name string) (string, error) {
	data, err := s.Get(ctx, id, name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Open streams one artifact
func (s *ArtifactStore) Open(ctx context.Context, id, name string) (io.ReadCloser, *ObjectInfo, error) {
	return s.backend.Download(ctx, Key(id, name))
}

// List returns the objects stored for job id
func (s *ArtifactStore) List(ctx context.Context, id string) ([]ObjectInfo, error) {
	return s.backend.List(ctx, JobPrefix(id)+"/")
}

// StageImage streams an image to a fresh staging key and returns the key.
// The committed image is left alone until CommitImage.
func (s *ArtifactStore) StageImage(ctx context.Context, id string, r io.Reader, size int64) (string, error) {
	key := StagingKey(id)
	err := s.backend.Upload(ctx, key, r, size, UploadOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return key, nil
}

// StagedInfo stats a staged image
func (s *ArtifactStore) StagedInfo(ctx context.Context, key string) (*ObjectInfo, error) {
	return s.backend.Stat(ctx, key)
}

// CommitImage moves a staged image over the final image key and records the
// verified checksum and size as object metadata
func (s *ArtifactStore) CommitImage(ctx context.Context, id, staged, sha256 string, size int64) error {
	err := s.backend.Move(ctx, staged, ImageKey(id), UploadOptions{
		ContentType: "application/octet-stream",
		Metadata: map[string]string{
			MetaSHA256:   sha256,
			MetaSize:     strconv.FormatInt(size, 10),
			MetaUploaded: time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit image: %w", err)
	}
	return nil
}

// DiscardImage removes a staged image
func (s *ArtifactStore) DiscardImage(ctx context.Context, staged string) error {
	return s.backend.Delete(ctx, staged)
}

// PutImage stages and commits an image whose checksum is already known
func (s *ArtifactStore) PutImage(ctx context.Context, id string, r io.Reader, size int64, sha256 string) error {
	staged, err := s.StageImage(ctx, id, r, size)
	if err != nil {
		return err
	}
	info, err := s.StagedInfo(ctx, staged)
	if err == nil {
		err = s.CommitImage(ctx, id, staged, sha256, info.Size)
	}
	if err != nil {
		if derr := s.DiscardImage(context.WithoutCancel(ctx), staged); derr != nil {
			log.Warn("Failed to remove staged image", "key", staged, "error", derr)
		}
		return err
	}
	return nil
}

// ImageInfo stats the final image. A missing image wraps ErrNotFound.
func (s *ArtifactStore) ImageInfo(ctx context.Context, id string) (*ImageInfo, error) {
	obj, err := s.backend.Stat(ctx, ImageKey(id))
	if err != nil {
		return nil, err
	}
	return imageInfo(obj), nil
}

func imageInfo(obj *ObjectInfo) *ImageInfo {
	info := &ImageInfo{
		Key:        obj.Key,
		Size:       obj.Size,
		UploadedAt: obj.LastModified,
	}
	if obj.Metadata != nil {
		info.SHA256 = obj.Metadata[MetaSHA256]
		if t, err := time.Parse(time.RFC3339, obj.Metadata[MetaUploaded]); err == nil {
			info.UploadedAt = t
		}
	}
	return info
}

// OpenImage streams the final image
func (s *ArtifactStore) OpenImage(ctx context.Context, id string) (io.ReadCloser, *ImageInfo, error) {
	rc, obj, err := s.backend.Download(ctx, ImageKey(id))
	if err != nil {
		return nil, nil, err
	}
	return rc, imageInfo(obj), nil
}

// PresignImage returns a time limited URL for the final image, or
// ErrPresignUnsupported
func (s *ArtifactStore) PresignImage(ctx context.Context, id string, expiry time.Duration) (string, error) {
	return s.backend.PresignURL(ctx, ImageKey(id), expiry)
}
