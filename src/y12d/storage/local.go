package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitswalk/y12/src/common/paths"
)

const (
	metaDir      = ".meta"
	uploadPrefix = ".upload-"
)

// LocalConfig holds the local filesystem storage configuration
type LocalConfig struct {
	// BasePath is the root directory for storing artifacts
	BasePath string
}

// LocalBackend implements storage on the local filesystem.
// Content type and user metadata are kept in JSON sidecars under .meta/.
type LocalBackend struct {
	basePath string
}

type localMeta struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewLocal creates a new local filesystem storage backend
func NewLocal(cfg LocalConfig) (*LocalBackend, error) {
	basePath := paths.Expand(cfg.BasePath)
	if basePath == "" {
		return nil, fmt.Errorf("local storage base path is empty")
	}

	if err := paths.EnsureDirPath(basePath); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory %s: %w", basePath, err)
	}

	return &LocalBackend{basePath: abs}, nil
}

// cleanKey strips leading separators and parent references from key
func cleanKey(key string) string {
	k := filepath.Clean("/" + filepath.FromSlash(key))
	return strings.TrimPrefix(k, string(filepath.Separator))
}

func (b *LocalBackend) fullPath(key string) string {
	return filepath.Join(b.basePath, cleanKey(key))
}

func (b *LocalBackend) metaPath(key string) string {
	return filepath.Join(b.basePath, metaDir, cleanKey(key)+".json")
}

// Upload writes to a temporary file and renames it into place, so readers
// never observe a partial object
func (b *LocalBackend) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts UploadOptions) error {
	fullPath := b.fullPath(key)
	dir := filepath.Dir(fullPath)
	if err := paths.EnsureDirPath(dir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, uploadPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create file for %s: %w", key, err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: reader})
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	if size >= 0 && written != size {
		os.Remove(tmpPath)
		return fmt.Errorf("size mismatch for %s: expected %d bytes, wrote %d bytes", key, size, written)
	}

	if err := b.writeMeta(key, opts); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	log.Debug("Stored object", "key", key, "size", written)
	return nil
}

func (b *LocalBackend) writeMeta(key string, opts UploadOptions) error {
	mp := b.metaPath(key)
	if opts.empty() {
		os.Remove(mp)
		return nil
	}

	data, err := json.Marshal(localMeta{ContentType: opts.ContentType, Metadata: opts.Metadata})
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", key, err)
	}
	if err := paths.EnsureDir(mp); err != nil {
		return fmt.Errorf("failed to create metadata directory for %s: %w", key, err)
	}
	if err := os.WriteFile(mp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", key, err)
	}
	return nil
}

func (b *LocalBackend) readMeta(key string) localMeta {
	var m localMeta
	data, err := os.ReadFile(b.metaPath(key))
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		log.Warn("Ignoring unreadable object metadata", "key", key, "error", err)
	}
	return m
}

// Download opens a file from the local filesystem
func (b *LocalBackend) Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := b.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, nil, fmt.Errorf("failed to open %s: %w", key, err)
	}

	return file, info, nil
}

// Delete deletes a file and its metadata. Missing keys are not an error.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	fullPath := b.fullPath(key)

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	mp := b.metaPath(key)
	os.Remove(mp)

	b.cleanEmptyDirs(filepath.Dir(fullPath))
	b.cleanEmptyDirs(filepath.Dir(mp))
	return nil
}

// Move renames src over dst. Both keys must live on the same filesystem,
// which holds for every key under basePath.
func (b *LocalBackend) Move(ctx context.Context, src, dst string, opts UploadOptions) error {
	srcPath, dstPath := b.fullPath(src), b.fullPath(dst)
	if _, err := b.Stat(ctx, src); err != nil {
		return err
	}
	if opts.empty() {
		m := b.readMeta(src)
		opts = UploadOptions{ContentType: m.ContentType, Metadata: m.Metadata}
	}

	if err := paths.EnsureDirPath(filepath.Dir(dstPath)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := b.writeMeta(dst, opts); err != nil {
		return err
	}
	if err := os.Rename(srcPath, dstPath); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	mp := b.metaPath(src)
	os.Remove(mp)
	b.cleanEmptyDirs(filepath.Dir(srcPath))
	b.cleanEmptyDirs(filepath.Dir(mp))

	log.Debug("Moved object", "from", src, "to", dst)
	return nil
}

// cleanEmptyDirs removes empty parent directories up to basePath
func (b *LocalBackend) cleanEmptyDirs(dir string) {
	for dir != b.basePath && strings.HasPrefix(dir, b.basePath) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}

// Stat retrieves metadata for a file
func (b *LocalBackend) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := os.Stat(b.fullPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return b.objectInfo(key, stat), nil
}

func (b *LocalBackend) objectInfo(key string, stat os.FileInfo) *ObjectInfo {
	meta := b.readMeta(key)
	contentType := meta.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(key))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  contentType,
		ETag:         generateETag(stat),
		LastModified: stat.ModTime(),
		Metadata:     meta.Metadata,
	}
}

func generateETag(stat os.FileInfo) string {
	data := fmt.Sprintf("%s-%d-%d", stat.Name(), stat.Size(), stat.ModTime().UnixNano())
	hash := md5.Sum([]byte(data))
	return fmt.Sprintf("\"%s\"", hex.EncodeToString(hash[:]))
}

// List lists files with the given prefix, sorted by key
func (b *LocalBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}
	prefix = strings.TrimPrefix(prefix, "/")

	err := filepath.Walk(b.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != b.basePath && info.Name() == metaDir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(info.Name(), uploadPrefix) {
			return nil
		}

		rel, err := filepath.Rel(b.basePath, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		objects = append(objects, *b.objectInfo(key, info))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
	}

	return objects, nil
}

// PresignURL is not supported for local filesystem
func (b *LocalBackend) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

// Ping checks if the storage directory is accessible
func (b *LocalBackend) Ping(ctx context.Context) error {
	if _, err := os.Stat(b.basePath); err != nil {
		return fmt.Errorf("storage directory not accessible: %w", err)
	}
	return nil
}

// Type returns the storage backend type
func (b *LocalBackend) Type() string {
	return "local"
}

// Location returns the base path
func (b *LocalBackend) Location() string {
	return b.basePath
}

// ctxReader stops a long copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
