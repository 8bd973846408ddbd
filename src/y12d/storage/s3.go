package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Config holds the S3 storage configuration
type S3Config struct {
	// Endpoint is the S3-compatible endpoint URL, e.g. "https://<account>.r2.cloudflarestorage.com".
	// Empty uses the AWS default for Region.
	Endpoint string

	Region string
	Bucket string

	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle enables path-style addressing (required for most S3-compatible storage)
	UsePathStyle bool
}

const (
	// uploadPartSize bounds a streamed upload to 10000 parts of this size
	uploadPartSize    = 64 * 1024 * 1024
	uploadConcurrency = 3

	// maxCopySize is the largest object CopyObject accepts in one request
	maxCopySize  = 5 * 1024 * 1024 * 1024
	copyPartSize = 512 * 1024 * 1024
)

// S3Backend implements storage using S3-compatible object storage
type S3Backend struct {
	client   *s3.Client
	uploader *manager.Uploader
	config   S3Config
}

// NewS3 creates a new S3 storage backend
func NewS3(cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
		u.Concurrency = uploadConcurrency
	})

	return &S3Backend{client: client, uploader: uploader, config: cfg}, nil
}

// isS3NotFound matches both the typed HeadObject/GetObject errors and the
// bare status codes returned by some S3-compatible services
func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "404":
			return true
		}
	}
	return false
}

// Upload uploads data to S3. Small seekable bodies of known size go out in
// one PutObject; anything else is streamed as a multipart upload.
func (b *S3Backend) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts UploadOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	if singlePut(reader, size) {
		input.ContentLength = aws.Int64(size)
		if _, err := b.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("failed to upload object %s: %w", key, err)
		}
	} else {
		if _, err := b.uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("failed to upload object %s: %w", key, err)
		}
	}

	log.Debug("Stored object", "key", key, "size", size, "bucket", b.config.Bucket)
	return nil
}

func singlePut(r io.Reader, size int64) bool {
	if _, ok := r.(io.Seeker); !ok {
		return false
	}
	return size >= 0 && size <= uploadPartSize
}

// Download downloads an object from S3
func (b *S3Backend) Download(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, nil, fmt.Errorf("failed to download object %s: %w", key, err)
	}

	info := &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		ETag:         aws.ToString(output.ETag),
		LastModified: aws.ToTime(output.LastModified),
		Metadata:     output.Metadata,
	}

	return output.Body, info, nil
}

// Delete deletes an object from S3
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// Move copies src over dst server side and deletes src
func (b *S3Backend) Move(ctx context.Context, src, dst string, opts UploadOptions) error {
	info, err := b.Stat(ctx, src)
	if err != nil {
		return err
	}
	if opts.empty() {
		opts = UploadOptions{ContentType: info.ContentType, Metadata: info.Metadata}
	}

	if info.Size <= maxCopySize {
		err = b.copyObject(ctx, src, dst, opts)
	} else {
		err = b.copyMultipart(ctx, src, dst, info.Size, opts)
	}
	if err != nil {
		return err
	}

	if err := b.Delete(ctx, src); err != nil {
		log.Warn("Failed to remove moved object", "key", src, "error", err)
	}
	log.Debug("Moved object", "from", src, "to", dst, "size", info.Size)
	return nil
}

// copySource returns the URL encoded bucket/key form CopySource expects
func (b *S3Backend) copySource(key string) string {
	u := url.URL{Path: b.config.Bucket + "/" + key}
	return u.EscapedPath()
}

func (b *S3Backend) copyObject(ctx context.Context, src, dst string, opts UploadOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(b.config.Bucket),
		Key:               aws.String(dst),
		CopySource:        aws.String(b.copySource(src)),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if _, err := b.client.CopyObject(ctx, input); err != nil {
		return fmt.Errorf("failed to copy object %s to %s: %w", src, dst, err)
	}
	return nil
}

// copyMultipart copies objects above the CopyObject limit part by part.
// A failed copy aborts the multipart upload so no parts are left behind.
func (b *S3Backend) copyMultipart(ctx context.Context, src, dst string, size int64, opts UploadOptions) error {
	create := &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(b.config.Bucket),
		Key:      aws.String(dst),
		Metadata: opts.Metadata,
	}
	if opts.ContentType != "" {
		create.ContentType = aws.String(opts.ContentType)
	}
	upload, err := b.client.CreateMultipartUpload(ctx, create)
	if err != nil {
		return fmt.Errorf("failed to start multipart copy of %s: %w", src, err)
	}

	parts, err := b.copyParts(ctx, src, dst, upload.UploadId, size)
	if err == nil {
		_, err = b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          aws.String(b.config.Bucket),
			Key:             aws.String(dst),
			UploadId:        upload.UploadId,
			MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		})
	}
	if err != nil {
		_, abortErr := b.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(b.config.Bucket),
			Key:      aws.String(dst),
			UploadId: upload.UploadId,
		})
		if abortErr != nil {
			log.Warn("Failed to abort multipart copy", "key", dst, "error", abortErr)
		}
		return fmt.Errorf("failed to copy object %s to %s: %w", src, dst, err)
	}
	return nil
}

func (b *S3Backend) copyParts(ctx context.Context, src, dst string, uploadID *string, size int64) ([]types.CompletedPart, error) {
	var parts []types.CompletedPart
	for i, start := int32(1), int64(0); start < size; i, start = i+1, start+copyPartSize {
		end := min(start+copyPartSize, size) - 1
		out, err := b.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket:          aws.String(b.config.Bucket),
			Key:             aws.String(dst),
			UploadId:        uploadID,
			PartNumber:      aws.Int32(i),
			CopySource:      aws.String(b.copySource(src)),
			CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", start, end)),
		})
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		var etag *string
		if out.CopyPartResult != nil {
			etag = out.CopyPartResult.ETag
		}
		parts = append(parts, types.CompletedPart{ETag: etag, PartNumber: aws.Int32(i)})
	}
	return parts, nil
}

// Stat retrieves metadata for an object
func (b *S3Backend) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	output, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object info for %s: %w", key, err)
	}

	return &ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ContentType:  aws.ToString(output.ContentType),
		ETag:         aws.ToString(output.ETag),
		LastModified: aws.ToTime(output.LastModified),
		Metadata:     output.Metadata,
	}, nil
}

// List lists objects with the given prefix
func (b *S3Backend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := []ObjectInfo{}

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.config.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

// PresignURL generates a presigned GET URL
func (b *S3Backend) PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(b.client)

	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL for %s: %w", key, err)
	}

	return request.URL, nil
}

// Ping checks that the bucket is reachable
func (b *S3Backend) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", b.config.Bucket, err)
	}
	return nil
}

// Type returns the storage backend type
func (b *S3Backend) Type() string {
	return "s3"
}

// Location returns the S3 endpoint and bucket
func (b *S3Backend) Location() string {
	if b.config.Endpoint == "" {
		return fmt.Sprintf("s3://%s", b.config.Bucket)
	}
	return fmt.Sprintf("%s/%s", b.config.Endpoint, b.config.Bucket)
}
