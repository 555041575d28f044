// Package upload copies classified files to S3-compatible object storage and
// records the outcome of each upload in the attachment log.
package upload

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/logstore"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"lukechampine.com/blake3"
)

// DigestMetadataKey is the user metadata key carrying the content digest.
const DigestMetadataKey = "Blake3"

// ErrMissingBucket is returned when no bucket is configured.
var ErrMissingBucket = errors.New("upload bucket not configured")

// ObjectPutter is the subset of the minio client used for uploads.
type ObjectPutter interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Config holds connection settings for the object store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Trace     bool
}

// NewS3Client connects to an S3-compatible endpoint.
func NewS3Client(cfg S3Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage client: %w", err)
	}
	if cfg.Trace {
		client.TraceOn(os.Stderr)
	}
	return client, nil
}

// Options configures an Uploader.
type Options struct {
	Bucket string
	// Prefix is prepended to every object key.
	Prefix string
	Retry  common.RetryOptions
}

// StatusWriter records the upload outcome of a log entry.
type StatusWriter interface {
	SetUploadStatus(ctx context.Context, key model.EntryKey, status model.UploadStatus) (int, error)
}

// Summary counts the outcome of an upload pass.
type Summary struct {
	Diagnostics []model.Diagnostic
	Uploaded    int
	Failed      int
	Skipped     int
}

// Uploader uploads logged files and writes their status back to the log.
type Uploader struct {
	client ObjectPutter
	store  StatusWriter
	opts   Options
}

// New creates an uploader.
func New(client ObjectPutter, store StatusWriter, opts Options) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		}
	}
	return &Uploader{client: client, store: store, opts: opts}, nil
}

// ObjectKey is the remote location of a logged file: the prefix, then the
// taxonomy destination path, then the file name.
func ObjectKey(prefix string, entry model.AttachmentLogEntry) string {
	return strings.TrimPrefix(path.Join(prefix, entry.DestinationPath, entry.NewName), "/")
}

// UploadAll uploads every pending entry that has a destination. Files are read
// from root/<partition>/<new name>. Entries without a destination or with a
// status already set are skipped.
func (u *Uploader) UploadAll(ctx context.Context, root string, entries []model.AttachmentLogEntry) (Summary, error) {
	var summary Summary

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if entry.DestinationPath == "" || entry.UploadStatus.IsSet() {
			summary.Skipped++
			continue
		}

		local := filepath.Join(root, entry.Partition, entry.NewName)
		status := model.UploadComplete
		if err := u.uploadFile(ctx, local, ObjectKey(u.opts.Prefix, entry)); err != nil {
			status = model.UploadFailed
			summary.Failed++
			common.LogError(err, "Upload failed", common.Fields{"file": local, "sender": entry.SenderEmail})
			summary.Diagnostics = append(summary.Diagnostics, model.Diagnostic{
				Kind:    model.DiagFileError,
				Subject: entry.NewName,
				Message: "upload failed",
				Err:     err,
			})
		} else {
			summary.Uploaded++
		}

		if _, err := u.store.SetUploadStatus(ctx, entry.Key(), status); err != nil {
			if errors.Is(err, logstore.ErrStatusAlreadySet) {
				continue
			}
			return summary, fmt.Errorf("failed to record upload status: %w", err)
		}
	}

	slog.Info("Upload complete",
		"uploaded", summary.Uploaded,
		"failed", summary.Failed,
		"skipped", summary.Skipped)

	return summary, nil
}

func (u *Uploader) uploadFile(ctx context.Context, local, key string) error {
	digest, err := FileDigest(local)
	if err != nil {
		return err
	}

	opts := minio.PutObjectOptions{
		UserMetadata: map[string]string{DigestMetadataKey: digest},
	}
	return common.WithRetry(ctx, func() error {
		_, err := u.client.FPutObject(ctx, u.opts.Bucket, key, local, opts)
		return err
	}, u.opts.Retry)
}

// FileDigest returns the hex BLAKE3-256 digest of a file.
func FileDigest(name string) (string, error) {
	f, err := os.Open(name) // #nosec G304 -- path built from the download directory and log entry
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
