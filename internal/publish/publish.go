// Package publish uploads the persisted outputs of a run to an S3-compatible
// bucket.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lapdcalls/internal/metrics"
)

type Options struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Enabled reports whether a bucket is configured.
func (o Options) Enabled() bool { return o.Bucket != "" }

// objectStore is the part of *minio.Client used here.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Publisher struct {
	cli  objectStore
	opts Options
	log  *slog.Logger
}

func New(log *slog.Logger, opts Options) (*Publisher, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Publisher{cli: cli, opts: opts, log: log}, nil
}

// Run identifies the run whose outputs are uploaded.
type Run struct {
	ID      string
	Mode    string
	Records int
}

// Publish uploads each file under <prefix>/<run id>/<base name>, creating
// the bucket first when it does not exist. Empty paths are skipped.
func (p *Publisher) Publish(ctx context.Context, run Run, files ...string) ([]string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	meta := map[string]string{
		"run_id":  run.ID,
		"mode":    run.Mode,
		"records": strconv.Itoa(run.Records),
	}
	var keys []string
	for _, f := range files {
		if f == "" {
			continue
		}
		key := path.Join(p.opts.Prefix, run.ID, filepath.Base(f))
		info, err := p.cli.FPutObject(ctx, p.opts.Bucket, key, f, minio.PutObjectOptions{
			ContentType:  contentType(f),
			UserMetadata: meta,
		})
		if err != nil {
			metrics.APIRequestsTotal.WithLabelValues("publish", "failure").Inc()
			return keys, fmt.Errorf("upload %s: %w", f, err)
		}
		metrics.APIRequestsTotal.WithLabelValues("publish", "success").Inc()
		p.log.Info("published file", "bucket", p.opts.Bucket, "key", key, "size", info.Size)
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.cli.BucketExists(ctx, p.opts.Bucket)
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues("publish", "failure").Inc()
		return fmt.Errorf("check bucket %s: %w", p.opts.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.cli.MakeBucket(ctx, p.opts.Bucket, minio.MakeBucketOptions{}); err != nil {
		metrics.APIRequestsTotal.WithLabelValues("publish", "failure").Inc()
		return fmt.Errorf("create bucket %s: %w", p.opts.Bucket, err)
	}
	p.log.Info("created bucket", "bucket", p.opts.Bucket)
	return nil
}

func contentType(f string) string {
	switch filepath.Ext(f) {
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".db":
		return "application/vnd.sqlite3"
	case ".md":
		return "text/markdown"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
