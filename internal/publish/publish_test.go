package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"lapdcalls/internal/logging"
)

type fakeStore struct {
	exists  bool
	made    []string
	puts    map[string]minio.PutObjectOptions
	files   map[string]string
	failKey string
}

func (f *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, nil
}

func (f *fakeStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeStore) FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if object == f.failKey {
		return minio.UploadInfo{}, errors.New("access denied")
	}
	if f.puts == nil {
		f.puts = map[string]minio.PutObjectOptions{}
		f.files = map[string]string{}
	}
	f.puts[object] = opts
	f.files[object] = filePath
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: 42}, nil
}

func TestPublish_UploadsWithRunMetadata(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{}
	p := &Publisher{cli: fs, opts: Options{Bucket: "lapd", Prefix: "calls"}, log: logging.Discard()}

	keys, err := p.Publish(context.Background(),
		Run{ID: "20240710T120000Z", Mode: "incremental", Records: 1234},
		"/data/lapd_calls_for_service.parquet", "", "/data/lapd_calls_for_service.db")
	require.NoError(t, err)
	require.Equal(t, []string{"lapd"}, fs.made)
	require.Equal(t, []string{
		"calls/20240710T120000Z/lapd_calls_for_service.parquet",
		"calls/20240710T120000Z/lapd_calls_for_service.db",
	}, keys)

	opts := fs.puts[keys[0]]
	require.Equal(t, "application/vnd.apache.parquet", opts.ContentType)
	require.Equal(t, map[string]string{"run_id": "20240710T120000Z", "mode": "incremental", "records": "1234"}, opts.UserMetadata)
	require.Equal(t, "/data/lapd_calls_for_service.db", fs.files[keys[1]])
}

func TestPublish_ExistingBucketAndFailure(t *testing.T) {
	t.Parallel()

	fs := &fakeStore{exists: true, failKey: "r1/b.db"}
	p := &Publisher{cli: fs, opts: Options{Bucket: "lapd"}, log: logging.Discard()}

	keys, err := p.Publish(context.Background(), Run{ID: "r1"}, "a.parquet", "b.db")
	require.ErrorContains(t, err, "upload b.db")
	require.Equal(t, []string{"r1/a.parquet"}, keys)
	require.Empty(t, fs.made)
}

func TestPublish_New(t *testing.T) {
	t.Parallel()

	p, err := New(logging.Discard(), Options{Endpoint: "localhost:9000", Bucket: "lapd"})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.True(t, p.opts.Enabled())
	require.False(t, Options{}.Enabled())
}
