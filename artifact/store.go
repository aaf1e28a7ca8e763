package artifact

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/outfield-ai/outfield/observability"
)

// Artifact is one stored payload, addressed by the URI it was fetched
// from and the datatype that will decode it.
type Artifact struct {
	URI      string
	Datatype string
	Bytes    []byte
}

// Store keeps artifact payloads in an S3-compatible bucket. Objects
// are keyed "<datatype>/<sha1(uri)>" so the same URI fetched for two
// datatypes stays distinct.
type Store struct {
	client   *minio.Client
	cfg      Config
	observer observability.Observer
}

// NewStore connects to the object store and ensures the bucket exists.
func NewStore(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Connection.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Connection.AccessKeyID, cfg.Connection.SecretAccessKey, ""),
		Secure: cfg.Connection.UseSSL,
		Region: cfg.Connection.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: connecting to object store: %w", err)
	}

	s := &Store{client: client, cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// WithObserver attaches an observer notified of store operations.
func (s *Store) WithObserver(observer observability.Observer) *Store {
	s.observer = observer
	return s
}

func (s *Store) ensureBucketExists(ctx context.Context) error {
	bucket := s.cfg.Connection.BucketName
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("artifact: checking bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{
		Region: s.cfg.Connection.Region,
	})
	if err != nil {
		return fmt.Errorf("artifact: creating bucket %q: %w", bucket, err)
	}
	return nil
}

// ObjectKey addresses an artifact inside the bucket.
func ObjectKey(uri, datatype string) string {
	sum := sha1.Sum([]byte(uri))
	return datatype + "/" + hex.EncodeToString(sum[:])
}

// Save uploads an artifact, replacing any previous payload for the
// same URI and datatype.
func (s *Store) Save(ctx context.Context, a Artifact) (err error) {
	start := time.Now()
	defer func() {
		s.observe("save", a.Datatype, time.Since(start), int64(len(a.Bytes)), err)
	}()

	key := ObjectKey(a.URI, a.Datatype)
	_, err = s.client.PutObject(ctx, s.cfg.Connection.BucketName, key,
		bytes.NewReader(a.Bytes), int64(len(a.Bytes)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("artifact: saving %q: %w", a.URI, err)
	}
	return nil
}

// Load reads back the payload stored for a URI and datatype.
func (s *Store) Load(ctx context.Context, uri, datatype string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		s.observe("load", datatype, time.Since(start), int64(len(data)), err)
	}()

	key := ObjectKey(uri, datatype)
	obj, err := s.client.GetObject(ctx, s.cfg.Connection.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("artifact: loading %q: %w", uri, err)
	}
	defer obj.Close()

	data, err = io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("artifact: reading %q: %w", uri, err)
	}
	return data, nil
}

// Exists reports whether a payload is already stored for a URI and
// datatype, so downloads can be skipped.
func (s *Store) Exists(ctx context.Context, uri, datatype string) (bool, error) {
	key := ObjectKey(uri, datatype)
	_, err := s.client.StatObject(ctx, s.cfg.Connection.BucketName, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("artifact: checking %q: %w", uri, err)
}

// Delete removes the payload stored for a URI and datatype.
func (s *Store) Delete(ctx context.Context, uri, datatype string) error {
	key := ObjectKey(uri, datatype)
	err := s.client.RemoveObject(ctx, s.cfg.Connection.BucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("artifact: deleting %q: %w", uri, err)
	}
	return nil
}

// fetchObject reads an arbitrary s3:// object through the store's
// connection, for the URI fetcher.
func (s *Store) fetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (s *Store) observe(operation, datatype string, d time.Duration, size int64, err error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component:   "artifact",
		Operation:   operation,
		Resource:    s.cfg.Connection.BucketName,
		SubResource: datatype,
		Duration:    d,
		Error:       err,
		Size:        size,
	})
}
