package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"

	"github.com/dmitrijs2005/mediaoffload/internal/filex"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	detectContentType = func(path string) string {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return "application/octet-stream"
		}
		return mt.String()
	}
)

// s3API is the subset of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// presignAPI is the subset of *s3.PresignClient the store uses.
type presignAPI interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures an S3Store.
type Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Root          string
	PublicBaseURL string
	// Timeout bounds every single network call.
	Timeout time.Duration
}

// S3Store implements Store over any S3-compatible service (AWS, MinIO, R2).
type S3Store struct {
	client  s3API
	presign presignAPI
	bucket  string
	root    string
	public  string
	timeout time.Duration
	logger  logging.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds the client once; the composition root owns it.
func NewS3Store(ctx context.Context, o Options, l logging.Logger) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})

	public := o.PublicBaseURL
	if public == "" {
		public = JoinURL(o.Endpoint, o.Bucket)
	}

	return newS3Store(client, s3.NewPresignClient(client), o.Bucket, o.Root, public, o.Timeout, l), nil
}

func newS3Store(c s3API, p presignAPI, bucket, root, public string, timeout time.Duration, l logging.Logger) *S3Store {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &S3Store{
		client:  c,
		presign: p,
		bucket:  bucket,
		root:    root,
		public:  public,
		timeout: timeout,
		logger:  l.With("module", "objectstore"),
	}
}

func (s *S3Store) key(rel string) *string {
	return aws.String(ObjectKey(s.root, rel))
}

func (s *S3Store) Exists(ctx context.Context, key string) bool {
	ok, err := s.Stat(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "exists check failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (s *S3Store) Stat(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: s.key(key)})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", key, err)
}

func (s *S3Store) Upload(ctx context.Context, localPath, key string) bool {
	f, err := os.Open(localPath)
	if err != nil {
		s.logger.Error(ctx, "upload: open local file", "path", localPath, "error", err)
		return false
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		s.logger.Error(ctx, "upload: stat local file", "path", localPath, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           s.key(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
		ContentType:   aws.String(detectContentType(localPath)),
	})
	if err != nil {
		s.logger.Error(ctx, "upload failed", "key", key, "error", err)
		return false
	}
	s.logger.Debug(ctx, "uploaded", "key", key, "bytes", fi.Size())
	return true
}

func (s *S3Store) Download(ctx context.Context, key, localPath string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: s.key(key)})
	if err != nil {
		s.logger.Error(ctx, "download failed", "key", key, "error", err)
		return false
	}
	defer out.Body.Close()

	n, err := filex.WriteAtomic(localPath, out.Body)
	if err != nil {
		s.logger.Error(ctx, "download: write local file", "key", key, "path", localPath, "error", err)
		return false
	}
	s.logger.Debug(ctx, "downloaded", "key", key, "bytes", n)
	return true
}

func (s *S3Store) Delete(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: s.key(key)})
	if err != nil && !isNotFound(err) {
		s.logger.Error(ctx, "delete failed", "key", key, "error", err)
		return false
	}
	return true
}

func (s *S3Store) PublicURL(key string) string {
	return JoinURL(s.public, s.root, key)
}

func (s *S3Store) PresignedUploadURL(ctx context.Context, key, contentType string, ttlMinutes int) (string, error) {
	ttl := time.Duration(ClampTTL(ttlMinutes)) * time.Minute

	in := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: s.key(key)}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
