// Package storage uploads user files (avatars, resumes) to an S3-compatible
// object store and returns the URL they can be fetched from.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrUpload wraps every failure returned by Upload.
var ErrUpload = errors.New("storage: upload failed")

const (
	defaultTimeout     = 30 * time.Second
	defaultContentType = "application/octet-stream"
)

var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// putObjectAPI is the subset of *s3.Client used by S3Store.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config describes the S3-compatible endpoint. BaseEndpoint points at MinIO
// in development; PublicBaseURL is the prefix clients use to fetch objects.
type Config struct {
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	BaseEndpoint  string
	PublicBaseURL string
	Timeout       time.Duration
}

// S3Store stores uploaded files under dated, collision-free keys.
type S3Store struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
	timeout       time.Duration
	now           func() time.Time
	newID         func() string
}

// NewS3Store builds an S3 client from static credentials and returns a store
// bound to cfg.Bucket.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket is required")
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client putObjectAPI, cfg Config) *S3Store {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	public := cfg.PublicBaseURL
	if public == "" {
		public = cfg.BaseEndpoint
	}
	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(public, "/"),
		timeout:       timeout,
		now:           time.Now,
		newID:         func() string { return uuid.NewString() },
	}
}

// Upload writes body under folder and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, folder, filename, contentType string, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("%w: empty body", ErrUpload)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	key := ObjectKey(folder, filename, s.now().UTC(), s.newID())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrUpload, key, err)
	}

	return s.publicBaseURL + "/" + s.bucket + "/" + key, nil
}

// ObjectKey returns folder/yyyy/mm/dd/id/name, where name is the base of
// filename with any client-side directories stripped.
func ObjectKey(folder, filename string, at time.Time, id string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "uploads"
	}
	return path.Join(folder, at.Format("2006/01/02"), id, baseName(filename))
}

func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch name {
	case "", ".", "/", "..":
		return "file"
	}
	return name
}
