// Package s3 implements storage.Driver with resident objects in an
// S3-compatible bucket and staging objects on local disk.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/filekeeper/internal/byterange"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
	"github.com/dmitrijs2005/filekeeper/internal/storage/local"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Client is the part of *s3.Client the driver uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ClientConfig holds the connection settings of an S3-compatible backend.
type ClientConfig struct {
	User         string
	Password     string
	Region       string
	BaseEndpoint string
}

// NewClient builds an S3 client with static credentials. A non-empty
// BaseEndpoint targets a MinIO-style server with path-style addressing.
func NewClient(ctx context.Context, c ClientConfig) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.User, c.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Driver keeps resident objects in bucket under their id.
type Driver struct {
	staging *local.Staging
	client  Client
	bucket  string
	logger  logging.Logger
}

func New(staging *local.Staging, client Client, bucket string, logger logging.Logger) *Driver {
	return &Driver{
		staging: staging,
		client:  client,
		bucket:  bucket,
		logger:  logger.With("module", "s3_driver", "bucket", bucket),
	}
}

func (d *Driver) key(id uuid.UUID) *string {
	return aws.String(id.String())
}

func (d *Driver) WriteStaging(ctx context.Context, id uuid.UUID, offset int64, r io.Reader) (int64, error) {
	return d.staging.Write(ctx, id, offset, r)
}

func (d *Driver) RemoveStaging(ctx context.Context, id uuid.UUID) error {
	return d.staging.Remove(ctx, id)
}

func (d *Driver) ReadStaging(ctx context.Context, id uuid.UUID) (io.ReadSeekCloser, error) {
	f, err := d.staging.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CommitStaging uploads the staged object and then drops the local copy.
func (d *Driver) CommitStaging(ctx context.Context, id uuid.UUID) error {
	f, err := d.staging.Open(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		_, err := d.head(ctx, id)
		return err
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat staging file: %w", err)
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           d.key(id),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	if err := d.staging.Remove(ctx, id); err != nil {
		d.logger.Warn(ctx, "failed to remove staging copy", "id", id, "error", err)
	}
	return nil
}

func (d *Driver) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    d.key(id),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (d *Driver) Read(ctx context.Context, id uuid.UUID, rng byterange.Range) (*storage.Object, error) {
	size, err := d.head(ctx, id)
	if err != nil {
		return nil, err
	}

	offset, length, err := rng.Window(size)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return &storage.Object{ReadCloser: io.NopCloser(strings.NewReader("")), Offset: offset, Size: size}, nil
	}

	in := &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    d.key(id),
	}
	if offset != 0 || length != size {
		in.Range = aws.String(byterange.Inclusive(offset, offset+length-1).String())
	}

	out, err := d.client.GetObject(ctx, in)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}

	return &storage.Object{
		ReadCloser: storage.NewLimitedReadCloser(out.Body, length),
		Offset:     offset,
		Length:     length,
		Size:       size,
	}, nil
}

func (d *Driver) head(ctx context.Context, id uuid.UUID) (int64, error) {
	out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    d.key(id),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
