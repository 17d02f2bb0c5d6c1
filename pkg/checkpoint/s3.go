package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// S3Config configures the S3 checkpoint backend.
type S3Config struct {
	Bucket string

	// Prefix is prepended to all checkpoint keys (e.g., "vrsindex/checkpoints/")
	Prefix string

	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services)
	Endpoint string

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack)
	UsePathStyle bool

	Timeout time.Duration
}

// S3Backend stores checkpoints as JSON objects in a bucket.
type S3Backend struct {
	cfg    S3Config
	client *s3.Client
}

// NewS3Backend creates a new S3 checkpoint backend.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{cfg: cfg, client: client}, nil
}

func (b *S3Backend) key(id string) string {
	return b.cfg.Prefix + id + ".json"
}

// Save persists a checkpoint to S3.
func (b *S3Backend) Save(ctx context.Context, cp *Checkpoint) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	data, err := json.Marshal(cp)
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "marshal checkpoint")
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.key(cp.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "save checkpoint to s3").WithContext("id", cp.ID)
	}
	return nil
}

// Load retrieves a checkpoint from S3.
func (b *S3Backend) Load(ctx context.Context, id string) (*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, os.ErrNotExist
		}
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "load checkpoint from s3").WithContext("id", id)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "read checkpoint object").WithContext("id", id)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "unmarshal checkpoint").WithContext("id", id)
	}
	return &cp, nil
}

// Delete removes a checkpoint from S3. S3 treats deleting a missing key as success.
func (b *S3Backend) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.key(id)),
	})
	if err != nil {
		return vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "delete checkpoint from s3").WithContext("id", id)
	}
	return nil
}

// List returns all checkpoints with the given prefix.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]*Checkpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	var checkpoints []*Checkpoint
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.cfg.Bucket),
		Prefix: aws.String(b.cfg.Prefix + prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, vrserrors.Wrap(err, vrserrors.CodeCheckpoint, "list checkpoints in s3")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			id := strings.TrimSuffix(strings.TrimPrefix(key, b.cfg.Prefix), ".json")
			cp, err := b.Load(ctx, id)
			if err != nil {
				continue
			}
			checkpoints = append(checkpoints, cp)
		}
	}
	sortByID(checkpoints)
	return checkpoints, nil
}

// ListIncomplete returns all checkpoints that haven't completed.
func (b *S3Backend) ListIncomplete(ctx context.Context) ([]*Checkpoint, error) {
	all, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return incomplete(all), nil
}

// Name returns "s3".
func (b *S3Backend) Name() string {
	return "s3"
}

// Close is a no-op.
func (b *S3Backend) Close() error { return nil }
