package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dmitrijs2005/versiman/internal/common"
	sc "github.com/dmitrijs2005/versiman/internal/server/config"
)

// ArchiveCache keeps exported image tars in an S3-compatible bucket so that
// repeated archive downloads do not hit the container registry every time.
type ArchiveCache struct {
	client *s3.Client
	bucket string
}

// NewArchiveCache builds an S3 client from server config.
func NewArchiveCache(ctx context.Context, config *sc.Config) (*ArchiveCache, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.S3RootUser,
			config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &ArchiveCache{client: client, bucket: config.S3Bucket}, nil
}

// Put stores the archive stream under the tag's object key.
func (c *ArchiveCache) Put(ctx context.Context, tag string, r io.Reader) error {
	key := ArchiveKey(tag)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("putting archive %s: %w", key, err)
	}
	return nil
}

// Get streams a cached archive. A missing object maps to
// common.ErrorNotFound so the image service falls back to the registry.
func (c *ArchiveCache) Get(ctx context.Context, tag string) (io.ReadCloser, error) {
	key := ArchiveKey(tag)
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("getting archive %s: %w", key, err)
	}
	return out.Body, nil
}

// ArchiveKey maps an image tag to a flat object key. Registry tags contain
// '/' and ':' which would otherwise create nested pseudo-directories.
func ArchiveKey(tag string) string {
	return "archives/" + strings.NewReplacer("/", "_", ":", "_").Replace(tag) + ".tar"
}
