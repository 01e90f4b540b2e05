package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"fo-go/internal/fo"
)

// S3Vault stores objects in an S3 bucket under an optional key prefix.
// Multipart uploads are handled by the transfer manager, which never makes a
// partial object visible: S3 commits the object only when the upload completes.
type S3Vault struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// S3Options configures an S3 vault.
type S3Options struct {
	Bucket string
	Prefix string
	Region string

	// AccessKeyID/SecretAccessKey override the default credential chain
	// when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Vault creates an S3 vault using the default AWS configuration chain.
func NewS3Vault(ctx context.Context, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 vault requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Vault{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
	}, nil
}

func (v *S3Vault) objectKey(key string) string {
	if v.prefix == "" {
		return key
	}
	return path.Join(v.prefix, key)
}

// PutObject uploads content under the given key.
func (v *S3Vault) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading object %s: %w", key, remoteErr(ctx, err))
	}
	return nil
}

// GetObject retrieves content by key and writes it to w.
func (v *S3Vault) GetObject(ctx context.Context, key string, w io.Writer) error {
	out, err := v.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("object %s: %w", key, fo.ErrNotFound)
		}
		return fmt.Errorf("fetching object %s: %w", key, remoteErr(ctx, err))
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading object %s: %w", key, err)
	}
	return nil
}

// ValidateSetup verifies the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	_, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, remoteErr(ctx, err))
	}
	return nil
}

// remoteErr wraps S3 failures so callers can classify them with errors.Is.
// Context cancellation passes through untouched.
func remoteErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %v", fo.ErrRemoteUnavailable, err)
}

// Compile-time check that S3Vault implements fo.Vault interface
var _ fo.Vault = (*S3Vault)(nil)
