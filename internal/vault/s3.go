package vault

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sbk-go/internal/sbk"
)

// S3Options configures an S3Vault.
type S3Options struct {
	Bucket string

	// Profile selects a profile from the shared AWS config files.
	Profile string
	Region  string

	// Endpoint points the client at an S3-compatible store. Path-style
	// addressing is used whenever it is set.
	Endpoint string

	// AccessKeyID and SecretAccessKey, when set, take precedence over the
	// profile's credentials.
	AccessKeyID     string
	SecretAccessKey string

	// ConfigFile and CredentialsFile replace the default shared file locations.
	ConfigFile      string
	CredentialsFile string
}

// S3Vault uploads objects to an S3 bucket with the SDK's transfer manager,
// which switches to multipart uploads for large artifacts.
type S3Vault struct {
	bucket   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault loads AWS configuration for opts and creates the vault. No
// request is made until Put or ValidateSetup.
func NewS3Vault(ctx context.Context, opts S3Options) (*S3Vault, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 vault requires a bucket name")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.ConfigFile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigFiles([]string{opts.ConfigFile}))
	}
	if opts.CredentialsFile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedCredentialsFiles([]string{opts.CredentialsFile}))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
			// S3-compatible stores often reject streaming checksum trailers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}
	})

	return &S3Vault{
		bucket:   opts.Bucket,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put uploads size bytes from r to key with the given user metadata.
func (v *S3Vault) Put(ctx context.Context, key string, r io.Reader, size int64, metadata map[string]string) error {
	_, err := v.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		Metadata:      metadata,
	})
	if err != nil {
		return fmt.Errorf("s3 upload of %d bytes to s3://%s/%s: %w", size, v.bucket, key, err)
	}
	return nil
}

// ValidateSetup checks that the bucket exists and is reachable with the
// configured credentials.
func (v *S3Vault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(v.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// Compile-time check that S3Vault implements sbk.Vault interface
var _ sbk.Vault = (*S3Vault)(nil)
