package state

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/infersetup/infersetup/internal/ir"
)

const defaultS3Prefix = "infersetup/runs/"

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Backend uploads run records to S3 so a fleet of hosts reports to one
// place.
type s3Backend struct {
	bucket  string
	key     string
	region  string
	encrypt bool
	profile string

	client putObjectAPI
}

func newS3Backend(ctx context.Context, config map[string]string) (Backend, error) {
	b, err := parseS3Config(config)
	if err != nil {
		return nil, err
	}
	if err := b.initClient(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize S3 backend: %w", err)
	}
	return b, nil
}

// parseS3Config reads the s3 backend keys: bucket (required), key (a
// trailing "/" makes it a prefix for <run id>.pkl), region, encrypt and
// profile.
func parseS3Config(config map[string]string) (*s3Backend, error) {
	bucket := config["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	key := config["key"]
	if key == "" {
		key = defaultS3Prefix
	}

	region := config["region"]
	if region == "" {
		region = "us-east-1"
	}

	return &s3Backend{
		bucket:  bucket,
		key:     key,
		region:  region,
		encrypt: config["encrypt"] == "true",
		profile: config["profile"],
	}, nil
}

func (b *s3Backend) initClient(ctx context.Context) error {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(b.region))
	if b.profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("unable to load AWS config: %w", err)
	}

	b.client = s3.NewFromConfig(cfg)
	return nil
}

// objectKey resolves the key for a record; prefixes get "<id>.pkl" appended.
func (b *s3Backend) objectKey(record *ir.RunRecord) string {
	if strings.HasSuffix(b.key, "/") {
		return b.key + record.ID + ".pkl"
	}
	return b.key
}

func (b *s3Backend) Write(ctx context.Context, record *ir.RunRecord) error {
	key := b.objectKey(record)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(SerializeRecord(record)),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}
	if b.encrypt {
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			switch ae.ErrorCode() {
			case "NoSuchBucket":
				return fmt.Errorf("report bucket %q does not exist: %w", b.bucket, err)
			case "AccessDenied":
				return fmt.Errorf("no permission to write s3://%s/%s: %w", b.bucket, key, err)
			}
		}
		return fmt.Errorf("failed to write run record to s3://%s/%s: %w", b.bucket, key, err)
	}

	return nil
}
