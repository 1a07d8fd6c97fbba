// Package publish uploads finished release archives to object storage.
package publish

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	domainrfq "pdmrelease/internal/domain/rfq"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/ports"
)

type S3Options struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Publisher struct {
	client objectPutter
	bucket string
	prefix string
}

var _ ports.ArchivePublisher = (*S3Publisher)(nil)

// NewS3Publisher builds the client from the default AWS chain; static keys and
// a custom endpoint (MinIO and friends) override it when set.
func NewS3Publisher(ctx context.Context, opts S3Options) (*S3Publisher, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(opts.Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errs.Wrap(err, "load aws config")
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Publisher(client, opts.Bucket, opts.Prefix), nil
}

func newS3Publisher(client objectPutter, bucket string, prefix string) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: strings.TrimSpace(bucket),
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

// Publish uploads the archive under {prefix}/{rfq number}/{file name} and
// returns its s3:// location.
func (p *S3Publisher) Publish(ctx context.Context, rfq ports.RFQ, archivePath string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", errs.Wrap(err, "open archive")
	}
	defer f.Close()

	key := path.Join(p.prefix, domainrfq.ArchiveDirName(rfq.Number, rfq.ID), filepath.Base(archivePath))
	if _, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zip"),
		Metadata: map[string]string{
			"rfq-id":     rfq.ID,
			"rfq-number": rfq.Number,
		},
	}); err != nil {
		return "", errs.Wrapf(err, "put s3://%s/%s", p.bucket, key)
	}
	return "s3://" + p.bucket + "/" + key, nil
}
