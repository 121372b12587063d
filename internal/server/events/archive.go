package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used by the archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds a client for an S3-compatible endpoint such as MinIO.
func NewS3Client(ctx context.Context, region, endpoint, user, password string) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(user, password, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}

// Archiver stores every event as a JSON object in a bucket.
type Archiver struct {
	client ObjectPutter
	bucket string
}

func NewArchiver(client ObjectPutter, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

// ObjectKey returns events/YYYY/MM/DD/<type>/<id>.json for e.
func ObjectKey(e Event) string {
	d := e.OccurredAt
	return fmt.Sprintf("events/%04d/%02d/%02d/%s/%s.json", d.Year(), d.Month(), d.Day(), e.Type, e.ID)
}

func (a *Archiver) Handle(ctx context.Context, e Event) error {
	e.ResponseToken = ""

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	key := ObjectKey(e)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}
	return nil
}
