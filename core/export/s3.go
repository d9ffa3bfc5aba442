package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/relabs-tech/shimmer-console/core/logger"
)

// S3Configuration contains the configuration for the S3 export driver. Without AccessID the
// default AWS credential chain is used.
type S3Configuration struct {
	AWSRegion     string
	AWSBucketName string
	AccessID      string
	AccessKey     string
	KeyPrefix     string
}

// S3 is the implementation of the export Driver for AWS S3
type S3 struct {
	uploader    *manager.Uploader
	bucket      string
	baseKeyName string
}

// NewS3 returns a new S3
func NewS3(ctx context.Context, s3Config S3Configuration) (*S3, error) {
	if s3Config.AWSBucketName == "" {
		return nil, fmt.Errorf("AWSBucketName must not be empty")
	}

	options := []func(*config.LoadOptions) error{}
	if s3Config.AWSRegion != "" {
		options = append(options, config.WithRegion(s3Config.AWSRegion))
	}
	if s3Config.AccessID != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debugln("S3 export enabled for bucket", s3Config.AWSBucketName)
	return &S3{
		uploader:    manager.NewUploader(s3.NewFromConfig(cfg)),
		bucket:      s3Config.AWSBucketName,
		baseKeyName: s3Config.KeyPrefix,
	}, nil
}

// Put uploads data into a new key object
func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.baseKeyName + key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.FromContext(ctx).Errorln("could not upload", s.Location(key))
		return fmt.Errorf("failed to upload file, %w", err)
	}
	logger.FromContext(ctx).Infoln("uploaded", s.Location(key))
	return nil
}

// Location returns the s3 URL of key
func (s *S3) Location(key string) string {
	return "s3://" + s.bucket + "/" + s.baseKeyName + key
}
