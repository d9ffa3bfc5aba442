// Package export stores retrieved data payloads outside of the console, either
// on the local file system or in AWS S3.
package export

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Driver defines the interface for an export target
type Driver interface {
	Put(ctx context.Context, key string, data []byte) error
	// Location returns a human readable location of key
	Location(key string) string
}

// DriverType represents the different type of export Drivers
type DriverType string

// DriverTypeLocal is the local filesystem implementation
const DriverTypeLocal DriverType = "Local"

// DriverTypeAWSS3 is the AWS S3 implementation
const DriverTypeAWSS3 DriverType = "AWSS3"

// None is used when exports are disabled
const None DriverType = ""

// Configuration contains the configuration for the export driver
type Configuration struct {
	DriverType         DriverType
	LocalConfiguration *LocalConfiguration
	S3Configuration    *S3Configuration
}

// LocalConfiguration contains the configuration for the local filesystem driver
type LocalConfiguration struct {
	BasePath string
}

// ParseTarget turns a target string into a Configuration. "s3://bucket/prefix" selects
// S3, anything else is a local directory. An empty target disables exports. Region and
// credentials of an S3 target are taken from base.
func ParseTarget(target string, base S3Configuration) (Configuration, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Configuration{DriverType: None}, nil
	}
	if !strings.HasPrefix(target, "s3://") {
		return Configuration{
			DriverType:         DriverTypeLocal,
			LocalConfiguration: &LocalConfiguration{BasePath: target},
		}, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return Configuration{}, fmt.Errorf("invalid export target %q: %w", target, err)
	}
	if u.Host == "" {
		return Configuration{}, fmt.Errorf("invalid export target %q: bucket missing", target)
	}
	s3Config := base
	s3Config.AWSBucketName = u.Host
	s3Config.KeyPrefix = strings.TrimPrefix(u.Path, "/")
	if s3Config.KeyPrefix != "" && !strings.HasSuffix(s3Config.KeyPrefix, "/") {
		s3Config.KeyPrefix += "/"
	}
	return Configuration{DriverType: DriverTypeAWSS3, S3Configuration: &s3Config}, nil
}

// New returns the driver for config, or nil if exports are disabled
func New(ctx context.Context, config Configuration) (Driver, error) {
	switch config.DriverType {
	case None:
		return nil, nil
	case DriverTypeLocal:
		if config.LocalConfiguration == nil {
			return nil, fmt.Errorf("local export requires a LocalConfiguration")
		}
		return NewFilesystem(config.LocalConfiguration.BasePath)
	case DriverTypeAWSS3:
		if config.S3Configuration == nil {
			return nil, fmt.Errorf("S3 export requires a S3Configuration")
		}
		return NewS3(ctx, *config.S3Configuration)
	default:
		return nil, fmt.Errorf("unsupported export driver %q", config.DriverType)
	}
}
