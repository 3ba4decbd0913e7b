// Package awsboot builds the AWS SDK clients used by the S3 library backend,
// the bucket permission gate and the DynamoDB preference store.
package awsboot

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Clients holds S3 client, presigner, and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// LoadConfig loads the default AWS config (environment, shared profile, SSO).
func LoadConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, nil
}

// InitS3 creates an S3 client and presigner for bucket.
func InitS3(cfg aws.Config, bucket string) (S3Clients, error) {
	if bucket == "" {
		return S3Clients{}, fmt.Errorf("bucket name is required")
	}
	client := s3.NewFromConfig(cfg)
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}, nil
}

// InitDynamo creates a DynamoDB client for table.
func InitDynamo(cfg aws.Config, table string) (*dynamodb.Client, error) {
	if table == "" {
		return nil, fmt.Errorf("DynamoDB table name is required")
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// Lazy loads the AWS config at most once, on first use.
type Lazy struct {
	cfg    aws.Config
	err    error
	loaded bool
}

// Preloaded returns a Lazy that hands out cfg without loading anything.
func Preloaded(cfg aws.Config) *Lazy {
	return &Lazy{cfg: cfg, loaded: true}
}

// Get returns the shared config, loading it on the first call.
func (l *Lazy) Get(ctx context.Context) (aws.Config, error) {
	if !l.loaded {
		l.cfg, l.err = LoadConfig(ctx)
		l.loaded = true
	}
	return l.cfg, l.err
}
