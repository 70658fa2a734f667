package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"
)

const (
	defaultAWSRegion        = "us-east-1"
	defaultAWSClientRetries = 3
)

// NewAWSConfig creates and returns a new AWS configuration with default settings.
// It sets the default region and specifies the maximum number of retry attempts for AWS clients.
// An explicit region, when not empty, takes precedence over the environment.
func NewAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithDefaultRegion(defaultAWSRegion),
		config.WithRetryMaxAttempts(defaultAWSClientRetries),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS configuration")
	}

	return cfg, nil
}
