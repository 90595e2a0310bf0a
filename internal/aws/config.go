package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const defaultRegion = "us-east-1"

// Options tune how the SDK config is loaded.
type Options struct {
	Region string
	// Endpoint points every client at a local emulator (e.g. localstack) when set.
	Endpoint string
	// AccessKeyID and SecretAccessKey switch to static credentials when both are set.
	AccessKeyID     string
	SecretAccessKey string
}

func LoadAWSConfig(ctx context.Context, opts Options) (sdkaws.Config, error) {
	region := opts.Region
	if region == "" {
		region = defaultRegion
	}

	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if opts.Endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(opts.Endpoint)
	}

	return cfg, nil
}
