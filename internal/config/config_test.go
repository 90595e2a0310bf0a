package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "orders", cfg.OrdersTable)
	assert.Equal(t, 48*time.Hour, cfg.IdempotencyTTL)
	assert.False(t, cfg.RunLocal)
	assert.Empty(t, cfg.NotificationsQueueURL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STOREFRONT_RUN_LOCAL", "true")
	t.Setenv("STOREFRONT_ORDERS_TABLE", "orders-dev")
	t.Setenv("STOREFRONT_ADMIN_EMAILS", "admin@example.com,ops@example.com")
	t.Setenv("STOREFRONT_IDEMPOTENCY_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.RunLocal)
	assert.Equal(t, "orders-dev", cfg.OrdersTable)
	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, time.Hour, cfg.IdempotencyTTL)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("STOREFRONT_RUN_LOCAL", "not-a-bool")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_AWSOptions(t *testing.T) {
	t.Setenv("STOREFRONT_AWS_REGION", "ap-south-1")
	t.Setenv("STOREFRONT_AWS_ENDPOINT_OVERRIDE", "http://localhost:4566")
	t.Setenv("STOREFRONT_STATIC_ACCESS_KEY_ID", "test")
	t.Setenv("STOREFRONT_STATIC_SECRET_ACCESS_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.AWSOptions()
	assert.Equal(t, "ap-south-1", opts.Region)
	assert.Equal(t, "http://localhost:4566", opts.Endpoint)
	assert.Equal(t, "test", opts.AccessKeyID)
	assert.Equal(t, "secret", opts.SecretAccessKey)

	awsCfg, err := aws.LoadAWSConfig(context.Background(), opts)
	require.NoError(t, err)
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "StaticCredentials", creds.Source)
}
