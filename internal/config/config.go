// Package config loads service configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/imrishuroy/go-storefront/internal/aws"
)

// Config is populated from STOREFRONT_* environment variables.
type Config struct {
	RunLocal   bool   `envconfig:"RUN_LOCAL" default:"false"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"json"`

	AWSRegion   string `envconfig:"AWS_REGION" default:"us-east-1"`
	AWSEndpoint string `envconfig:"AWS_ENDPOINT_OVERRIDE"`
	// Static credentials, typically dummy values for a localstack emulator.
	// The default credential chain is used when either is empty.
	AWSAccessKeyID     string `envconfig:"STATIC_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"STATIC_SECRET_ACCESS_KEY"`

	UsersTable       string        `envconfig:"USERS_TABLE" default:"users"`
	ProductsTable    string        `envconfig:"PRODUCTS_TABLE" default:"products"`
	CategoriesTable  string        `envconfig:"CATEGORIES_TABLE" default:"categories"`
	CartsTable       string        `envconfig:"CARTS_TABLE" default:"carts"`
	OrdersTable      string        `envconfig:"ORDERS_TABLE" default:"orders"`
	OrdersUserIndex  string        `envconfig:"ORDERS_USER_INDEX" default:"user_id-created_at-index"`
	IdempotencyTable string        `envconfig:"IDEMPOTENCY_TABLE" default:"idempotency"`
	IdempotencyTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"48h"`

	// NotificationsQueueURL routes notifications through SQS when set;
	// otherwise they are delivered inline.
	NotificationsQueueURL string `envconfig:"NOTIFICATIONS_QUEUE_URL"`
	MetricsNamespace      string `envconfig:"METRICS_NAMESPACE"`

	OIDCIssuer   string   `envconfig:"OIDC_ISSUER"`
	OIDCClientID string   `envconfig:"OIDC_CLIENT_ID"`
	AdminEmails  []string `envconfig:"ADMIN_EMAILS"`

	// JWTSecret signs the tokens issued by signup and login. It must be at
	// least 32 bytes; local runs fall back to a development secret.
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	JWTIssuer   string        `envconfig:"JWT_ISSUER" default:"storefront"`
	JWTLifetime time.Duration `envconfig:"JWT_LIFETIME" default:"168h"`

	SenderEmail string `envconfig:"SENDER_EMAIL"`

	SMSUsername string `envconfig:"SMS_USERNAME"`
	SMSAPIKey   string `envconfig:"SMS_API_KEY"`
	SMSURL      string `envconfig:"SMS_URL" default:"https://api.sandbox.africastalking.com/version1/messaging"`
	SMSSenderID string `envconfig:"SMS_SENDER_ID" default:"AFRICASTKNG"`
}

// Load reads the configuration with the STOREFRONT prefix.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("storefront", &cfg); err != nil {
		return cfg, errors.Wrap(err, "load config")
	}
	return cfg, nil
}

// AWSOptions returns the SDK options for this configuration.
func (c Config) AWSOptions() aws.Options {
	return aws.Options{
		Region:          c.AWSRegion,
		Endpoint:        c.AWSEndpoint,
		AccessKeyID:     c.AWSAccessKeyID,
		SecretAccessKey: c.AWSSecretAccessKey,
	}
}
