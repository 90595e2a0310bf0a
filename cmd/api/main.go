package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/config"
	"github.com/imrishuroy/go-storefront/internal/handlers"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/logging"
	"github.com/imrishuroy/go-storefront/internal/notify"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/payments"
	"github.com/imrishuroy/go-storefront/internal/users"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware())
	handlers.RegisterRoutes(r, cfg)
	return r
}

// newDispatcher routes notifications through SQS when a queue is configured,
// and delivers them inline otherwise.
func newDispatcher(cfg config.Config, clients *aws.AWSClients) notify.Dispatcher {
	if cfg.NotificationsQueueURL != "" {
		return notify.NewQueueDispatcher(aws.NewPublisher(clients.SQS, cfg.NotificationsQueueURL))
	}
	if cfg.SenderEmail == "" && cfg.SMSUsername == "" {
		return notify.LogDispatcher{}
	}
	mailer, sms := notify.NewSenders(clients.SES, cfg.SenderEmail, notify.SMSConfig{
		Username: cfg.SMSUsername,
		APIKey:   cfg.SMSAPIKey,
		URL:      cfg.SMSURL,
		SenderID: cfg.SMSSenderID,
	})
	return notify.NewDirectDispatcher(mailer, sms)
}

// devJWTSecret signs account tokens in local runs without STOREFRONT_JWT_SECRET.
const devJWTSecret = "storefront-local-development-secret"

func newTokenProvider(cfg config.Config) (*auth.TokenProvider, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if !cfg.RunLocal {
			return nil, errors.New("STOREFRONT_JWT_SECRET is required outside local runs")
		}
		log.Warn("no JWT secret configured, signing tokens with the development secret")
		secret = devJWTSecret
	}
	return auth.NewTokenProvider(secret, cfg.JWTIssuer, cfg.JWTLifetime)
}

// newAuthProvider accepts account tokens, plus OIDC ID tokens when an issuer
// is configured or unsigned dev tokens in local runs.
func newAuthProvider(ctx context.Context, cfg config.Config, tokens *auth.TokenProvider) (auth.Provider, error) {
	chain := auth.Chain{tokens}
	switch {
	case cfg.OIDCIssuer != "":
		p, err := auth.NewOIDCProvider(ctx, cfg.OIDCIssuer, cfg.OIDCClientID, cfg.AdminEmails)
		if err != nil {
			return nil, err
		}
		chain = append(chain, p)
	case cfg.RunLocal:
		log.Warn("no OIDC issuer configured, also accepting unsigned <role>:<user> dev tokens")
		chain = append(chain, auth.DevProvider{})
	}
	return chain, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSOptions())
	if err != nil {
		log.WithError(err).Fatal("failed to init aws clients")
	}
	tokens, err := newTokenProvider(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to init token provider")
	}
	provider, err := newAuthProvider(ctx, cfg, tokens)
	if err != nil {
		log.WithError(err).Fatal("failed to init auth provider")
	}

	var metrics orders.Counter
	if cfg.MetricsNamespace != "" {
		metrics = aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace)
	}
	dispatcher := newDispatcher(cfg, clients)

	products := catalog.NewStore(clients.DynamoDB, cfg.ProductsTable, cfg.CategoriesTable)
	carts := cart.NewService(cart.NewStore(clients.DynamoDB, cfg.CartsTable), products)
	orderStore := orders.NewStore(clients.DynamoDB, cfg.OrdersTable, cfg.OrdersUserIndex)
	idem := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)

	r := setupRouter(handlers.HandlerConfig{
		Auth:     provider,
		Users:    users.NewService(users.NewStore(clients.DynamoDB, cfg.UsersTable), tokens, cfg.AdminEmails),
		Catalog:  products,
		Reviews:  catalog.NewAggregator(products),
		Carts:    carts,
		Payments: payments.NewService(orderStore, dispatcher, metrics),
		Orders: orders.NewEngine(orders.EngineConfig{
			Store:       orderStore,
			Catalog:     products,
			Carts:       carts,
			Dispatcher:  dispatcher,
			Metrics:     metrics,
			Idempotency: idem,
		}),
		Idempotency: idem,
	})

	// if RUN_LOCAL is set, run local HTTP server for development.
	if cfg.RunLocal {
		log.WithField("addr", cfg.ListenAddr).Info("running local server")
		if err := r.Run(cfg.ListenAddr); err != nil {
			log.WithError(err).Fatal("failed to run local server")
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
