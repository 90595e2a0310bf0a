// Command seed loads categories and products from a JSON file into the
// catalog tables.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/catalog"
	"github.com/imrishuroy/go-storefront/internal/config"
	"github.com/imrishuroy/go-storefront/internal/logging"
)

func main() {
	app := &cli.App{
		Name:  "seed",
		Usage: "seed the storefront catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "JSON file with categories and products",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "DynamoDB endpoint override, e.g. http://localhost:4566",
			},
			&cli.StringFlag{
				Name:  "region",
				Usage: "AWS region",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "validate the file without writing",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("seed failed")
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, "text")

	data, err := readSeedFile(c.String("file"))
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		log.WithFields(log.Fields{
			"categories": len(data.Categories),
			"products":   len(data.Products),
		}).Info("seed file is valid")
		return nil
	}

	opts := cfg.AWSOptions()
	if v := c.String("region"); v != "" {
		opts.Region = v
	}
	if v := c.String("endpoint"); v != "" {
		opts.Endpoint = v
	}
	clients, err := aws.NewAWSClients(c.Context, opts)
	if err != nil {
		return err
	}

	store := catalog.NewStore(clients.DynamoDB, cfg.ProductsTable, cfg.CategoriesTable)
	res, err := seed(c.Context, store, data)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"categoriesCreated": res.Categories,
		"categoriesSkipped": res.SkippedCategories,
		"productsCreated":   res.Products,
	}).Info("catalog seeded")
	return nil
}

func readSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var data SeedFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// Catalog is the part of catalog.Store the seeder writes through.
type Catalog interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, c *catalog.Category) error
	Create(ctx context.Context, p *catalog.Product) error
}
