package cmd

import (
	"context"
	"path"

	"cda/internal/config"
	"cda/internal/identity"
	"cda/internal/landing"
	"cda/internal/observability"
	"cda/internal/pipeline"
	"cda/internal/snowflake"
	"cda/pkg/errors"
	"cda/pkg/models"
)

// connections owns whatever a command opened; Close releases it
type connections struct {
	warehouse *snowflake.Service
}

func (c *connections) Close() {
	if c.warehouse != nil {
		c.warehouse.Close()
	}
}

func (c *connections) snowflake(ctx context.Context, cfg *models.Config, logger *observability.Logger) (*snowflake.Service, error) {
	if c.warehouse != nil {
		return c.warehouse, nil
	}
	svc := snowflake.NewService(snowflake.ConfigFromModel(*cfg, config.Timeout(cfg.Snowflake)), logger)
	if err := svc.Connect(ctx); err != nil {
		return nil, err
	}
	c.warehouse = svc
	return svc, nil
}

// fileSource opens the landing files for local and s3 sources
func fileSource(ctx context.Context, cfg *models.Config) (*landing.FileSource, error) {
	switch cfg.Source.Type {
	case "local":
		store, err := landing.NewDirStore(cfg.Source.Path)
		if err != nil {
			return nil, err
		}
		return landing.NewFileSource(store, cfg.Source.Prefix), nil
	case "s3":
		store, err := landing.DialS3(ctx, cfg.Source.Bucket, cfg.Source.Region, cfg.Source.Profile)
		if err != nil {
			return nil, err
		}
		prefix := cfg.Source.Prefix
		if prefix == "" {
			prefix = path.Join("clients", cfg.ClientName)
		}
		return landing.NewFileSource(store, prefix), nil
	default:
		return nil, errors.ConfigError("landing files are only read from local or s3 sources", "source.type")
	}
}

func (c *connections) source(ctx context.Context, cfg *models.Config, logger *observability.Logger) (landing.Source, error) {
	if cfg.Source.Type == "snowflake" {
		return c.snowflake(ctx, cfg, logger)
	}
	return fileSource(ctx, cfg)
}

// seeds reads the CSV seed when configured, otherwise the Snowflake seed table
func (c *connections) seeds(ctx context.Context, cfg *models.Config, logger *observability.Logger) ([]identity.SeedRow, error) {
	if cfg.Seed.Path != "" {
		return identity.LoadSeedFile(cfg.Seed.Path)
	}
	svc, err := c.snowflake(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return svc.SeedRows(ctx)
}

func (c *connections) sink(ctx context.Context, cfg *models.Config, logger *observability.Logger) (pipeline.Sink, error) {
	switch cfg.Output.Type {
	case "snowflake":
		svc, err := c.snowflake(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := svc.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	case "local":
		return landing.NewDirSink(cfg.Output.Path)
	default:
		return nil, errors.ConfigError("unknown output type "+cfg.Output.Type, "output.type")
	}
}
