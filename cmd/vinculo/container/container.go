package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nuestrovinculo/vinculo/cmd/vinculo/repository"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/service"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/spool"
	"github.com/nuestrovinculo/vinculo/common/bootstrap"
	"github.com/nuestrovinculo/vinculo/common/clients"
	"github.com/nuestrovinculo/vinculo/common/metrics"
	"github.com/nuestrovinculo/vinculo/common/storagenet"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	CardStore repository.CardStore

	// Storage network
	Network storagenet.Network

	// Services
	CardService *service.CardService
	Spool       *spool.Spool
}

// NewContainer initializes all services and repositories once
func NewContainer(ctx context.Context, components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	store, err := newCardStore(components)
	if err != nil {
		return nil, fmt.Errorf("failed to create card store: %w", err)
	}

	network, err := newNetwork(ctx, components)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage network client: %w", err)
	}

	observer, err := metrics.NewPrometheusObserver("vinculo", components.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	cardService := service.NewCardService(store, network, observer, service.CardOptions{
		DefaultInitialVideoURL: cfg.Cards.DefaultInitialVideoURL,
		GatewayURL:             cfg.Storage.GatewayURL,
		AppName:                cfg.Service.Name,
		CallTimeout:            cfg.Storage.CallTimeout,
		UploadTimeout:          cfg.Storage.UploadTimeout,
		FundingMarginPercent:   cfg.Storage.FundingMarginPercent,
	}, components.Logger)

	return &Container{
		Components:  components,
		CardStore:   store,
		Network:     network,
		CardService: cardService,
		Spool:       spool.New(cfg.Upload.Dir, components.Logger),
	}, nil
}

func newCardStore(components *bootstrap.Components) (repository.CardStore, error) {
	cfg := components.Config

	var store repository.CardStore
	switch cfg.Cards.Store {
	case "postgres":
		if components.DB == nil {
			return nil, fmt.Errorf("postgres card store selected but database is not connected")
		}
		store = repository.NewPostgresCardStore(components.DB)
	case "redis":
		if components.Redis == nil {
			return nil, fmt.Errorf("redis card store selected but redis is not connected")
		}
		store = repository.NewRedisCardStore(components.Redis)
	case "memory":
		if cfg.Cards.SeedFixtures {
			store = repository.NewSeededMemoryCardStore()
		} else {
			store = repository.NewMemoryCardStore()
		}
	default:
		return nil, fmt.Errorf("unknown card store: %s", cfg.Cards.Store)
	}

	if components.Cache != nil {
		store = repository.NewCachedCardStore(store, components.Cache, cfg.Cache.DefaultTTL, components.Logger)
	}

	return store, nil
}

// newNetwork builds the configured storage backend. Missing credentials do
// not fail startup; uploads fail with the missing variable instead.
func newNetwork(ctx context.Context, components *bootstrap.Components) (storagenet.Network, error) {
	cfg := components.Config
	log := components.Logger

	if err := cfg.StorageCredentials(); err != nil {
		log.Warn("storage network not configured, uploads disabled", "backend", cfg.Storage.Backend, "error", err)
		return storagenet.Unconfigured{Err: err}, nil
	}

	switch cfg.Storage.Backend {
	case "bundler":
		signer, err := storagenet.NewSigner(cfg.Storage.PrivateKey)
		if err != nil {
			return nil, err
		}
		var funder storagenet.Funder
		if cfg.Storage.RPCURL != "" {
			chain, err := storagenet.DialFunder(ctx, cfg.Storage.RPCURL, signer.Key())
			if err != nil {
				return nil, err
			}
			funder = chain
		} else {
			log.Warn("POLYGON_RPC_URL not set, uploads are limited to the prepaid balance")
		}
		httpClient := clients.NewHTTPClient(&http.Client{}, log)
		bundler := storagenet.NewBundler(storagenet.BundlerConfig{
			NodeURL:  cfg.Storage.NodeURL,
			Currency: cfg.Storage.Currency,
		}, httpClient, signer, funder, log)

		log.Info("bundler client ready",
			"node", cfg.Storage.NodeURL,
			"currency", cfg.Storage.Currency,
			"address", bundler.Address(),
		)
		return bundler, nil

	case "s3":
		store, err := storagenet.NewS3Store(ctx, storagenet.S3Config{
			Bucket:       cfg.Storage.S3Bucket,
			Region:       cfg.Storage.S3Region,
			BaseEndpoint: cfg.Storage.S3BaseEndpoint,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		log.Info("s3 storage ready", "bucket", cfg.Storage.S3Bucket, "endpoint", cfg.Storage.S3BaseEndpoint)
		return store, nil

	case "memory":
		log.Warn("using in-memory storage network, uploads are not persisted")
		return storagenet.NewMemory(cfg.Storage.MemoryPricePerByte, cfg.Storage.MemoryBalance), nil
	}

	return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
}

// StorageConfigured reports whether uploads are enabled
func (c *Container) StorageConfigured() bool {
	_, unconfigured := c.Network.(storagenet.Unconfigured)
	return !unconfigured
}
