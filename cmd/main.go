package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	c "github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/cart"
	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/config"
	carthttp "github.com/fjod/storefront-cart/internal/http"
	"github.com/fjod/storefront-cart/internal/poller"
	"github.com/fjod/storefront-cart/internal/repository"
	s "github.com/fjod/storefront-cart/internal/service"
	"github.com/fjod/storefront-cart/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Service: "storefront-cart",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("cart service stopped with error", zap.Error(err))
	}
	log.Info("cart service stopped")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openSlotStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	var store cart.Store = repo
	if cfg.CacheEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		store = s.NewPersistence(repo, c.NewRedisCache(redisClient), log)
	}

	cat, closeCatalog, err := openCatalog(cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalog()

	service := s.NewCartService(store, cat, log)
	handler := carthttp.NewCartHandler(service, cfg.RequestTimeout, log)
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: carthttp.NewRouter(handler, log, cfg.RequestTimeout),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down cart service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		service.RunEviction(gctx, cfg.CartSweepInterval, cfg.CartIdleTTL)
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(service, log.Named("checkout-poller"), cfg.CheckoutTopic, cfg.KafkaBrokers...)
		g.Go(func() error {
			defer p.Close()
			log.Info("checkout consumer started",
				zap.Strings("brokers", cfg.KafkaBrokers),
				zap.String("topic", cfg.CheckoutTopic))
			p.Run(gctx)
			return nil
		})
	} else {
		log.Info("KAFKA_BROKERS not set, checkout consumer disabled")
	}

	return g.Wait()
}

func openSlotStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repository.SlotStore, func(), error) {
	switch cfg.StorageBackend {
	case "memory":
		log.Warn("using in-memory cart storage, carts are lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case repository.DialectSQLite, repository.DialectPostgres:
		dsn := cfg.SQLitePath
		if cfg.StorageBackend == repository.DialectPostgres {
			dsn = cfg.PostgresDSN
		}
		store, err := repository.OpenSQLStore(cfg.StorageBackend, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := store.RunMigrations(); err != nil {
			store.Close()
			return nil, nil, err
		}
		log.Info("connected to sql storage", zap.String("dialect", cfg.StorageBackend))
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close database", zap.Error(err))
			}
		}, nil

	case "mongo":
		db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMongoStore(db)
		if err := store.CreateIndexes(ctx); err != nil {
			db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info("connected to mongodb", zap.String("db", cfg.MongoDBName))
		return store, func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Warn("failed to disconnect mongodb", zap.Error(err))
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
}

func openCatalog(cfg config.Config, log *zap.Logger) (catalog.Catalog, func(), error) {
	switch cfg.CatalogBackend {
	case "memory":
		return catalog.NewMemoryCatalog(catalog.DemoItems()...), func() {}, nil

	case "sqlite":
		cat, err := catalog.OpenSQLCatalog(cfg.CatalogDBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := cat.RunMigrations(); err != nil {
			cat.Close()
			return nil, nil, err
		}
		log.Info("sqlite catalog ready", zap.String("path", cfg.CatalogDBPath))
		return cat, func() {
			if err := cat.Close(); err != nil {
				log.Warn("failed to close catalog database", zap.Error(err))
			}
		}, nil

	case "woocommerce":
		if cfg.WooBaseURL == "" {
			return nil, nil, errors.New("WOO_BASE_URL is required for the woocommerce catalog")
		}
		return catalog.NewWooClient(catalog.WooConfig{
			BaseURL:        cfg.WooBaseURL,
			ConsumerKey:    cfg.WooConsumerKey,
			ConsumerSecret: cfg.WooConsumerSecret,
			Timeout:        cfg.RequestTimeout,
			PriceDecimals:  cfg.WooPriceDecimals,
		}, log), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown CATALOG_BACKEND %q", cfg.CatalogBackend)
}
