// cmd/promotion-service/main.go
package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"nexus-promotion/internal/pkg/bootstrap"
	"nexus-promotion/internal/pkg/config"
	"nexus-promotion/internal/service/promotion/application"
	"nexus-promotion/internal/service/promotion/domain"
	"nexus-promotion/internal/service/promotion/domain/port"
	"nexus-promotion/internal/service/promotion/infrastructure/action"
	"nexus-promotion/internal/service/promotion/infrastructure/cache"
	"nexus-promotion/internal/service/promotion/infrastructure/event"
	"nexus-promotion/internal/service/promotion/infrastructure/fixture"
	"nexus-promotion/internal/service/promotion/infrastructure/persistence"
	"nexus-promotion/internal/service/promotion/infrastructure/rule"
	"nexus-promotion/internal/service/promotion/interfaces"
)

const serviceName = "promotion-service"

func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.Server.Port,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) error {
			return wire(appCtx)
		},
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("promotion service stopped")
	}
}

// wire 组装仓储、引擎和适配器，并注册路由与后台任务。
func wire(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	ctx, cancel := context.WithCancel(context.Background())
	appCtx.OnShutdown(func(context.Context) error { cancel(); return nil })

	actions, err := action.NewActionSet()
	if err != nil {
		return err
	}
	repo, err := newRepository(ctx, cfg, actions, appCtx)
	if err != nil {
		return err
	}
	catalog := application.NewCatalog(repo, actions)
	if _, err := catalog.Reload(ctx); err != nil {
		return errors.Wrap(err, "initial catalog load")
	}
	go catalog.AutoReload(ctx, cfg.Engine.ReloadInterval)

	engine := domain.NewEngine(rule.NewJSONRuleEngineAdapter(), cfg.Engine.RequiredFacts...)

	var publisher port.AdjustmentPublisher
	if cfg.Kafka.Enabled() {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.AdjustmentsTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
		appCtx.OnShutdown(func(context.Context) error { return writer.Close() })
		publisher = event.NewKafkaAdjustmentPublisher(writer)
	}
	svc := application.NewPromotionService(catalog, engine, publisher, otel.Tracer(serviceName), cfg.Engine)

	interfaces.NewPromotionHandler(svc).RegisterRoutes(appCtx.Mux)

	if cfg.Kafka.Enabled() {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CartEventsTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		consumer := interfaces.NewCartEventConsumer(reader, svc, cfg.Kafka.CartEventsTopic)
		consumer.Start(ctx)
		appCtx.OnShutdown(consumer.Stop)
	}
	return nil
}

// newRepository 配置了 MySQL 时使用 GORM 仓储 (可选 Redis 缓存)，否则从 fixture 文件加载到内存。
func newRepository(ctx context.Context, cfg *config.Config, actions *domain.ActionSet, appCtx *bootstrap.AppCtx) (domain.PromotionRepository, error) {
	if cfg.MySQL.DSN == "" {
		mem := fixture.NewMemoryRepository(domain.Shop{ID: "default", Name: "default", ShopType: domain.ShopTypePrimary})
		if cfg.Engine.FixturesPath == "" {
			zlog.Warn().Msg("no mysql dsn and no fixtures path, catalog starts empty")
			return mem, nil
		}
		fixtures, err := fixture.LoadFile(cfg.Engine.FixturesPath)
		if err != nil {
			return nil, err
		}
		seeder := application.NewSeeder(mem, mem, actions, otel.Tracer(serviceName))
		if _, err := seeder.Seed(ctx, fixtures, nil); err != nil {
			return nil, errors.Wrap(err, "load fixtures into memory")
		}
		return mem, nil
	}

	db, err := persistence.Open(cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	store := persistence.NewGormPromotionRepository(db)
	if cfg.MySQL.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			return nil, errors.Wrap(err, "auto migrate")
		}
	}
	appCtx.OnShutdown(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if cfg.Redis.Addr == "" {
		return store, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	appCtx.OnShutdown(func(context.Context) error { return rdb.Close() })
	return cache.NewCachedPromotionRepository(store, rdb, cfg.Redis.TTL), nil
}
