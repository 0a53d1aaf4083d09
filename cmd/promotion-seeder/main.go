// cmd/promotion-seeder/main.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"nexus-promotion/internal/pkg/bootstrap"
	"nexus-promotion/internal/pkg/config"
	"nexus-promotion/internal/pkg/tracing"
	"nexus-promotion/internal/pkg/zookeeper"
	"nexus-promotion/internal/service/promotion/application"
	"nexus-promotion/internal/service/promotion/infrastructure/action"
	"nexus-promotion/internal/service/promotion/infrastructure/fixture"
	"nexus-promotion/internal/service/promotion/infrastructure/persistence"
)

const serviceName = "promotion-seeder"

func main() {
	fixturesPath := flag.String("fixtures", "", "fixture file, defaults to engine.fixturesPath")
	flag.Parse()

	cfg, err := bootstrap.Init()
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}
	if *fixturesPath == "" {
		*fixturesPath = cfg.Engine.FixturesPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *fixturesPath); err != nil {
		zlog.Fatal().Err(err).Msg("seed promotions")
	}
}

func run(ctx context.Context, cfg *config.Config, fixturesPath string) error {
	if cfg.MySQL.DSN == "" {
		return errors.New("mysql.dsn is required")
	}
	if fixturesPath == "" {
		return errors.New("no fixture file given")
	}

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Jaeger.Endpoint)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	fixtures, err := fixture.LoadFile(fixturesPath)
	if err != nil {
		return err
	}

	db, err := persistence.Open(cfg.MySQL.DSN)
	if err != nil {
		return err
	}
	store := persistence.NewGormPromotionRepository(db)
	if cfg.MySQL.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			return errors.Wrap(err, "auto migrate")
		}
	}

	actions, err := action.NewActionSet()
	if err != nil {
		return err
	}

	var lock application.Locker
	if len(cfg.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Zookeeper.Servers, cfg.Zookeeper.SessionTimeout)
		if err != nil {
			return err
		}
		defer conn.Close()
		zkLock, err := zookeeper.NewDistributedLock(conn, "promotion-seed")
		if err != nil {
			return err
		}
		lockCtx, cancel := context.WithTimeout(ctx, cfg.Zookeeper.LockTimeout)
		defer cancel()
		lock = ctxLock{ctx: lockCtx, lock: zkLock}
	}

	seeder := application.NewSeeder(store, store, actions, otel.Tracer(serviceName))
	report, err := seeder.Seed(ctx, fixtures, lock)
	if err != nil {
		return err
	}
	zlog.Info().
		Str("shop_id", report.ShopID).
		Strs("upserted", report.Upserted).
		Bool("skipped", report.Skipped).
		Msg("seeding finished")
	return nil
}

// ctxLock 让等锁使用单独的超时，而不是整个命令的 context。
type ctxLock struct {
	ctx  context.Context
	lock *zookeeper.DistributedLock
}

func (l ctxLock) Lock(context.Context) error { return l.lock.Lock(l.ctx) }
func (l ctxLock) Unlock() error              { return l.lock.Unlock() }
