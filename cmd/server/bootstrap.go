package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/swdash/internal/api"
	"github.com/charlesng35/swdash/internal/app"
	"github.com/charlesng35/swdash/internal/cache"
	"github.com/charlesng35/swdash/internal/database"
	"github.com/charlesng35/swdash/internal/handlers"
	"github.com/charlesng35/swdash/internal/monitoring"
	"github.com/charlesng35/swdash/internal/monitoring/checks"
	"github.com/charlesng35/swdash/internal/reader"
	"github.com/charlesng35/swdash/internal/refresher"
	"github.com/charlesng35/swdash/internal/store"
	"github.com/charlesng35/swdash/pkg/logger"
)

const storeProbeTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Gateway   store.Gateway
	Cache     *cache.TableCache
	Reader    *reader.Reader
	Refresher *refresher.Refresher
	History   *refresher.GormRecorder
	Monitor   *monitoring.Module
	Router    *gin.Engine
}

// bootstrapRuntime initialises the store connection, cache, reader, refresher and HTTP router.
// A missing store configuration is not an error: the reader then reports the
// store as unavailable for the life of the process.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Monitoring.Prometheus.Enabled || cfg.Monitoring.Health.Enabled {
		stack.Monitor, err = monitoring.NewModule()
		if err != nil {
			return nil, fmt.Errorf("initialise monitoring: %w", err)
		}
		monitoring.SetModule(stack.Monitor)
	}

	dbCfg := cfg.Database.ConnectionConfig()
	if dbCfg.Configured() {
		stack.DB, err = initialiseDatabase(dbCfg, cfg.Refresher.History)
		if err != nil {
			return nil, err
		}

		gw, gwErr := store.NewGormGateway(stack.DB, store.WithExcludedTables(database.ServiceTables...))
		if gwErr != nil {
			return nil, fmt.Errorf("initialise store gateway: %w", gwErr)
		}
		stack.Gateway = gw
		if cfg.Store.Breaker.Enabled {
			stack.Gateway = store.NewBreakerGateway(gw, cfg.Store.Breaker.GatewayBreakerConfig())
		}
	} else {
		log.Error("no store connection configured, table reads fail with store unavailable",
			zap.String("driver", dbCfg.Driver),
		)
	}

	stack.Cache = cache.New(cfg.Cache.TableCacheConfig())
	stack.Reader = reader.New(stack.Gateway, stack.Cache,
		reader.WithQueryTimeout(cfg.Store.QueryTimeout),
	)

	var history handlers.RunHistory
	if cfg.Refresher.History && stack.DB != nil {
		stack.History, err = refresher.NewGormRecorder(stack.DB)
		if err != nil {
			return nil, fmt.Errorf("initialise refresh history: %w", err)
		}
		history = stack.History
	}

	if cfg.Refresher.Active() {
		opts := []refresher.Option{
			refresher.WithTick(cfg.Refresher.Tick),
			refresher.WithIntervals(cfg.Refresher.Intervals.RefreshIntervals()),
		}
		if stack.History != nil {
			opts = append(opts, refresher.WithRecorder(stack.History))
		}
		stack.Refresher = refresher.New(stack.Reader, opts...)
		if err := stack.Refresher.Start(ctx); err != nil {
			return nil, fmt.Errorf("start background refresh: %w", err)
		}
	} else {
		log.Info("background refresh disabled")
	}

	registerHealthChecks(stack, cfg)

	stack.Router, err = api.NewRouter(cfg, stack.Reader, stack.Monitor, history)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func registerHealthChecks(stack *runtimeStack, cfg *app.Config) {
	if stack.Monitor == nil || !cfg.Monitoring.Health.Enabled {
		return
	}
	health := stack.Monitor.Health()
	health.RegisterReadiness(checks.Store(stack.DB, storeProbeTimeout))
	if cfg.Store.Breaker.Enabled && stack.DB != nil {
		health.RegisterReadiness(checks.Breaker())
	}
	if stack.Refresher != nil {
		// Three missed ticks before the refresher is considered stale.
		health.RegisterReadiness(checks.Refresher(3 * cfg.Refresher.Tick))
	}
}

// Shutdown stops the refresher, waits for any in-flight pass and releases the database.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Refresher != nil {
		done := s.Refresher.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("wait for refresh pass: %w", ctx.Err()))
		}
	}

	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}

	if errs != nil {
		log.Warn("runtime shutdown incomplete", zap.Error(errs))
	}
	return errs
}

func initialiseDatabase(dbCfg database.Config, history bool) (*gorm.DB, error) {
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if history {
		if err := database.AutoMigrate(db); err != nil {
			return nil, multierr.Append(fmt.Errorf("auto-migrate database: %w", err), database.Close(db))
		}
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}
