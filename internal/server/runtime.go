package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/Shelf/backend/internal/bridge"
	"github.com/GriffinCanCode/Shelf/backend/internal/capability"
	"github.com/GriffinCanCode/Shelf/backend/internal/domain/registry"
	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/Shelf/backend/internal/providers/storage"
	"github.com/GriffinCanCode/Shelf/backend/internal/sandbox"
	"github.com/GriffinCanCode/Shelf/backend/internal/shared/paths"
	"go.uber.org/zap"
)

const busBuffer = 64

// Runtime owns every long-lived component of the plugin host. The API
// server and the CLI commands share it.
type Runtime struct {
	Config      *config.Config
	Logger      *logging.Logger
	Layout      paths.Layout
	Metrics     *monitoring.Metrics
	Bus         *events.Bus
	HTTP        *client.Client
	Preferences storage.Store
	Keychain    storage.Store
	Pool        *sandbox.Pool
	Registry    *registry.Registry

	closers []func() error
}

// NewRuntime wires the host together and discovers installed packages
func NewRuntime(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Layout:  paths.New(cfg.Shelf.DataDir),
		Metrics: monitoring.NewMetrics(),
	}

	logger.Info("Initializing Shelf runtime",
		zap.String("data_dir", rt.Layout.Root),
		zap.String("store", cfg.Store.Backend),
	)

	if err := rt.openStores(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	rt.Bus = events.NewBus(busBuffer, logger.Named("events"))
	rt.closers = append(rt.closers, func() error { rt.Bus.Close(); return nil })

	rt.HTTP = client.NewClient(client.Options{
		Timeout:      cfg.HTTP.Timeout.Std(),
		RetryMax:     cfg.HTTP.RetryMax,
		RateLimit:    cfg.HTTP.RateLimit,
		UserAgent:    cfg.HTTP.UserAgent,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, logger.Named("http"))

	injector, err := capability.NewInjector(capability.Deps{
		HTTP:        rt.HTTP,
		Preferences: rt.Preferences,
		Keychain:    rt.Keychain,
		Bus:         rt.Bus,
		Metrics:     rt.Metrics,
		Logger:      logger.Named("guest"),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	sandboxCfg := sandbox.Config{
		LoadTimeout:  cfg.Sandbox.LoadTimeout.Std(),
		ExecTimeout:  cfg.Sandbox.ExecTimeout.Std(),
		MaxCallStack: cfg.Sandbox.MaxCallStack,
	}
	if cfg.Sandbox.PoolSize > 0 {
		pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize, logger.Named("sandbox"), rt.Metrics)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to warm sandbox pool: %w", err)
		}
		rt.Pool = pool
		rt.closers = append(rt.closers, pool.Close)
	}

	reg, err := registry.New(registry.Deps{
		Layout:          rt.Layout,
		HTTP:            rt.HTTP,
		Injector:        injector,
		Bridge:          bridge.New(cfg.Bridge.Timeout.Std(), rt.Metrics, logger.Named("bridge")),
		Pool:            rt.Pool,
		Sandbox:         sandboxCfg,
		Bus:             rt.Bus,
		Preferences:     rt.Preferences,
		Keychain:        rt.Keychain,
		PurgeOnRemove:   cfg.Store.PurgeOnRemove,
		Concurrency:     cfg.Install.Concurrency,
		MaxArchiveBytes: cfg.Install.MaxArchiveBytes,
		Metrics:         rt.Metrics,
		Logger:          logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Registry = reg
	// registry first so guests stop before the stores and bus go away
	rt.closers = append(rt.closers, reg.Close)

	if err := reg.Startup(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("startup discovery failed: %w", err)
	}
	logger.Info("Runtime ready",
		zap.Int("sources", len(reg.Sources())),
		zap.Int("trackers", len(reg.Trackers())),
	)
	return rt, nil
}

func (rt *Runtime) openStores(ctx context.Context) error {
	cfg := rt.Config.Store

	var prefs, keys storage.Store
	switch cfg.Backend {
	case "memory":
		prefs, keys = storage.NewMemoryStore(), storage.NewMemoryStore()
	case "file":
		p, err := storage.OpenFileStore(rt.Layout.Preferences())
		if err != nil {
			return err
		}
		k, err := storage.OpenFileStore(rt.Layout.Keychain())
		if err != nil {
			return err
		}
		prefs, keys = p, k
	case "redis":
		p, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, Prefix: "shelf:prefs:",
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, p.Close)
		k, err := storage.NewRedisStore(ctx, storage.RedisConfig{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, Prefix: "shelf:keychain:",
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, k.Close)
		prefs, keys = p, k
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	secret := []byte(cfg.KeychainSecret)
	if len(secret) == 0 {
		var err error
		if secret, err = storage.LoadOrCreateSecret(rt.Layout.KeychainSecret()); err != nil {
			return err
		}
	}
	sealed, err := storage.NewSecureStore(ctx, keys, secret)
	if err != nil {
		return err
	}

	rt.Preferences, rt.Keychain = prefs, sealed
	return nil
}

// Close shuts components down in reverse order of creation
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	if len(errs) > 0 {
		rt.Logger.Error("Runtime shutdown errors", zap.Error(errors.Join(errs...)))
	}
	return errors.Join(errs...)
}
