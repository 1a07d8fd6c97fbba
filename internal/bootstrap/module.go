package bootstrap

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"pdmrelease/internal/bootstrap/config"
	"pdmrelease/internal/bootstrap/database"
	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
	"pdmrelease/internal/infrastructure/archive"
	"pdmrelease/internal/infrastructure/document"
	"pdmrelease/internal/infrastructure/exportbridge"
	"pdmrelease/internal/infrastructure/lock"
	"pdmrelease/internal/infrastructure/metrics"
	"pdmrelease/internal/infrastructure/notify"
	sqliterepo "pdmrelease/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "pdmrelease/internal/infrastructure/persistence/sqlite/uow"
	"pdmrelease/internal/infrastructure/publish"
	"pdmrelease/internal/ports"
	"pdmrelease/internal/usecase/release"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewRFQRepository,
			fx.As(new(ports.RFQRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideGenerationLock),
	fx.Provide(provideExportBridge),
	fx.Provide(provideNotifier),
	fx.Provide(providePublisher),
	fx.Provide(provideMetrics),
	fx.Provide(provideQueue),
	fx.Provide(provideReleaseService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithComponent(p.Ctx, "bootstrap.fx")
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB, queue *release.Queue) *App {
	return &App{
		Config: cfg,
		DB:     db,
		Queue:  queue,
	}
}

func provideGenerationLock(lc fx.Lifecycle, cfg config.Config, db *gorm.DB) ports.GenerationLock {
	switch strings.ToLower(cfg.Lock.Backend) {
	case "memory":
		return lock.NewMemoryLock()
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error { return client.Close() },
		})
		return lock.NewRedisLock(client)
	default:
		return lock.NewSQLLock(db)
	}
}

// provideExportBridge picks the bridge transport. A missing bridge is not a
// startup error; generation reports it as service unavailable.
func provideExportBridge(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.ExportBridge, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	switch strings.ToLower(cfg.Bridge.Mode) {
	case "http":
		bridge, err := exportbridge.NewHTTPBridge(exportbridge.HTTPOptions{
			BaseURL:       cfg.Bridge.BaseURL,
			Timeout:       cfg.Bridge.Timeout,
			RatePerSecond: cfg.Bridge.RatePerSecond,
			Burst:         cfg.Bridge.Burst,
		})
		if err != nil {
			return nil, errs.Wrap(err, "build http export bridge")
		}
		return bridge, nil
	case "exec":
		profile, err := exportbridge.LoadExecProfile(cfg.Bridge.Profile)
		if err != nil {
			return nil, errs.Wrap(err, "load export bridge profile")
		}
		bridge := exportbridge.NewExecBridge(profile)

		watchCtx, cancelWatch := context.WithCancel(context.WithoutCancel(logCtx))
		lc.Append(fx.Hook{
			OnStart: func(_ context.Context) error {
				go func() {
					if err := bridge.WatchProfile(watchCtx, cfg.Bridge.Profile); err != nil {
						logging.Warn(logCtx, "bridge profile watch stopped", slog.Any("err", errs.Loggable(err)))
					}
				}()
				return nil
			},
			OnStop: func(_ context.Context) error {
				cancelWatch()
				return nil
			},
		})
		return bridge, nil
	default:
		logging.Warn(logCtx, "export bridge not configured, generation is unavailable")
		return exportbridge.Unavailable{}, nil
	}
}

// provideNotifier connects to NATS when a URL is set. Events are best effort,
// so an unreachable server degrades to no notifications.
func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) ports.ReleaseNotifier {
	url := strings.TrimSpace(cfg.NATS.URL)
	if url == "" {
		return notify.Noop{}
	}

	notifier, err := notify.NewNATSNotifier(url, cfg.NATS.SubjectPrefix)
	if err != nil {
		logging.Warn(logging.WithComponent(ctx, "bootstrap.fx"), "nats unavailable, release events disabled",
			slog.String("url", url),
			slog.Any("err", errs.Loggable(err)),
		)
		return notify.Noop{}
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error { return notifier.Close() },
	})
	return notifier
}

func providePublisher(ctx context.Context, cfg config.Config) (ports.ArchivePublisher, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}
	publisher, err := publish.NewS3Publisher(ctx, publish.S3Options{
		Region:          cfg.S3.Region,
		Bucket:          cfg.S3.Bucket,
		Prefix:          cfg.S3.Prefix,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, errs.Wrap(err, "build s3 publisher")
	}
	return publisher, nil
}

func provideMetrics() ports.ReleaseMetrics {
	return metrics.NewPrometheus(prometheus.DefaultRegisterer)
}

// provideQueue returns nil when queued generation is disabled.
func provideQueue(lc fx.Lifecycle, cfg config.Config) *release.Queue {
	if !cfg.Queue.Enabled {
		return nil
	}
	client := asynq.NewClient(RedisClientOpt(cfg.Redis))
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error { return client.Close() },
	})
	return release.NewQueue(client, cfg.Queue.QueueName, cfg.Lock.TTL)
}

// RedisClientOpt maps the redis section onto asynq connection options.
func RedisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

type releaseParams struct {
	fx.In

	Config    config.Config
	Repo      ports.RFQRepository
	UoW       ports.UnitOfWork
	Bridge    ports.ExportBridge
	Lock      ports.GenerationLock
	Notifier  ports.ReleaseNotifier
	Publisher ports.ArchivePublisher
	Metrics   ports.ReleaseMetrics
}

func provideReleaseService(p releaseParams) *release.Service {
	return release.NewService(release.Deps{
		Repo:   p.Repo,
		UoW:    p.UoW,
		Bridge: p.Bridge,
		Lock:   p.Lock,
		Renderer: document.NewPDFRenderer(document.Branding{
			CompanyName: p.Config.Branding.CompanyName,
			Address:     p.Config.Branding.Address,
			Email:       p.Config.Branding.Email,
			Phone:       p.Config.Branding.Phone,
		}),
		Archiver:  archive.NewZipWriter(),
		Publisher: p.Publisher,
		Notifier:  p.Notifier,
		Metrics:   p.Metrics,
	}, release.Options{
		WorkdirRoot: p.Config.Workdir.Root,
		OutputRoot:  p.Config.Package.OutputRoot,
		LockTTL:     p.Config.Lock.TTL,
	})
}
