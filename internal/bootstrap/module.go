package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"k8s.io/utils/clock"

	"partnermap/internal/bootstrap/config"
	"partnermap/internal/bootstrap/database"
	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/domain/partner"
	"partnermap/internal/errs"
	cacheinfra "partnermap/internal/infrastructure/cache"
	"partnermap/internal/infrastructure/files"
	"partnermap/internal/infrastructure/geocoding"
	sqliterepo "partnermap/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "partnermap/internal/infrastructure/persistence/sqlite/uow"
	"partnermap/internal/infrastructure/queue"
	"partnermap/internal/infrastructure/ratelimit"
	"partnermap/internal/infrastructure/tabular"
	"partnermap/internal/ports"
	"partnermap/internal/usecase/backfill"
	"partnermap/internal/usecase/catalog"
	"partnermap/internal/usecase/dispatch"
	geocodeuc "partnermap/internal/usecase/geocode"
	"partnermap/internal/usecase/partnerimport"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideClock),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewSchoolRepository,
			fx.As(new(ports.SchoolRepository)),
			fx.As(new(ports.SchoolReadRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewJobRepository,
			fx.As(new(ports.ImportJobRepository)),
			fx.As(new(ports.GeocodeJobRepository)),
			fx.As(new(dispatch.QueuedJobs)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewGeocodeCache,
			fx.As(new(ports.GeocodeCache)),
		),
	),
	fx.Provide(provideFileStore),
	fx.Provide(provideJobQueue),
	fx.Provide(provideResolver),
	fx.Provide(
		fx.Annotate(
			func(r *geocodeuc.Resolver) *geocodeuc.Resolver { return r },
			fx.As(new(ports.CityResolver)),
		),
	),
	fx.Provide(provideAliases),
	fx.Provide(provideImportService),
	fx.Provide(provideImportRunner),
	fx.Provide(provideBackfillService),
	fx.Provide(catalog.NewService),
	fx.Provide(provideWorker),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

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

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideClock() clock.Clock {
	return clock.RealClock{}
}

func provideFileStore(cfg config.Config) (ports.FileStore, error) {
	if cfg.Uploads.Backend == "s3" {
		s3 := cfg.Uploads.S3
		return files.NewS3Store(files.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
		})
	}
	return files.NewLocalStore(cfg.Uploads.Dir), nil
}

func provideJobQueue(lc fx.Lifecycle, ctx context.Context, cfg config.Config, c clock.Clock) (ports.JobQueue, error) {
	if cfg.Queue.Backend != "nats" {
		return queue.NewMemoryQueue(cfg.Queue.Size,
			queue.WithRedeliveryDelay(cfg.Queue.RedeliveryDelay),
			queue.WithClock(c),
		), nil
	}

	js, err := queue.NewJetStreamQueue(ctx, queue.JetStreamConfig{
		URL:        cfg.Queue.NATSURL,
		Durable:    cfg.Queue.Durable,
		AckWait:    cfg.Queue.AckWait,
		MaxDeliver: cfg.Queue.MaxDeliver,

		RedeliveryDelay: cfg.Queue.RedeliveryDelay,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			js.Close()
			return nil
		},
	})
	return js, nil
}

type resolverParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Ctx       context.Context
	Config    config.Config
	Cache     ports.GeocodeCache
	Clock     clock.Clock
}

func provideResolver(p resolverParams) (*geocodeuc.Resolver, error) {
	gc := p.Config.Geocode
	nominatim := geocoding.NewNominatim(geocoding.NominatimConfig{
		BaseURL:   gc.Nominatim.BaseURL,
		UserAgent: gc.Nominatim.UserAgent,
		Timeout:   gc.HTTPTimeout,
	})
	google := geocoding.NewGoogle(geocoding.GoogleConfig{
		BaseURL: gc.Google.BaseURL,
		APIKey:  gc.Google.APIKey,
		Timeout: gc.HTTPTimeout,
	})

	newLimiter := func(provider string, interval time.Duration) ports.Limiter {
		return ratelimit.NewSpacer(p.Clock, interval)
	}
	if gc.Limiter.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     gc.Limiter.Redis.Addr,
			Password: gc.Limiter.Redis.Password,
			DB:       gc.Limiter.Redis.DB,
		})
		if err := client.Ping(p.Ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errs.Wrapf(err, "ping redis %s", gc.Limiter.Redis.Addr)
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return client.Close() },
		})
		newLimiter = func(provider string, interval time.Duration) ports.Limiter {
			return ratelimit.NewRedisSpacer(client, p.Clock, provider, interval)
		}
	}

	return geocodeuc.NewResolver(
		geocodeuc.NewStrategy(nominatim, p.Cache, newLimiter(nominatim.Name(), gc.Nominatim.MinInterval), p.Clock),
		geocodeuc.NewStrategy(google, p.Cache, newLimiter(google.Name(), gc.Google.MinInterval), p.Clock),
	), nil
}

func provideAliases(cfg config.Config) (partner.ColumnAliases, error) {
	return tabular.LoadAliases(cfg.Import.AliasesFile)
}

func provideImportService(jobs ports.ImportJobRepository, store ports.FileStore, q ports.JobQueue, cfg config.Config, c clock.Clock) *partnerimport.Service {
	return partnerimport.NewService(jobs, store, q, cfg.Uploads.URLPrefix, c)
}

type importRunnerParams struct {
	fx.In

	Jobs     ports.ImportJobRepository
	Schools  ports.SchoolRepository
	UoW      ports.UnitOfWork
	Files    ports.FileStore
	Resolver ports.CityResolver
	Aliases  partner.ColumnAliases
	Clock    clock.Clock
}

func provideImportRunner(p importRunnerParams) *partnerimport.Runner {
	return partnerimport.NewRunner(partnerimport.RunnerDeps{
		Jobs:     p.Jobs,
		Schools:  p.Schools,
		UoW:      p.UoW,
		Files:    p.Files,
		Resolver: p.Resolver,
		Aliases:  p.Aliases,
		Clock:    p.Clock,
	})
}

func provideBackfillService(jobs ports.GeocodeJobRepository, schools ports.SchoolRepository, resolver ports.CityResolver, q ports.JobQueue, c clock.Clock) *backfill.Service {
	return backfill.NewService(jobs, schools, resolver, q, c)
}

func provideWorker(cfg config.Config, q ports.JobQueue, runner *partnerimport.Runner, geocodes *backfill.Service, queued dispatch.QueuedJobs, c clock.Clock) *dispatch.Worker {
	return dispatch.NewWorker(dispatch.Deps{
		Queue:     q,
		Imports:   runner,
		Geocodes:  geocodes,
		Queued:    queued,
		Clock:     c,
		Heartbeat: cfg.Queue.Heartbeat,
	})
}
