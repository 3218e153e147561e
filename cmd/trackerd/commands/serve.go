package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dlstracker-backend/internal/api"
	"dlstracker-backend/internal/authprovider"
	"dlstracker-backend/internal/components/chrono"
	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/resultcache"
	"dlstracker-backend/internal/tickets"
	"dlstracker-backend/internal/tracker"
	"dlstracker-backend/lib/serviceutil"
	libtelemetry "dlstracker-backend/lib/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var configPath string

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "config.json5", "The configuration file to read.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--config <path/to/config.json5>]",
	Short: "Starts the http api.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(serviceutil.SignalContext())
		defer cancel()

		libtelemetry.InitSlog(verbose)
		otel, err := libtelemetry.SetupFromEnv(ctx, "trackerd")
		if err != nil {
			serviceutil.Fatal("setup telemetry", err)
		}
		defer func() {
			err := otel.Shutdown(context.Background())
			if err != nil {
				slog.Warn("shutdown telemetry", "err", err)
			}
		}()

		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("read config", err)
		}

		metrics, err := telemetry.NewMetricsAPI()
		if err != nil {
			serviceutil.Fatal("init component metrics", err)
		}
		tel := telemetry.Tee{telemetry.NewSlogAPI(nil), metrics}
		cron := chrono.NewStandardCron(tel)
		defer func() {
			<-cron.Stop().Done()
		}()

		svc, err := initService(ctx, cfg, tel, cron)
		if err != nil {
			serviceutil.Fatal("init service", err)
		}
		libtelemetry.InstrumentPerfStats(ctx, time.Second*15, svc.gauges()...)

		err = serviceutil.StartHttpServer(
			ctx,
			cfg.Http.Port,
			otelhttp.NewHandler(svc.server.Handler(), "trackerd.http"),
		)
		if err != nil {
			serviceutil.Fatal("serve http", err)
		}
	},
}

func initCache(ctx context.Context, cfg CacheConfig, scraper tracker.Scraper, tel telemetry.API, cron chrono.CronAPI) (*resultcache.Cache, error) {
	options := []resultcache.Option{
		resultcache.WithFreshness(seconds(cfg.FreshnessSeconds)),
		resultcache.WithMaxConcurrent(cfg.maxConcurrent()),
		resultcache.WithBackgroundContext(ctx),
	}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		err = client.Ping(ctx).Err()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		slog.Info("using redis result store", "addr", redisOpts.Addr)
		ttl := time.Duration(cfg.RedisTTLHours) * time.Hour
		options = append(options, resultcache.WithStore(resultcache.NewRedisStore(client, ttl)))
	}

	cache := resultcache.NewCache(scraper, tel, options...)
	if schedule := cfg.sweepSchedule(); schedule != "" {
		retention := time.Duration(cfg.RetentionHours) * time.Hour
		err := cache.StartSweeper(cron, schedule, retention)
		if err != nil {
			return nil, fmt.Errorf("start sweeper: %w", err)
		}
	}
	return cache, nil
}

type service struct {
	cache   *resultcache.Cache
	tickets *tickets.Store
	server  *api.Server
}

func (s service) gauges() []libtelemetry.Gauge {
	return []libtelemetry.Gauge{
		{
			Name: "cached_teams",
			Read: func(ctx context.Context) (int64, error) {
				n, err := s.cache.Count(ctx)
				return int64(n), err
			},
		},
		{
			Name: "inflight_scrapes",
			Read: func(ctx context.Context) (int64, error) {
				return int64(s.cache.InFlight()), nil
			},
		},
		{
			Name: "active_matches",
			Read: func(ctx context.Context) (int64, error) {
				return int64(s.tickets.Count()), nil
			},
		},
	}
}

func initService(ctx context.Context, cfg Config, tel telemetry.API, cron chrono.CronAPI) (service, error) {
	scraper := tracker.NewScraper(
		tracker.NewChromeBrowserFactory(cfg.Tracker.chrome()),
		tel,
		tracker.WithOptions(cfg.Tracker.options()),
		tracker.WithSessionTimeout(seconds(cfg.Tracker.SessionTimeoutSeconds)),
	)
	cache, err := initCache(ctx, cfg.Cache, scraper, tel, cron)
	if err != nil {
		return service{}, err
	}

	options := []api.Option{
		api.WithCorsOrigins(cfg.Http.CorsOrigins),
		api.WithSecureCookies(cfg.Http.SecureCookies),
	}
	if cfg.Auth.BaseURL != "" {
		auth, err := authprovider.NewClient(cfg.Auth, tel)
		if err != nil {
			return service{}, fmt.Errorf("init auth provider: %w", err)
		}
		options = append(options, api.WithAuthProvider(auth))
	} else {
		slog.Info("auth provider not configured, account routes disabled")
	}

	ticketStore := tickets.NewStore(tel)
	return service{
		cache:   cache,
		tickets: ticketStore,
		server:  api.NewServer(cache, ticketStore, tel, options...),
	}, nil
}
