package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/ingest"
	"github.com/radieske/robet-bot-poc/internal/reconciler"
	"github.com/radieske/robet-bot-poc/internal/reconciler/repo"
	sharedcache "github.com/radieske/robet-bot-poc/internal/shared/cache"
	"github.com/radieske/robet-bot-poc/internal/shared/config"
	"github.com/radieske/robet-bot-poc/internal/shared/db"
	"github.com/radieske/robet-bot-poc/internal/shared/kafka"
	"github.com/radieske/robet-bot-poc/internal/shared/logger"
	"github.com/radieske/robet-bot-poc/internal/shared/metrics"
	"github.com/radieske/robet-bot-poc/internal/twitter"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres e Redis (cursor da busca)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	store := repo.NewPostgres(pg)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal("ensure schema", zap.Error(err))
		}
		cancel()
	}

	tw := twitter.New(cfg.TwitterBaseURL, twitter.Credentials{
		BearerToken:  cfg.TwitterBearerToken,
		APIKey:       cfg.TwitterAPIKey,
		APISecret:    cfg.TwitterAPISecret,
		AccessToken:  cfg.TwitterAccessToken,
		AccessSecret: cfg.TwitterAccessSecret,
	})

	// Credencial inválida é erro de startup: o worker não agenda nenhum tick
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		user, err := tw.Me(ctx)
		cancel()
		if err != nil {
			log.Fatal("twitter auth", zap.Error(err))
		}
		log.Info("twitter client authenticated", zap.String("username", user))
	}

	pendingEvents := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPending)
	defer pendingEvents.Close()

	// Métricas Prometheus da ingestão de menções
	ticks := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_ticks_total", Help: "passadas de ingestão"})
	skippedTicks := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_ticks_skipped_total", Help: "passadas puladas por overlap"})
	matched := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_mentions_matched_total", Help: "menções que casaram com a gramática"})
	stored := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_records_stored_total", Help: "registros novos inseridos"})
	noise := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_mentions_skipped_total", Help: "menções descartadas (ruído ou repetidas)"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_failures_total", Help: "passadas que falharam"})
	prometheus.MustRegister(ticks, skippedTicks, matched, stored, noise, failures)

	ing := &ingest.Ingestor{
		Log:    log,
		Source: tw,
		Store:  store,
		Cursor: ingest.NewRedisCursor(redisClient),

		Query:   cfg.MentionQuery,
		Keyword: cfg.MentionKeyword,
		Events:  pendingEvents,

		OnMatched: matched.Inc,
		OnStored:  stored.Inc,
		OnSkipped: noise.Inc,
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := &reconciler.Scheduler{
		Log:      log,
		Interval: cfg.TickInterval,
		Tick: func(ctx context.Context) {
			ticks.Inc()
			n, err := ing.Ingest(ctx)
			if err != nil {
				log.Warn("ingest pass failed", zap.Error(err))
				failures.Inc()
				return
			}
			if n > 0 {
				log.Info("ingest pass done", zap.Int("stored", n))
			}
		},
		OnSkip: skippedTicks.Inc,
	}
	sched.Start(ctx)

	log.Info("mention-ingest-worker started",
		zap.String("query", cfg.MentionQuery),
		zap.Duration("tick_interval", cfg.TickInterval),
	)

	<-ctx.Done()
	log.Info("shutting down, waiting in-flight pass")
	sched.Stop()
	log.Info("mention-ingest-worker stopped")
}
