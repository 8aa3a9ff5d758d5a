package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/robet-bot-poc/internal/chaina"
	"github.com/radieske/robet-bot-poc/internal/chainb"
	"github.com/radieske/robet-bot-poc/internal/notify"
	"github.com/radieske/robet-bot-poc/internal/reconciler"
	"github.com/radieske/robet-bot-poc/internal/reconciler/repo"
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

	// Conexão com o Postgres dos registros de aposta
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	store := repo.NewPostgres(pg)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal("ensure schema", zap.Error(err))
		}
		cancel()
	}

	// Clientes externos: Twitter, programa Solana e bridge CosmWasm
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

	chainA, err := chaina.New(log, cfg.SolanaRPCURL, cfg.SolanaProgramID, cfg.AdminPrivateKey)
	if err != nil {
		log.Fatal("chain A client", zap.Error(err))
	}
	chainB := chainb.New(cfg.ChainBBaseURL)

	// Writers dos eventos de ciclo de vida
	marketEvents := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketCreated)
	defer marketEvents.Close()
	notifyEvents := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetNotified)
	defer notifyEvents.Close()

	// Métricas Prometheus do pipeline de reconciliação
	ticks := prometheus.NewCounter(prometheus.CounterOpts{Name: "recon_ticks_total", Help: "ticks executados"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "recon_ticks_skipped_total", Help: "ticks pulados por overlap"})
	advanced := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "recon_stage_advanced_total", Help: "estágios concluídos"}, []string{"stage"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "recon_stage_failed_total", Help: "falhas por estágio"}, []string{"stage"})
	prometheus.MustRegister(ticks, skipped, advanced, failed)

	engine := &reconciler.Engine{
		Log:    log,
		Store:  store,
		ChainA: chainA,
		ChainB: chainB,
		Notifier: &notify.TwitterNotifier{
			Log:    log,
			Poster: tw,
			Store:  store,
		},

		MarketEvents: marketEvents,
		NotifyEvents: notifyEvents,

		BlinkBaseURL:   cfg.BlinkBaseURL,
		MarketDuration: cfg.MarketDuration,
		CallTimeout:    cfg.CallTimeout,

		OnAdvanced: func(stage string) { advanced.WithLabelValues(stage).Inc() },
		OnFailed:   func(stage string) { failed.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := &reconciler.Scheduler{
		Log:      log,
		Interval: cfg.TickInterval,
		Tick: func(ctx context.Context) {
			ticks.Inc()
			engine.RunTick(ctx)
		},
		OnSkip: skipped.Inc,
	}
	sched.Start(ctx)

	log.Info("reconciler-worker started",
		zap.Duration("tick_interval", cfg.TickInterval),
		zap.String("chainb", cfg.ChainBBaseURL),
	)

	<-ctx.Done()
	log.Info("shutting down, waiting in-flight tick")
	sched.Stop()
	log.Info("reconciler-worker stopped")
}
