package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/vitos/ladder_bot/internal/config"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/infrastructure/exchange"
	"github.com/vitos/ladder_bot/internal/infrastructure/logger"
	"github.com/vitos/ladder_bot/internal/infrastructure/notify"
	"github.com/vitos/ladder_bot/internal/infrastructure/storage"
	"github.com/vitos/ladder_bot/internal/metrics"
	"github.com/vitos/ladder_bot/internal/usecase"
	"github.com/vitos/ladder_bot/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Init Storage. The trade log always lives in SQLite.
	store, err := storage.NewSQLiteStore(cfg.Persistence.SQLitePath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	var repo domain.StateRepository = store
	if cfg.Persistence.Backend == "redis" {
		redisStore, err := storage.NewRedisStateStore(ctx, storage.RedisConfig{
			Addr:     cfg.Persistence.Redis.Addr,
			Password: cfg.Persistence.Redis.Password,
			DB:       cfg.Persistence.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to init redis", zap.Error(err))
		}
		defer redisStore.Close()
		repo = redisStore
	}

	// 4. Init Exchange (Bybit)
	bybitAdapter := exchange.NewBybitAdapter(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.RESTEndpoint)
	trader := usecase.NewRetryingTransport(bybitAdapter, cfg.Retry, log)

	var notifier domain.Notifier = notify.NewLogNotifier(log)
	if cfg.Notify.TelegramToken != "" {
		notifier = notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, "")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// 5. Init Controllers
	opts := usecase.ControllerOptions{
		Interval:          cfg.Strategy.Interval,
		CandleLimit:       cfg.Strategy.CandleLimit,
		EvaluationTimeout: cfg.Strategy.EvaluationTimeout,
	}
	controllers := make([]*usecase.PositionController, 0, len(cfg.Symbols))
	for _, sc := range cfg.Symbols {
		controllers = append(controllers, usecase.NewPositionController(sc, opts, usecase.ControllerDeps{
			Market:   bybitAdapter,
			Trader:   trader,
			Repo:     repo,
			TradeLog: store,
			Notifier: notifier,
			Leverage: bybitAdapter,
			Signal: usecase.NewBreakoutSignal(cfg.Strategy.ADXPeriod, cfg.Strategy.ADXThreshold,
				cfg.Strategy.BBPeriod, sc.BBMultiplier, sc.ExitLegs),
			Metrics: m,
			Logger:  log,
		}))
	}
	svc := usecase.NewControllerService(log, controllers...)

	if err := svc.Initialize(ctx); err != nil {
		log.Fatal("Failed to initialize controllers", zap.Error(err))
	}
	svc.Start(ctx)

	// 6. Fill notifications
	stream := exchange.NewBybitOrderStream(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.WSEndpoint, log)
	stream.OnFill(svc.DispatchFill)

	// 7. Scheduler
	scheduler := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(log)))),
	)
	if _, err := scheduler.AddFunc(cfg.Strategy.Schedule, func() {
		log.Info("Scheduled evaluation", zap.Strings("symbols", svc.Symbols()))
		svc.EvaluateAll(ctx)
	}); err != nil {
		log.Fatal("Failed to schedule evaluation", zap.Error(err))
	}

	// 8. Init Web Server
	server := web.NewServer(cfg.Server.Port, svc, store, reg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream.Run(gctx)
	})
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Bot stopped with error", zap.Error(err))
	}
}
