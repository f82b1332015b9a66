package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"quantdash/internal/advisor"
	"quantdash/internal/analysis"
	"quantdash/internal/collector"
	"quantdash/internal/config"
	"quantdash/internal/metrics"
	"quantdash/internal/notifier"
	"quantdash/internal/recorder"
	"quantdash/internal/scheduler"
	"quantdash/internal/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] quantdash starting...")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] read .env: %v", err)
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	if cfg.Log.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		}
		defer lj.Close()
		log.SetOutput(io.MultiWriter(os.Stderr, lj))
		gin.DefaultErrorWriter = io.MultiWriter(os.Stderr, lj)
		log.Printf("[INFO] logging to %s", cfg.Log.File)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Market data
	var fetcher collector.Fetcher
	var prober server.Prober
	if cfg.MarketData.BaseURL != "" {
		fetcher = collector.NewRESTFetcher(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.Proxy, cfg.MarketData.Timeout)
	} else {
		yf := collector.NewYahooFetcher(cfg.Proxy, cfg.MarketData.Timeout, cfg.MarketData.RequestsPerSecond)
		fetcher = yf
		prober = yf
	}
	log.Printf("[INFO] data source: %s", fetcher.Name())
	col := collector.NewCollector(fetcher, cfg.MarketData.Lookback, cfg.MarketData.RSIPeriod, cfg.MarketData.Timeout, m)

	// Commentary cache
	cache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	// Advisor
	var gen advisor.Generator
	var checker advisor.CorpusChecker
	missing := cfg.MissingAI()
	if !cfg.AI.Disabled && cfg.AI.APIKey != "" {
		gen = advisor.NewResponsesClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, cfg.Proxy)
		if cfg.AI.VectorStoreID != "" {
			checker = advisor.NewVectorStoreChecker(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.VectorStoreID, cfg.AI.HealthTimeout)
		}
	}
	switch {
	case cfg.AI.Disabled:
		log.Println("[INFO] AI commentary disabled")
	case len(missing) > 0:
		log.Printf("[WARN] AI commentary not configured, missing: %v", missing)
	}
	adv := advisor.New(gen, checker, cache, advisor.Options{
		VectorStoreID: cfg.AI.VectorStoreID,
		CacheTTL:      cfg.Cache.TTL,
		Timeout:       cfg.AI.Timeout,
		Disabled:      cfg.AI.Disabled,
		Missing:       missing,
	}, m)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	svc := analysis.NewService(col, adv, rec, cfg.Scoring, m, fetcher.Name())

	// Telegram is optional
	var sender scheduler.Sender
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		sender = tn
	}

	var corpus scheduler.CorpusReporter
	if checker != nil {
		corpus = adv
	}
	sched := scheduler.NewScheduler(ctx, svc, corpus, sender, rec, cfg.Schedule.Watchlist)
	if err := sched.RegisterAll(cfg.Schedule.CorpusCheckCron, cfg.Schedule.DigestCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()
	if corpus != nil {
		go sched.CheckCorpus()
	}

	if tn != nil && cfg.Telegram.Polling {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	srv := server.New(server.Options{
		Addr:         cfg.Server.Addr,
		Mode:         cfg.Server.Mode,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, svc, adv, prober, m)

	log.Printf("[INFO] quantdash listening on %s", cfg.Server.Addr)
	if err := srv.Run(ctx); err != nil {
		log.Printf("[ERROR] server: %v", err)
	}
	log.Println("[INFO] quantdash stopped")
}

// openCache returns the configured commentary cache. A Redis backend that
// cannot be reached falls back to the in-process cache.
func openCache(ctx context.Context, cfg *config.Config) (advisor.Cache, func()) {
	if cfg.Cache.Backend == "redis" {
		rc, err := advisor.NewRedisCache(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err == nil {
			log.Printf("[INFO] commentary cache: redis %s", cfg.Cache.RedisAddr)
			return rc, func() { rc.Close() }
		}
		log.Printf("[WARN] redis cache unavailable, using memory: %v", err)
	}
	mc, err := advisor.NewMemoryCache(ctx, cfg.Cache.TTL)
	if err != nil {
		log.Printf("[WARN] init memory cache failed, commentary will not be cached: %v", err)
		return nil, func() {}
	}
	log.Println("[INFO] commentary cache: memory")
	return mc, func() { mc.Close() }
}
