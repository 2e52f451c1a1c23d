package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TiltifyBot/api"
	"TiltifyBot/config"
	"TiltifyBot/db"
	"TiltifyBot/internal/discord"
	"TiltifyBot/internal/logger"
	"TiltifyBot/internal/telemetry"
	"TiltifyBot/scheduler"
	"TiltifyBot/tiltify"
	"TiltifyBot/tracker"
	"TiltifyBot/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config failed: ", err)
	}

	zl := logger.New(cfg.LogLevel)
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("bot stopped", zap.Error(err))
	}
	zl.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	metrics, shutdownMetrics, err := telemetry.Init(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			zl.Warn("metrics shutdown failed", zap.Error(err))
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	store := db.NewStore(conn)
	zl.Info("connected to database")

	cache, err := utils.NewNameCache(ctx, cfg.RedisURL)
	if err != nil {
		zl.Warn("redis unavailable, using in-memory name cache", zap.Error(err))
		cache = utils.NewMemoryCache()
	}
	if c, ok := cache.(io.Closer); ok {
		defer c.Close()
	}

	client := tiltify.NewClient(tiltify.Options{
		BaseURL:    cfg.TiltifyBaseURL,
		Token:      cfg.TiltifyToken,
		RateLimit:  cfg.TiltifyRateLimit,
		MaxRetries: cfg.TiltifyMaxRetries,
		Timeout:    cfg.TiltifyTimeout,
	}, zl)

	bot, err := discord.Open(cfg.DiscordToken, cfg.DiscordAppID, zl)
	if err != nil {
		return err
	}

	engine := tracker.New(store, client, tracker.NewBuilder(client, cache, zl), bot, tracker.Options{
		CatchUp:     cfg.DonationCatchUp,
		Concurrency: cfg.PollConcurrency,
		Metrics:     metrics,
	}, zl)
	sched := scheduler.New(engine, store, bot, scheduler.Options{
		PollInterval:    cfg.DonationRefresh,
		RefreshInterval: config.FullRefreshInterval,
		Metrics:         metrics,
	}, zl)
	dispatcher := api.NewDispatcher(store, engine, client, sched, zl)

	ln, err := listen(ctx, cfg.Port, cfg.NgrokAuthToken, zl)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return bot.Serve(ctx, dispatcher) })
	g.Go(func() error { return serve(ctx, ln, SetupRouter(sched)) })
	return g.Wait()
}
