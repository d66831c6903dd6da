// Command flatmate-bot runs the household chat bot: it receives Telegram
// updates by long polling or webhook, processes them on a single event
// loop, and posts the scheduled digests and dishwasher reminders.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/flatmate-bot/internal/bot"
	"github.com/tbourn/flatmate-bot/internal/config"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/gateway/telegram"
	httpapi "github.com/tbourn/flatmate-bot/internal/http"
	"github.com/tbourn/flatmate-bot/internal/http/handlers"
	"github.com/tbourn/flatmate-bot/internal/observability"
	"github.com/tbourn/flatmate-bot/internal/repo"
	"github.com/tbourn/flatmate-bot/internal/scheduler"
	"github.com/tbourn/flatmate-bot/internal/services"
	"github.com/tbourn/flatmate-bot/internal/session"
	"github.com/tbourn/flatmate-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	jobPurgeUpdates  = "purge-updates"
	purgeUpdatesSpec = "17 * * * *"
	shutdownTimeout  = 15 * time.Second
)

func main() {
	dotenvErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flatmate-bot: %v\n", err)
		os.Exit(2)
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	logger := sysutil.NewLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName)
	log.Logger = logger
	if dotenvErr != nil {
		logger.Warn().Err(dotenvErr).Msg("dotenv not loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("flatmate-bot stopped")
	}
	logger.Info().Msg("flatmate-bot exited")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str("version", version).
		Str("transport", cfg.Telegram.Transport).
		Str("db_driver", cfg.DB.Driver).
		Str("session_store", cfg.Session.Store).
		Str("timezone", cfg.Household.Location.String()).
		Msg("starting flatmate-bot")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, logger)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage
	db, err := repo.Open(repo.Options{
		Driver:  cfg.DB.Driver,
		Path:    cfg.DB.Path,
		DSN:     cfg.DB.URL,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Msg("database ready")

	// Conversation state
	store, closeStore, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()
	policy, err := session.ParsePolicy(cfg.Session.Policy)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, policy)

	// Event loop and scheduler
	clock := clockwork.NewRealClock()
	loc := cfg.Household.Location
	loop := bot.NewLoop(cfg.QueueSize, cfg.TaskTimeout, logger)
	sched := scheduler.New(scheduler.Options{
		Clock:    clock,
		Location: loc,
		Executor: loop,
		Logger:   logger.With().Str("component", "scheduler").Logger(),
	})

	// Services
	honesty := &services.Honesty{DB: db, Clock: clock, Loc: loc, Limit: cfg.Household.HonestyLimit}
	dishwasher := &services.Dishwasher{
		DB:        db,
		Clock:     clock,
		Cycle:     cfg.Household.DishwasherCycle,
		Honesty:   honesty,
		Reminders: sched,
		Log:       logger.With().Str("component", "dishwasher").Logger(),
	}
	chores := &services.Chores{
		DB:            db,
		Clock:         clock,
		Honesty:       honesty,
		SilenceWindow: cfg.Household.SilenceWindow,
		SilenceLimit:  cfg.Household.SilenceLimit,
	}
	parties := &services.Parties{
		DB:        db,
		Clock:     clock,
		Loc:       loc,
		GuestsMin: cfg.Household.GuestsMin,
		GuestsMax: cfg.Household.GuestsMax,
	}

	// Telegram
	tg, err := telegram.NewClient(telegram.Options{
		Token:     cfg.Telegram.Token,
		BaseURL:   cfg.Telegram.APIURL,
		SendRPS:   cfg.Telegram.SendRPS,
		SendBurst: cfg.Telegram.SendBurst,
		Logger:    logger.With().Str("component", "telegram").Logger(),
	})
	if err != nil {
		return err
	}

	b := bot.New(bot.Config{TargetChatID: cfg.Telegram.TargetChatID, Location: loc}, bot.Deps{
		Gateway:    tg,
		Users:      &services.Users{DB: db},
		Dishwasher: dishwasher,
		Chores:     chores,
		Parties:    parties,
		Rating:     &services.Rating{DB: db},
		Sessions:   sessions,
		Logger:     logger,
	})
	if err := b.RegisterJobs(sched, cfg.Household.DigestSpec); err != nil {
		return fmt.Errorf("register digests: %w", err)
	}
	if err := sched.AddRecurring(jobPurgeUpdates, purgeUpdatesSpec, func(ctx context.Context) error {
		n, err := repo.PurgeExpiredUpdates(ctx, db, clock.Now())
		if err == nil && n > 0 {
			logger.Debug().Int64("purged", n).Msg("expired update claims purged")
		}
		return err
	}); err != nil {
		return fmt.Errorf("register purge: %w", err)
	}
	if _, err := dishwasher.Rearm(ctx); err != nil {
		return fmt.Errorf("rearm dishwasher: %w", err)
	}

	submit := func(ctx context.Context, ev gateway.Event) {
		if err := loop.Submit(ctx, "update", func(ctx context.Context) { b.Handle(ctx, ev) }); err != nil &&
			!errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("update dropped")
		}
	}

	// HTTP: probes and metrics always, the webhook only in webhook mode.
	deps := httpapi.Deps{Health: &handlers.Health{DB: db}}
	if cfg.Telegram.Transport == config.TransportWebhook {
		deps.Webhook = &handlers.Webhook{
			DB:       db,
			Loop:     loop,
			Handle:   b.Handle,
			Clock:    clock,
			DedupTTL: cfg.UpdateDedupTTL,
		}
	}
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, deps, cfg)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer stopLoop()
	go loop.Run(loopCtx)
	sched.Start(loopCtx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	switch cfg.Telegram.Transport {
	case config.TransportWebhook:
		g.Go(func() error {
			if err := tg.SetWebhook(gctx, cfg.WebhookEndpoint(), cfg.Telegram.WebhookSecret); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			logger.Info().Str("path", cfg.Telegram.WebhookPath).Msg("webhook registered")
			return nil
		})
	default:
		poller := &telegram.Poller{
			Client:  tg,
			Timeout: cfg.Telegram.PollTimeout,
			Log:     logger.With().Str("component", "poller").Logger(),
			Handle:  submit,
		}
		g.Go(func() error {
			// getUpdates is refused while a webhook is set.
			if err := tg.DeleteWebhook(gctx, false); err != nil {
				return fmt.Errorf("delete webhook: %w", err)
			}
			return poller.Run(gctx)
		})
	}

	err = g.Wait()

	// Stop the jobs first so nothing is queued behind the loop's back.
	sched.Stop()
	stopLoop()
	select {
	case <-loop.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("event loop did not stop in time")
	}
	return err
}

// newSessionStore builds the configured flow store and its closer.
func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	if cfg.Store != "redis" {
		return session.NewMemoryStore(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return session.NewRedisStore(rdb, "flatmate:flow", cfg.TTL), func() { _ = rdb.Close() }, nil
}
