package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nearbybot/internal/api"
	"nearbybot/pkg/chat"
	"nearbybot/pkg/chat/telegram"
	"nearbybot/pkg/config"
	"nearbybot/pkg/db"
	"nearbybot/pkg/flow"
	"nearbybot/pkg/geocode"
	"nearbybot/pkg/logging"
	"nearbybot/pkg/pdfexport"
	"nearbybot/pkg/render"
	"nearbybot/pkg/request"
	"nearbybot/pkg/session"
	"nearbybot/pkg/store"
	"nearbybot/pkg/tracker"
	"nearbybot/pkg/version"
)

var (
	configPath = flag.String("config", "configs/nearbybot.yaml", "Path to config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Local development keeps secrets in .env; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("no bot token configured (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("NearbyBot Started", "version", version.Version)

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.PruneCache(time.Duration(cfg.DB.CacheTTL)); err != nil {
		slog.Warn("Cache pruning failed", "error", err)
	}

	st := store.NewSQLiteStore(dbConn)
	tr := tracker.New()
	reqClient := request.New(st, tr, request.ClientConfig{
		Retries:   cfg.Request.Retries,
		Timeout:   time.Duration(cfg.Request.Timeout),
		BaseDelay: time.Duration(cfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(cfg.Request.Backoff.MaxDelay),
	})
	geocoder := geocode.NewClient(reqClient, tr, cfg.OneMap.Endpoint, cfg.OneMap.Token,
		slog.With("component", "geocode"))
	sessions := session.NewStore(time.Duration(cfg.Flows.SessionTTL))

	adapter, err := telegram.New(cfg.Telegram.Token, time.Duration(cfg.Telegram.PollTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	dispatcher := flow.New(flow.Options{
		Centres:     st,
		Activities:  st,
		Geocoder:    geocoder,
		Sessions:    sessions,
		Sender:      adapter,
		Formatter:   render.New(cfg.Flows.ChunkLimit, cfg.Flows.DescriptionLimit),
		Exporter:    pdfexport.New(),
		Flows:       cfg.Flows,
		Newsletters: cfg.Newsletters,
		Logger:      slog.With("component", "flow"),
	})

	srv := api.NewServer(cfg.Server.Addr, api.NewStatsHandler(tr, sessions))
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Starting ops server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	// Events are independent per chat; handling them concurrently keeps one
	// slow geocoding call from stalling everyone else. The adapter closes the
	// channel on cancel, so pumpDone marks both the pump and every in-flight
	// handler as finished.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		drainEvents(ctx, adapter.Events(ctx), dispatcher.HandleEvent)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	case err := <-serverErrors:
		return fmt.Errorf("ops server failed: %w", err)
	case <-ctx.Done():
	}

	cancel()
	<-pumpDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// drainEvents dispatches each event in its own goroutine and returns once the
// channel is closed and every handler has returned. The WaitGroup is only
// touched from this goroutine's loop, so no Add can race the final Wait.
func drainEvents(ctx context.Context, events <-chan chat.Event, handle func(context.Context, chat.Event)) {
	var wg sync.WaitGroup
	for ev := range events {
		ev := ev
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle(ctx, ev)
		}()
	}
	wg.Wait()
}
