// cmd/bot/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tunepilot/internal/config"
	"tunepilot/internal/health"
	"tunepilot/internal/logger"
	"tunepilot/internal/lyrics"
	"tunepilot/internal/music/engine"
	"tunepilot/internal/music/queue"
	"tunepilot/internal/music/resolver"
	"tunepilot/internal/music/sources"
	"tunepilot/internal/music/voice"
	"tunepilot/internal/scrobble"
	"tunepilot/internal/storage"
	"tunepilot/internal/telegram"
	"tunepilot/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPath)
	defer log.Sync() //nolint:errcheck

	log.Info("starting",
		zap.String("app", version.AppName),
		zap.String("version", version.AppVersion))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	// Source order matters: URL inputs are matched in registration order and
	// free text falls through to YouTube search.
	yt := sources.NewYouTube()
	srcs := []sources.Source{yt}
	if cfg.SpotifyEnabled() {
		srcs = append(srcs, sources.NewSpotify(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret, yt))
	} else {
		log.Info("spotify source disabled, no credentials")
	}
	srcs = append(srcs, sources.NewGeneric())
	res := resolver.New(srcs...)

	bridge := voice.NewBridge(cfg.VoiceBridgeURL, log)

	var scrobbler engine.Scrobbler
	if cfg.LastFMEnabled() {
		scrobbler = scrobble.New(cfg.LastFMAPIKey, cfg.LastFMAPISecret, cfg.LastFMSessionKey, log)
	}

	eng := engine.New(engine.Params{
		Log:            log,
		Queue:          queue.NewStore(cfg.MaxQueueSize, cfg.MaxHistory),
		Voice:          bridge,
		Resolver:       res,
		Persist:        store,
		Scrobbler:      scrobbler,
		ResolveTimeout: cfg.ResolveTimeout,
		VoiceTimeout:   cfg.VoiceTimeout,
	})
	bridge.OnStreamEnd(eng.OnStreamEnd)

	if err := eng.LoadState(); err != nil {
		// A corrupt snapshot should not keep the bot down.
		log.Warn("state restore failed, starting fresh", zap.Error(err))
	}

	var lyr *lyrics.Client
	if cfg.GeniusEnabled() {
		lyr = lyrics.New(cfg.GeniusAccessToken, log)
	}

	frontend, err := telegram.New(cfg.BotToken, eng, lyr, log)
	if err != nil {
		return fmt.Errorf("init telegram: %w", err)
	}

	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("voice bridge stopped", zap.Error(err))
		}
	}()

	readyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := bridge.WaitReady(readyCtx); err != nil {
		log.Warn("voice bridge not reachable yet, continuing", zap.Error(err))
	}
	cancel()

	go eng.RunSnapshotLoop(ctx, cfg.SnapshotInterval)
	if cfg.IdleTTL > 0 {
		go eng.RunIdleSweep(ctx, cfg.IdleTTL)
	}
	go health.RunServer(ctx, cfg.HealthAddr, eng, log)

	frontend.Run(ctx)

	log.Info("shutting down")
	if err := eng.SaveState(); err != nil {
		log.Warn("final state save failed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Warn("storage close failed", zap.Error(err))
	}
	return nil
}
