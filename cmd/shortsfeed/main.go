package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shortsfeed/shortsfeed/internal/database"
	"github.com/shortsfeed/shortsfeed/internal/discovery"
	"github.com/shortsfeed/shortsfeed/internal/feed"
	"github.com/shortsfeed/shortsfeed/internal/geoip"
	"github.com/shortsfeed/shortsfeed/internal/server"
	"github.com/shortsfeed/shortsfeed/internal/session"
	"github.com/shortsfeed/shortsfeed/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	})))

	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:"+port)
	deviceSecret := os.Getenv("DEVICE_SECRET")
	if deviceSecret == "" {
		log.Fatal("DEVICE_SECRET is required")
	}
	prefix := getEnv("VIDEOS_PREFIX", "videos/")
	videosDir := os.Getenv("VIDEOS_DIR")
	videosBaseURL := os.Getenv("VIDEOS_BASE_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		db     *database.DB
		pinger server.Pinger
		kvs    = session.MemoryKVs()
	)
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		var err error
		db, err = database.Connect(ctx, databaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(databaseURL); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		slog.Info("database migrations applied")
		pinger = db
		kvs = session.PostgresKVs(db.Pool)
	} else if stateDir := os.Getenv("STATE_DIR"); stateDir != "" {
		kvs = session.FileKVs(stateDir)
		slog.Info("watch history stored on disk", "dir", stateDir)
	} else {
		slog.Warn("no DATABASE_URL or STATE_DIR, watch history is kept in memory only")
	}

	var store *storage.Storage
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		var err error
		store, err = storage.New(ctx, storage.Config{
			Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:3900"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         bucket,
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		slog.Info("storage bucket ready", "bucket", bucket)
	}

	src := sources{
		prefix:        prefix,
		manifestPath:  getEnv("VIDEO_MANIFEST", "manifest.json"),
		videosDir:     videosDir,
		videosBaseURL: videosBaseURL,
		maxTrials:     int(getEnvInt64("PROBE_MAX_TRIALS", discovery.DefaultMaxTrials)),
	}
	if store != nil {
		src.objects = store
	}
	chain := discovery.Build(discovery.ParseOrder(getEnv("DISCOVERY_ORDER", discovery.DefaultOrder)), src.build())
	catalog := discovery.NewCached(chain)
	catalog.RetryEmpty = getEnvDuration("DISCOVERY_RETRY_EMPTY", discovery.DefaultRetryEmpty)
	slog.Info("discovery configured", "methods", strings.Join(chain.Methods(), ","))

	geo := geoip.Open(os.Getenv("GEOIP_DB"))
	defer func() { _ = geo.Close() }()

	registryCfg := session.Config{
		Discoverer: catalog,
		KV:         kvs,
		IdleTTL:    getEnvDuration("SESSION_IDLE_TTL", session.DefaultIdleTTL),
		Feed: feed.Config{
			RecentWindow: int(getEnvInt64("FEED_RECENT_WINDOW", feed.DefaultRecentWindow)),
			LowWater:     int(getEnvInt64("FEED_LOW_WATER", feed.DefaultLowWater)),
		},
		Country: geo.Country,
	}
	srvCfg := server.Config{
		Catalog:      catalog,
		Pinger:       pinger,
		DeviceSecret: deviceSecret,
		BaseURL:      baseURL,
		VideosDir:    videosDir,
		VideosPrefix: prefix,
		Playback:     playbackFor(src, store),
		MediaOrigins: []string{originOf(videosBaseURL)},
		EnableDocs:   getEnv("API_DOCS_ENABLED", "false") == "true",
	}
	if db != nil {
		registryCfg.Devices = session.NewDevices(db.Pool)
		srvCfg.DB = db.Pool
	}
	if store != nil {
		srvCfg.MediaOrigins = append(srvCfg.MediaOrigins, originOf(getEnv("S3_PUBLIC_ENDPOINT", getEnv("S3_ENDPOINT", ""))))
	}
	registry := session.NewRegistry(registryCfg)
	srvCfg.Registry = registry
	srv := server.New(srvCfg)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	registry.StartEvictionLoop(bgCtx, 0)
	srv.StartBackground(bgCtx)

	// Warm the shared catalog so the first viewer does not pay for discovery.
	go func() {
		refs, err := catalog.Discover(bgCtx)
		if err != nil || len(refs) == 0 {
			slog.Warn("no videos discovered at startup", "error", err)
			return
		}
		slog.Info("catalog discovered", "videos", len(refs))
	}()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("shortsfeed listening", "port", port, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	slog.Info("shutting down")
	bgCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	slog.Info("shutdown complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
