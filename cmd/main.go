package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"track-bot/config"
	telegram "track-bot/internal/api"
	app "track-bot/internal/application"
	"track-bot/internal/container"
	"track-bot/internal/domain/port"
	"track-bot/internal/infrastructure/inference"
	"track-bot/internal/infrastructure/metrics"
	"track-bot/internal/infrastructure/report"
	"track-bot/internal/infrastructure/storage"
	"track-bot/internal/infrastructure/vision"
	"track-bot/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if cfg.TelegramToken == "" {
		logger.Fatal("TELEGRAM_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Бэкенд вывода: удалённый по gRPC или встроенная корреляция
	var backend port.InferenceBackend
	if cfg.InferenceAddr != "" {
		client, err := inference.DialGRPC(cfg.InferenceAddr, logger.Named("inference"))
		if err != nil {
			logger.Fatal("connect inference server", zap.Error(err))
		}
		defer client.Close()
		backend = client
		logger.Info("using remote inference", zap.String("addr", cfg.InferenceAddr))
	} else {
		corr, err := inference.NewCorrelation(cfg.Tracker)
		if err != nil {
			logger.Fatal("create correlation backend", zap.Error(err))
		}
		backend = corr
		logger.Info("using built-in correlation backend")
	}

	// Хранилище результатов
	var tracks port.TrackStore = storage.NewMemoryTrackStore()
	if cfg.TrackDBPath != "" {
		store, err := storage.NewSQLiteTrackStore(cfg.TrackDBPath, logger.Named("store"))
		if err != nil {
			logger.Fatal("open track store", zap.Error(err))
		}
		defer store.Close()
		tracks = store
	}

	opts := []tracker.Option{tracker.WithLogger(logger.Named("tracker"))}
	var highlighter port.TrackHighlighter = vision.NewNativeHighlighter()
	if cfg.Extractor == config.ExtractorGoCV {
		if !vision.GoCVEnabled() {
			logger.Fatal("EXTRACTOR=gocv requires a build with -tags gocv")
		}
		opts = append(opts, tracker.WithExtractor(vision.NewGoCVExtractor()))
		highlighter = vision.NewGoCVHighlighter()
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, tracker.WithObserver(metrics.NewRecorder(reg)))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}

	appContainer := container.New(container.Deps{
		Users:       storage.NewMemoryUserRepository(),
		Tracks:      tracks,
		Highlighter: highlighter,
		Renderer:    report.Renderer{},
		NewTracker: func() (*tracker.Tracker, error) {
			return tracker.New(backend, backend, cfg.Tracker, opts...)
		},
		Decode: app.FrameDecoder(vision.DecodeFrame),
		Logger: logger,
	})

	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer, logger.Named("bot"))
	if err != nil {
		logger.Fatal("create bot", zap.Error(err))
	}

	logger.Info("bot is running")
	if err := bot.Run(ctx); err != nil {
		logger.Error("bot stopped", zap.Error(err))
	}
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
