package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"track-bot/internal/tracker"
)

const (
	ExtractorNative = "native"
	ExtractorGoCV   = "gocv"
)

type Config struct {
	TelegramToken string
	InferenceAddr string // если пусто, встроенный корреляционный бэкенд
	Extractor     string // native или gocv
	TrackDBPath   string // если пусто, хранение в памяти
	MetricsAddr   string // если пусто, /metrics не поднимается
	LogLevel      zapcore.Level
	Tracker       tracker.Config
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		InferenceAddr: os.Getenv("INFERENCE_ADDR"),
		Extractor:     strings.ToLower(getenv("EXTRACTOR", ExtractorNative)),
		TrackDBPath:   os.Getenv("TRACK_DB_PATH"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		Tracker:       tracker.DefaultConfig(),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, errors.Wrap(err, "LOG_LEVEL")
	}
	if cfg.Extractor != ExtractorNative && cfg.Extractor != ExtractorGoCV {
		return nil, errors.Errorf("EXTRACTOR must be %q or %q, got %q", ExtractorNative, ExtractorGoCV, cfg.Extractor)
	}

	t := &cfg.Tracker
	ints := map[string]*int{
		"TRACKER_EXEMPLAR_SIZE": &t.ExemplarSize,
		"TRACKER_INSTANCE_SIZE": &t.InstanceSize,
		"TRACKER_STRIDE":        &t.Stride,
		"TRACKER_BASE_SIZE":     &t.BaseSize,
	}
	for key, dst := range ints {
		if err := envInt(key, dst); err != nil {
			return nil, err
		}
	}
	floats := map[string]*float64{
		"TRACKER_CONTEXT_AMOUNT":   &t.ContextAmount,
		"TRACKER_PENALTY_K":        &t.PenaltyK,
		"TRACKER_WINDOW_INFLUENCE": &t.WindowInfluence,
		"TRACKER_LR":               &t.LR,
		"TRACKER_MIN_SIZE":         &t.MinSize,
	}
	for key, dst := range floats {
		if err := envFloat(key, dst); err != nil {
			return nil, err
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	*dst = n
	return nil
}

func envFloat(key string, dst *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	*dst = f
	return nil
}
