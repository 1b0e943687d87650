package metrics

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"track-bot/internal/tracker"
)

// Recorder собирает метрики трекера: длительность init/track, уверенность и сбои
type Recorder struct {
	initLatency  prometheus.Histogram
	trackLatency prometheus.Histogram
	score        prometheus.Histogram
	failures     *prometheus.CounterVec
}

// NewRecorder создаёт метрики и регистрирует их в reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		initLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_init_duration_seconds",
			Help:    "Duration of tracker initialisation on the first frame",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		trackLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_track_duration_seconds",
			Help:    "Duration of a single track step",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_score",
			Help:    "Foreground probability of the selected point",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_failures_total",
			Help: "Failed tracker calls by operation and error kind",
		}, []string{"op", "kind"}),
	}
	reg.MustRegister(r.initLatency, r.trackLatency, r.score, r.failures)
	return r
}

// InitDone реализует tracker.Observer
func (r *Recorder) InitDone(elapsed time.Duration, err error) {
	r.initLatency.Observe(elapsed.Seconds())
	if err != nil {
		r.failures.WithLabelValues("init", errorKind(err)).Inc()
	}
}

// TrackDone реализует tracker.Observer
func (r *Recorder) TrackDone(elapsed time.Duration, score float64, err error) {
	r.trackLatency.Observe(elapsed.Seconds())
	if err != nil {
		r.failures.WithLabelValues("track", errorKind(err)).Inc()
		return
	}
	r.score.Observe(score)
}

// errorKind метка вида ошибки по таксономии трекера
func errorKind(err error) string {
	var (
		ie *tracker.InferenceError
		se *tracker.StateError
		ce *tracker.ConfigError
	)
	switch {
	case errors.As(err, &ie):
		return "inference_" + ie.Op
	case errors.As(err, &se):
		return "state"
	case errors.As(err, &ce):
		return "config"
	case errors.Is(err, tracker.ErrInvalidBox):
		return "invalid_box"
	case errors.Is(err, tracker.ErrEmptyFrame):
		return "empty_frame"
	default:
		return "other"
	}
}

// Handler отдаёт метрики из g в формате Prometheus
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

var _ tracker.Observer = (*Recorder)(nil)
