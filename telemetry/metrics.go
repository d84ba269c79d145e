// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles              prometheus.Counter
	ScoresSeen              prometheus.Counter
	RecordsAnnounced        prometheus.Counter
	AnnouncementsMerged     prometheus.Counter
	AnnouncementsSuperseded prometheus.Counter
	VideosAttached          prometheus.Counter
	VideoProbeFailures      prometheus.Counter
	CatalogRebuilds         prometheus.Counter
	MetadataLookupsDropped  prometheus.Counter

	// Histograms (seconds)
	CycleDuration prometheus.Observer

	// Gauges
	QueueDepthGauge         prometheus.Gauge
	SubscribedChannelsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_poll_cycles_total", Help: "Number of poll cycles run"})
		ScoresSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_scores_seen_total", Help: "Number of score events received from the scoring server"})
		RecordsAnnounced = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_records_announced_total", Help: "Number of new record announcements posted"})
		AnnouncementsMerged = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_announcements_merged_total", Help: "Number of records merged into an open announcement"})
		AnnouncementsSuperseded = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_announcements_superseded_total", Help: "Number of queued announcements superseded before video enrichment"})
		VideosAttached = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_videos_attached_total", Help: "Number of announcements enriched with a replay video link"})
		VideoProbeFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_video_probe_failures_total", Help: "Number of replay video probes that failed with a transport error"})
		CatalogRebuilds = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_catalog_rebuilds_total", Help: "Number of full metadata catalog rebuilds"})
		MetadataLookupsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "herald_metadata_lookups_dropped_total", Help: "Number of events dropped because metadata stayed unresolved after a rebuild"})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "herald_poll_cycle_duration_seconds", Help: "Poll cycle duration seconds", Buckets: prometheus.DefBuckets})
		QueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_video_queue_depth", Help: "Current number of announcements awaiting a replay video"})
		SubscribedChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "herald_subscribed_channels", Help: "Current number of subscribed channels"})
	})
}

// SetQueueDepth records the current video queue length.
func SetQueueDepth(n int) {
	if QueueDepthGauge != nil {
		QueueDepthGauge.Set(float64(n))
	}
}

// SetSubscribedChannels records the current subscription count.
func SetSubscribedChannels(n int) {
	if SubscribedChannelsGauge != nil {
		SubscribedChannelsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
