package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCountersInitialized(t *testing.T) {
	Init()
	// A second Init must be a no-op rather than a duplicate registration panic.
	Init()

	counters := map[string]prometheus.Counter{
		"PollCycles":              PollCycles,
		"ScoresSeen":              ScoresSeen,
		"RecordsAnnounced":        RecordsAnnounced,
		"AnnouncementsMerged":     AnnouncementsMerged,
		"AnnouncementsSuperseded": AnnouncementsSuperseded,
		"VideosAttached":          VideosAttached,
		"VideoProbeFailures":      VideoProbeFailures,
		"CatalogRebuilds":         CatalogRebuilds,
		"MetadataLookupsDropped":  MetadataLookupsDropped,
	}
	for name, c := range counters {
		if c == nil {
			t.Errorf("%s counter not initialized", name)
		}
	}
	if CycleDuration == nil {
		t.Error("CycleDuration histogram not initialized")
	}
}

func TestGaugeSettersAreNilSafe(t *testing.T) {
	// Before Init the gauges may be nil; setters must not panic.
	saved := QueueDepthGauge
	QueueDepthGauge = nil
	SetQueueDepth(7)
	QueueDepthGauge = saved

	Init()
	for _, depth := range []int{0, 3, 100} {
		SetQueueDepth(depth)
	}
	for _, n := range []int{0, 1, 25} {
		SetSubscribedChannels(n)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	Init()

	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || *metric.Histogram.SampleCount == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if id := GetCorrelation(ctx); id != "" {
		t.Fatalf("empty context should carry no correlation id, got %q", id)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if id := GetCorrelation(ctx); id != "abc-123" {
		t.Fatalf("correlation id = %q", id)
	}
	if logger := LoggerWithCorr(ctx); logger == nil {
		t.Fatal("LoggerWithCorr returned nil")
	}
}
