package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/textcluster/pkg/cluster"
)

const meterName = "github.com/thebtf/textcluster/internal/pipeline"

type metrics struct {
	stageDuration metric.Float64Histogram
	runs          metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)

	stageDuration, err := meter.Float64Histogram(
		"textcluster.stage.duration",
		metric.WithDescription("Wall time of one pipeline stage"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create stage duration histogram")
	}
	runs, err := meter.Int64Counter(
		"textcluster.runs",
		metric.WithDescription("Clustering requests by algorithm and outcome"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create run counter")
	}
	return &metrics{stageDuration: stageDuration, runs: runs}
}

func (m *metrics) stage(ctx context.Context, name, outcome string, elapsed time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("stage", name), attribute.String("outcome", outcome)))
}

func (m *metrics) run(ctx context.Context, alg cluster.Algorithm, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Add(ctx, 1,
		metric.WithAttributes(attribute.String("algorithm", string(alg)), attribute.String("outcome", outcome)))
}
