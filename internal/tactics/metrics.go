package tactics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/hddf2/pilot/internal/tactics"

type metrics struct {
	ticks        metric.Int64Counter
	transitions  metric.Int64Counter
	launches     metric.Int64Counter
	expired      metric.Int64Counter
	evadeTicks   metric.Int64Counter
	tickDuration metric.Float64Histogram
}

func newMetrics(m metric.Meter) (*metrics, error) {
	var (
		out metrics
		err error
	)

	if out.ticks, err = m.Int64Counter("agent.ticks",
		metric.WithDescription("Ticks stepped")); err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	if out.transitions, err = m.Int64Counter("agent.phase.transitions",
		metric.WithDescription("Phase changes across all aircraft")); err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	if out.launches, err = m.Int64Counter("agent.weapon.launches",
		metric.WithDescription("Weapon launch requests")); err != nil {
		return nil, fmt.Errorf("creating launches counter: %w", err)
	}
	if out.expired, err = m.Int64Counter("agent.threats.expired",
		metric.WithDescription("Threats marked as no longer closing")); err != nil {
		return nil, fmt.Errorf("creating expired counter: %w", err)
	}
	if out.evadeTicks, err = m.Int64Counter("agent.evade.ticks",
		metric.WithDescription("Aircraft-ticks spent evading")); err != nil {
		return nil, fmt.Errorf("creating evade counter: %w", err)
	}
	if out.tickDuration, err = m.Float64Histogram("agent.tick.duration",
		metric.WithDescription("Wall time of one Step call"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating tick duration histogram: %w", err)
	}

	return &out, nil
}

func (m *metrics) transition(from, to Phase) {
	m.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (m *metrics) launch(weapon string) {
	m.launches.Add(context.Background(), 1, metric.WithAttributes(attribute.String("weapon", weapon)))
}

func (m *metrics) step(start time.Time, evading int) {
	ctx := context.Background()
	m.ticks.Add(ctx, 1)
	if evading > 0 {
		m.evadeTicks.Add(ctx, int64(evading))
	}
	m.tickDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
}
