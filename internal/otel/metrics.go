package otel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce    sync.Once
	turnsCounter       metric.Int64Counter
	turnDuration       metric.Float64Histogram
	reviewsCounter     metric.Int64Counter
	scheduleOpsCounter metric.Int64Counter
	generationDuration metric.Float64Histogram
	generationErrors   metric.Int64Counter
	sseEventsCounter   metric.Int64Counter
	sseConnections     atomic.Int64
)

// InitMetrics creates the postcraft instruments on the global meter provider, once per process.
// Record* calls made before it are dropped.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		turnsCounter, err = m.Int64Counter("postcraft_turns_total", metric.WithDescription("Conversation turns by route"))
		if err != nil {
			return
		}
		turnDuration, err = m.Float64Histogram("postcraft_turn_duration_seconds", metric.WithDescription("Conversation turn duration in seconds"))
		if err != nil {
			return
		}
		reviewsCounter, err = m.Int64Counter("postcraft_reviews_total", metric.WithDescription("Approval gate decisions by outcome"))
		if err != nil {
			return
		}
		scheduleOpsCounter, err = m.Int64Counter("postcraft_schedule_operations_total", metric.WithDescription("Scheduler commands by operation and result"))
		if err != nil {
			return
		}
		generationDuration, err = m.Float64Histogram("postcraft_generation_duration_seconds", metric.WithDescription("Text and image generation latency in seconds"))
		if err != nil {
			return
		}
		generationErrors, err = m.Int64Counter("postcraft_generation_errors_total", metric.WithDescription("Failed generation calls"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("postcraft_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		_, err = m.Int64ObservableGauge("postcraft_sse_connections",
			metric.WithDescription("Open /stream subscribers"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(sseConnections.Load())
				return nil
			}))
	})
	return err
}

// RecordTurn records one conversation turn and its duration.
func RecordTurn(ctx context.Context, route string, duration time.Duration) {
	attrs := metric.WithAttributes(AttrRoute.String(route))
	if turnsCounter != nil {
		turnsCounter.Add(ctx, 1, attrs)
	}
	if turnDuration != nil {
		turnDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

// RecordReview records an approval gate outcome (saved, rejected, blocked, ...).
func RecordReview(ctx context.Context, outcome string) {
	if reviewsCounter == nil {
		return
	}
	reviewsCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordScheduleOp records a scheduler command such as schedule/remove/show.
func RecordScheduleOp(ctx context.Context, op, result string) {
	if scheduleOpsCounter == nil {
		return
	}
	scheduleOpsCounter.Add(ctx, 1, metric.WithAttributes(
		AttrOperation.String(op),
		AttrResult.String(result),
	))
}

// RecordGeneration records a text or image generation call.
func RecordGeneration(ctx context.Context, kind string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(AttrKind.String(kind))
	if generationDuration != nil {
		generationDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil && generationErrors != nil {
		generationErrors.Add(ctx, 1, attrs)
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection counts a new /stream subscriber.
func AddSSEConnection() { sseConnections.Add(1) }

// RemoveSSEConnection counts a subscriber leaving. The count never drops below zero.
func RemoveSSEConnection() {
	for {
		n := sseConnections.Load()
		if n <= 0 || sseConnections.CompareAndSwap(n, n-1) {
			return
		}
	}
}
