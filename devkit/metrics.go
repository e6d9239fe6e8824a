package devkit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/grasp-labs/ds-devkit-go-sdk/devkit"

type instruments struct {
	cacheRequests metric.Int64Counter
	fetches       metric.Int64Counter
	fetchDuration metric.Float64Histogram
	decrypts      metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) *instruments {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	m := mp.Meter(meterName)
	// Instrument constructors only fail on invalid names; fall back to noop
	// instruments so a bad provider never breaks resolution.
	nm := noop.NewMeterProvider().Meter(meterName)

	in := &instruments{}
	var err error
	if in.cacheRequests, err = m.Int64Counter("devkit_cache_requests_total",
		metric.WithDescription("Cache lookups by namespace and result.")); err != nil {
		in.cacheRequests, _ = nm.Int64Counter("devkit_cache_requests_total")
	}
	if in.fetches, err = m.Int64Counter("devkit_fetch_total",
		metric.WithDescription("Backend fetches by operation and status.")); err != nil {
		in.fetches, _ = nm.Int64Counter("devkit_fetch_total")
	}
	if in.fetchDuration, err = m.Float64Histogram("devkit_fetch_duration_seconds",
		metric.WithDescription("Backend fetch latency."),
		metric.WithUnit("s")); err != nil {
		in.fetchDuration, _ = nm.Float64Histogram("devkit_fetch_duration_seconds")
	}
	if in.decrypts, err = m.Int64Counter("devkit_decrypt_total",
		metric.WithDescription("Decryption attempts by status.")); err != nil {
		in.decrypts, _ = nm.Int64Counter("devkit_decrypt_total")
	}
	return in
}

func (in *instruments) cacheLookup(ctx context.Context, namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	in.cacheRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("result", result),
	))
}

func (in *instruments) fetchDone(ctx context.Context, op string, start time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status(err)),
	)
	in.fetches.Add(ctx, 1, attrs)
	in.fetchDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (in *instruments) decryptDone(ctx context.Context, err error) {
	in.decrypts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status(err))))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
