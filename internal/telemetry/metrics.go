package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const serviceName = "tiltify-bot"

// Metrics holds the instruments recorded by the tracker and scheduler.
type Metrics struct {
	DonationsNotified   metric.Int64Counter
	PollErrors          metric.Int64Counter
	CampaignsDiscovered metric.Int64Counter
	CampaignsRetired    metric.Int64Counter
	CycleDuration       metric.Float64Histogram
}

// Init installs an OTLP/HTTP meter provider when endpoint is set. The
// returned shutdown flushes pending data.
func Init(ctx context.Context, endpoint string) (*Metrics, func(context.Context) error, error) {
	if endpoint == "" {
		m, err := New(noop.NewMeterProvider().Meter(serviceName))
		return m, func(context.Context) error { return nil }, err
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(provider)

	m, err := New(provider.Meter(serviceName))
	if err != nil {
		return nil, nil, err
	}
	return m, provider.Shutdown, nil
}

func New(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.DonationsNotified, err = meter.Int64Counter("tracker.donations.notified",
		metric.WithDescription("Donation notifications dispatched")); err != nil {
		return nil, err
	}
	if m.PollErrors, err = meter.Int64Counter("tracker.poll.errors",
		metric.WithDescription("Per-campaign donation fetch failures")); err != nil {
		return nil, err
	}
	if m.CampaignsDiscovered, err = meter.Int64Counter("tracker.campaigns.discovered",
		metric.WithDescription("Campaigns added by reconciliation")); err != nil {
		return nil, err
	}
	if m.CampaignsRetired, err = meter.Int64Counter("tracker.campaigns.deactivated",
		metric.WithDescription("Campaigns deactivated by reconciliation")); err != nil {
		return nil, err
	}
	if m.CycleDuration, err = meter.Float64Histogram("scheduler.cycle.duration",
		metric.WithDescription("Duration of a scheduler cycle"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// Nop returns instruments that record nothing.
func Nop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter(serviceName))
	return m
}

func GuildAttr(guildID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("guild", guildID))
}

func CycleAttr(cycle string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("cycle", cycle))
}
