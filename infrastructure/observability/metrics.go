package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"colorgame/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the game engine. A nil
// or disabled provider records nothing.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	betsPlacedCounter         metric.Int64Counter
	betsRejectedCounter       metric.Int64Counter
	roundsResolvedCounter     metric.Int64Counter
	settlementDurationHist    metric.Float64Histogram
	payoutsAmountCounter      metric.Int64Counter
	settlementFailuresCounter metric.Int64Counter
	reconcileActionsCounter   metric.Int64Counter
	eventsPublishedCounter    metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize builds the meter provider for the configured exporter. With
// OTel disabled or exporter "none" the provider stays a no-op.
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}
	mp.initialized = true

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	exporter, err := mp.newExporter(ctx)
	if err != nil {
		mp.initialized = false
		return err
	}
	if exporter == nil {
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
		resource.WithAttributes(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		mp.initialized = false
		return fmt.Errorf("failed to create resource: %w", err)
	}

	interval := time.Duration(mp.config.OTelExportIntervalMs) * time.Millisecond
	if err := mp.install(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), res); err != nil {
		mp.initialized = false
		return err
	}

	otel.SetMeterProvider(mp.meterProvider)
	log.WithFields(log.Fields{
		"exporter": mp.config.OTelExporterType,
		"interval": interval,
	}).Info("Metrics provider initialized")
	return nil
}

// newExporter returns nil for exporter type "none"
func (mp *MetricsProvider) newExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return exporter, nil

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter for %s: %w", mp.config.OTelOTLPEndpoint, err)
		}
		return exporter, nil

	case "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}
}

// install builds the meter provider around reader. Callers hold mp.mu.
func (mp *MetricsProvider) install(reader sdkmetric.Reader, res *resource.Resource) error {
	opts := []sdkmetric.Option{sdkmetric.WithReader(reader)}
	if res != nil {
		opts = append(opts, sdkmetric.WithResource(res))
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(opts...)
	mp.meter = mp.meterProvider.Meter(MetricPrefix)

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	return nil
}

// createInstruments registers every counter and the settlement histogram
func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
	}{
		{&mp.betsPlacedCounter, BetsPlacedTotal, "Accepted bets"},
		{&mp.betsRejectedCounter, BetsRejectedTotal, "Rejected bets by reason"},
		{&mp.roundsResolvedCounter, RoundsResolvedTotal, "Resolved rounds"},
		{&mp.payoutsAmountCounter, PayoutsAmountTotal, "Amount credited to winning bets"},
		{&mp.settlementFailuresCounter, SettlementBetFailuresTotal, "Bets left unsettled by a resolution"},
		{&mp.reconcileActionsCounter, ReconcileActionsTotal, "Corrective actions taken by reconciliation"},
		{&mp.eventsPublishedCounter, EventsPublishedTotal, "Events handed to the event backend"},
	}

	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit("1"),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
		*c.target = counter
	}

	hist, err := mp.meter.Float64Histogram(SettlementDuration,
		metric.WithDescription("Round settlement time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", SettlementDuration, err)
	}
	mp.settlementDurationHist = hist

	return nil
}

// Shutdown gracefully shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordBetPlaced records an accepted bet
func (mp *MetricsProvider) RecordBetPlaced(duration string) {
	if !mp.isEnabled() {
		return
	}

	mp.betsPlacedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelDuration, duration)),
	)
}

// RecordBetRejected records a refused bet by rejection reason
func (mp *MetricsProvider) RecordBetRejected(reason string) {
	if !mp.isEnabled() {
		return
	}

	mp.betsRejectedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelReason, reason)),
	)
}

// RecordRoundResolved records one settlement with its duration and payout
func (mp *MetricsProvider) RecordRoundResolved(duration string, manipulated bool, elapsed time.Duration, paid int64, failedBets int) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	mp.roundsResolvedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(LabelDuration, duration),
			attribute.String(LabelManipulated, strconv.FormatBool(manipulated)),
		),
	)
	mp.settlementDurationHist.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String(LabelDuration, duration)),
	)
	if paid > 0 {
		mp.payoutsAmountCounter.Add(ctx, paid)
	}
	if failedBets > 0 {
		mp.settlementFailuresCounter.Add(ctx, int64(failedBets))
	}
}

// RecordReconcileAction records a corrective action of the reconciliation sweep
func (mp *MetricsProvider) RecordReconcileAction(action string, count int) {
	if !mp.isEnabled() || count <= 0 {
		return
	}

	mp.reconcileActionsCounter.Add(context.Background(), int64(count),
		metric.WithAttributes(attribute.String(LabelAction, action)),
	)
}

// RecordEventPublished records an event handed to the broker
func (mp *MetricsProvider) RecordEventPublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.eventsPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled checks if metrics are enabled and initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}

	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}
