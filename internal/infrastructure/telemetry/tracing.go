package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// TracingConfig exportación OTLP. Endpoint vacío = trazas deshabilitadas.
type TracingConfig struct {
	Endpoint      string
	Insecure      bool
	SamplingRatio float64
	ServiceName   string
}

// TracerProvider ciclo de vida del provider global.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider configura el exportador OTLP gRPC y lo instala como provider global.
// Sin endpoint deja el provider no-op de otel.
func NewTracerProvider(ctx context.Context, cfg TracingConfig, log *logger.Logger) (*TracerProvider, error) {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Endpoint == "" {
		log.Info().Msg("trazas deshabilitadas")
		return &TracerProvider{}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("crear exportador OTLP: %w", err)
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("crear resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().Str("endpoint", cfg.Endpoint).Float64("sampling_ratio", cfg.SamplingRatio).
		Msg("trazas OTLP habilitadas")
	return &TracerProvider{provider: provider}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

// Enabled indica si hay exportación real.
func (tp *TracerProvider) Enabled() bool { return tp.provider != nil }

// Shutdown vacía los spans pendientes.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}
