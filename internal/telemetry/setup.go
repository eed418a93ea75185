package telemetry

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const serviceNamespace = "foodflow"

// Options selects what Setup installs. An empty OTLPEndpoint keeps the no-op
// tracer, which is what tests and local runs without a collector want.
type Options struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	Metrics        bool
}

// Providers holds the installed global providers.
type Providers struct {
	// MetricsHandler serves /metrics; nil unless Options.Metrics is set.
	MetricsHandler http.Handler

	shutdown []func(context.Context) error
}

// Setup installs tracing and, when asked, Prometheus metrics for one service.
func Setup(ctx context.Context, opts Options) (*Providers, error) {
	res := newResource(opts.ServiceName, opts.ServiceVersion)
	p := &Providers{}

	if opts.OTLPEndpoint != "" {
		shutdown, err := initTracerProvider(ctx, opts.OTLPEndpoint, res)
		if err != nil {
			return nil, err
		}
		p.shutdown = append(p.shutdown, shutdown)
	}

	if opts.Metrics {
		handler, shutdown, err := initMeterProvider(res)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, err
		}
		p.MetricsHandler = handler
		p.shutdown = append(p.shutdown, shutdown)
	}

	return p, nil
}

// Shutdown flushes and stops the providers in reverse order of installation.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdown[i](ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}

func newResource(serviceName, serviceVersion string) *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNamespace(serviceNamespace),
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
}
