package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHandler wraps a service mux with otelhttp, naming spans after the matched
// route pattern.
func NewHandler(mux http.Handler, service string) http.Handler {
	return otelhttp.NewHandler(mux, service,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if r.Pattern != "" {
				return r.Pattern
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}
