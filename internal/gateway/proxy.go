package gateway

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

var (
	forwardedHeaders = []string{"Content-Type", "Accept", "Authorization"}
	returnedHeaders  = []string{"Content-Type", "Location", "Retry-After"}
)

// ServiceProxy forwards gateway requests to one backing service.
type ServiceProxy struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewServiceProxy(name, baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		name:    name,
		baseURL: baseURL,
		client:  client,
	}
}

func (p *ServiceProxy) Name() string { return p.name }

// ForwardRequest replays r against path on the upstream service, keeping the
// query string, the request id assigned by the router and the client address.
func (p *ServiceProxy) ForwardRequest(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
	target := p.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for _, name := range forwardedHeaders {
		if v := r.Header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if id := middleware.GetReqID(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		req.Header.Set("X-Forwarded-For", host)
	} else if r.RemoteAddr != "" {
		req.Header.Set("X-Forwarded-For", r.RemoteAddr)
	}

	return p.client.Do(req)
}
