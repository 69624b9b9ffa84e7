package gateway

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/cartflow/internal/httpapi"
)

// forwardedHeaders are copied from the client request to the upstream one.
var forwardedHeaders = []string{
	"Accept",
	"Content-Type",
	httpapi.UserIDHeader,
	httpapi.IdempotencyKeyHeader,
}

type ServiceProxy struct {
	baseURL string
	client  *http.Client
}

func NewServiceProxy(baseURL string, client *http.Client) *ServiceProxy {
	return &ServiceProxy{
		baseURL: baseURL,
		client:  client,
	}
}

// Forward sends r to path on the upstream service, keeping its method,
// query string, body and identity headers.
func (p *ServiceProxy) Forward(ctx context.Context, r *http.Request, path string) (*http.Response, error) {
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

	return p.client.Do(req)
}
