package httpclient

import (
	"context"
	"net/http"
)

// BaseResponse carries the raw outcome of a request alongside any decoded
// result, so callers can inspect status and headers (the xueqiu provider
// reads Set-Cookie from here).
type BaseResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// HTTPClient is the transport surface the quote providers need. A non-nil
// result is JSON-decoded into; pass nil for raw-body responses.
type HTTPClient interface {
	Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error)
	Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error)
}
