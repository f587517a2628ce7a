package httpclient

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
)

type RestyClient struct {
	client *resty.Client
}

func New(baseURL string, timeout time.Duration) HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &RestyClient{client: client}
}

// GET request with optional query params
func (rc *RestyClient) Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.client.R().SetContext(ctx)

	if result != nil {
		req.SetResult(result)
	}

	if queryParams != nil {
		req.SetQueryParams(queryParams)
	}

	if headers != nil {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, err
	}
	return &BaseResponse{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}, nil
}

// POST request with body
func (rc *RestyClient) Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error) {
	req := rc.client.R().
		SetContext(ctx).
		SetBody(body)

	if result != nil {
		req.SetResult(result)
	}

	if headers != nil {
		req.SetHeaders(headers)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return nil, err
	}
	return &BaseResponse{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}, nil
}
