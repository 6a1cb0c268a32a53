package ted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/httpclient"
	"github.com/tenderwatch/ted-adapter/internal/rate"
)

// ErrUnsupportedFields means the API rejected one or more requested fields.
var ErrUnsupportedFields = errors.New("ted: unsupported fields requested")

// Client talks to the TED v3 notice search endpoint.
type Client struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	url      string
	limitKey string
}

// NewClient builds a client for searchURL. retryMax applies to 5xx and transport errors.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, searchURL string, retryMax int) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := searchURL
	if u, err := url.Parse(searchURL); err == nil && u.Host != "" {
		key = u.Host
	}
	exec := httpclient.New(logger, rateMgr, httpClient, retryMax, "ted", func(status int, body []byte) error {
		logger.Warn("ted.client_error",
			zap.Int("status", status),
			zap.ByteString("body", body))
		if status == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "unsupported value") {
			return fmt.Errorf("%w: %s", ErrUnsupportedFields, body)
		}
		return &httpclient.StatusError{Service: "ted", Status: status, Body: body}
	})
	return &Client{logger: logger, exec: exec, url: searchURL, limitKey: key}
}

// Search fetches one page.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	var resp SearchResponse
	if err := c.exec.DoJSON(ctx, httpReq, c.limitKey, &resp); err != nil {
		return nil, fmt.Errorf("ted search page %d: %w", req.Page, err)
	}
	return &resp, nil
}
