package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/metrics"
	"github.com/tenderwatch/ted-adapter/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 250 * time.Millisecond
	case 1:
		return 500 * time.Millisecond
	default:
		return time.Second
	}
}

// StatusError is a non-retried 4xx response. Body holds at most maxErrorBody bytes.
type StatusError struct {
	Service string
	Status  int
	Body    []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.Status, e.Body)
}

const maxErrorBody = 4 << 10

// Executor runs rate-limited, retrying JSON requests against one upstream.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	service      string
	errorHandler func(status int, body []byte) error
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. errorHandler maps 4xx responses to errors; when nil
// a *StatusError is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	service string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		service:      service,
		errorHandler: errorHandler,
		sleep:        sleepCtx,
	}
}

// DoJSON executes req and decodes a 2xx body into out. Transport errors and
// 5xx responses are retried up to retryMax times; request bodies are rewound
// through req.GetBody. rateLimitKey selects the limiter bucket.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, Backoff(attempt-1)); err != nil {
				return err
			}
			if err := rewind(req); err != nil {
				return err
			}
		}
		if e.rateMgr != nil {
			if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
				return fmt.Errorf("rate limit wait: %w", err)
			}
		}

		status, body, elapsed, err := e.roundTrip(ctx, req)
		if err != nil {
			lastErr = err
			metrics.IncUpstreamRequest(e.service, "transport_error")
			e.logger.Warn(e.service+".http_failed",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		metrics.IncUpstreamRequest(e.service, strconv.Itoa(status/100)+"xx")

		switch {
		case status >= 500:
			e.logger.Warn(e.service+".server_error",
				zap.Int("status", status),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("%s server error: %d", e.service, status)
			continue

		case status >= 400:
			if len(body) > maxErrorBody {
				body = body[:maxErrorBody]
			}
			if e.errorHandler != nil {
				return e.errorHandler(status, body)
			}
			return &StatusError{Service: e.service, Status: status, Body: body}
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.service+".decode_failed",
					zap.String("url", req.URL.String()),
					zap.Int("bytes", len(body)),
					zap.Error(err))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug(e.service+".http_success",
			zap.String("url", req.URL.String()),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))
		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.service, e.retryMax, lastErr)
}

func (e *Executor) roundTrip(ctx context.Context, req *http.Request) (int, []byte, time.Duration, error) {
	start := time.Now()
	resp, err := e.http.Do(req.WithContext(ctx))
	if err != nil {
		return 0, nil, time.Since(start), err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	metrics.ObserveDuration(metrics.UpstreamRequestDuration, start, e.service)
	if err != nil {
		return 0, nil, time.Since(start), fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

func rewind(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
