package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ajitpratap0/formtap/pkg/errors"
	"github.com/ajitpratap0/formtap/pkg/metrics"
	"github.com/ajitpratap0/formtap/pkg/observability"
)

// Endpoint classes. Each class has its own limiter.
const (
	EndpointForms      = "forms"
	EndpointDefinition = "definition"
	EndpointResponses  = "responses"
)

const maxErrorBody = 4096

// Doer sends HTTP requests. *HTTPClient and *http.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request describes one upstream GET.
type Request struct {
	Endpoint string
	Path     string
	Params   url.Values
}

// GateConfig configures a Gate
type GateConfig struct {
	BaseURL         string
	RequestInterval time.Duration
	Soft            *RetryPolicy
	Hard            *RetryPolicy
}

// Gate is the single path for upstream calls: it throttles per endpoint,
// classifies failures, and applies the hard policy around the soft policy.
type Gate struct {
	client   Doer
	baseURL  string
	interval time.Duration
	soft     *RetryPolicy
	hard     *RetryPolicy
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu       sync.Mutex
	limiters map[string]RateLimiter
}

// NewGate creates a Gate. collector may be nil.
func NewGate(client Doer, cfg GateConfig, collector *metrics.Collector, logger *zap.Logger) *Gate {
	g := &Gate{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		interval: cfg.RequestInterval,
		soft:     cfg.Soft,
		hard:     cfg.Hard,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "gate")),
		limiters: make(map[string]RateLimiter),
	}
	return g
}

// LimiterStats returns the statistics of every limiter used so far, by
// endpoint class.
func (g *Gate) LimiterStats() map[string]RateLimiterStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]RateLimiterStats, len(g.limiters))
	for endpoint, l := range g.limiters {
		out[endpoint] = l.GetStats()
	}
	return out
}

// limiter returns the limiter of an endpoint class, creating it on first use.
func (g *Gate) limiter(endpoint string) RateLimiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[endpoint]
	if !ok {
		l = NewIntervalLimiter(g.interval)
		g.limiters[endpoint] = l
	}
	return l
}

// Call performs req and decodes the JSON body into out. It returns nil or an
// error that callers treat as fatal.
func (g *Gate) Call(ctx context.Context, req Request, out interface{}) error {
	ctx, span := otel.Tracer("github.com/ajitpratap0/formtap/pkg/clients").Start(ctx, "gate.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("endpoint", req.Endpoint),
		attribute.String("path", req.Path),
	)

	attempt := func(ctx context.Context) error {
		return g.do(ctx, req, out)
	}
	soft := func(ctx context.Context) error {
		if g.soft == nil {
			return attempt(ctx)
		}
		return g.soft.Execute(ctx, attempt, g.notify(req.Endpoint, g.soft.Kind))
	}

	var err error
	if g.hard == nil {
		err = soft(ctx)
	} else {
		err = g.hard.Execute(ctx, soft, g.notify(req.Endpoint, g.hard.Kind))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (g *Gate) notify(endpoint, kind string) Notify {
	return func(err error, attempt int, delay time.Duration) {
		g.metrics.ObserveRetry(endpoint, kind)

		level := g.logger.Debug
		if kind == RetryKindHard {
			level = g.logger.Warn
		}
		level("retrying upstream request",
			zap.String("endpoint", endpoint),
			zap.String("policy", kind),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
}

func (g *Gate) do(ctx context.Context, req Request, out interface{}) error {
	if err := g.limiter(req.Endpoint).Wait(ctx); err != nil {
		return err
	}

	target := g.baseURL + req.Path
	if len(req.Params) > 0 {
		target += "?" + req.Params.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to build request").
			WithDetail(errors.DetailEndpoint, req.Endpoint)
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.metrics.ObserveRequest(req.Endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "upstream request failed").
			WithDetail(errors.DetailEndpoint, req.Endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	g.metrics.ObserveRequest(req.Endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to read upstream response").
			WithDetail(errors.DetailEndpoint, req.Endpoint).
			WithDetail(errors.DetailStatusCode, resp.StatusCode)
	}

	if err := classify(resp.StatusCode, body); err != nil {
		err.WithDetail(errors.DetailEndpoint, req.Endpoint)
		if err.Type == errors.ErrorTypeHTTP {
			g.logger.Error("upstream request failed", append([]zap.Field{
				zap.String("endpoint", req.Endpoint),
				zap.Int("status_code", resp.StatusCode),
				zap.String("body", truncate(body)),
			}, observability.TraceFields(ctx)...)...)
		}
		return err
	}

	var envelope struct {
		TotalItems *int `json:"total_items"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.TotalItems != nil {
		g.logger.Info("total_items",
			zap.String("endpoint", req.Endpoint),
			zap.Int("total_items", *envelope.TotalItems))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode upstream response").
			WithDetail(errors.DetailEndpoint, req.Endpoint)
	}
	return nil
}

// classify maps a response status onto the error taxonomy.
func classify(status int, body []byte) *errors.Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable:
		return errors.New(errors.ErrorTypeRateLimit, fmt.Sprintf("upstream throttled with %d", status)).
			WithDetail(errors.DetailStatusCode, status)
	case status == http.StatusLocked:
		return errors.New(errors.ErrorTypeMeteringLock, "upstream metering lock").
			WithDetail(errors.DetailStatusCode, status)
	default:
		return errors.New(errors.ErrorTypeHTTP, fmt.Sprintf("upstream returned %d", status)).
			WithDetail(errors.DetailStatusCode, status).
			WithDetail(errors.DetailBody, truncate(body))
	}
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
