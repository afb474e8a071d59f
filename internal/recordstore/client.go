package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/mutrapro/internal/config"
	obscontext "github.com/smallbiznis/mutrapro/internal/observability/context"
	obsmetrics "github.com/smallbiznis/mutrapro/internal/observability/metrics"
	"github.com/smallbiznis/mutrapro/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 2048
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.ReconcileMetrics `optional:"true"`
}

// Client talks to the external record store. It never retries: callers own
// the retry policy for the calls that are safe to repeat.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	metrics *obsmetrics.ReconcileMetrics
	tracer  trace.Tracer
}

func New(p Params) *Client {
	return NewClient(p.Config.RecordStore.BaseURL, p.Config.RecordStore.Timeout, p.Log, p.Metrics)
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger, metrics *obsmetrics.ReconcileMetrics) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("recordstore"),
		metrics: metrics,
		tracer:  otel.Tracer("github.com/smallbiznis/mutrapro/internal/recordstore"),
	}
}

type call struct {
	op             string
	method         string
	path           string
	body           any
	idempotencyKey string
}

// do performs one request. found is false when the record store answered
// 404, in which case out is left untouched.
func (c *Client) do(ctx context.Context, req call, out any) (found bool, err error) {
	ctx, span := c.tracer.Start(ctx, "recordstore."+req.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.SafeAttributes(
			attribute.String("record_store.op", req.op),
			attribute.String("http.method", req.method),
		)...),
	)
	start := time.Now()
	outcome := obsmetrics.OutcomeSuccess
	defer func() {
		switch {
		case err == nil && !found:
			outcome = obsmetrics.OutcomeNotFound
		case IsTimeout(err):
			outcome = obsmetrics.OutcomeTimeout
		case err != nil:
			outcome = obsmetrics.OutcomeError
		}
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		c.metrics.ObserveUpstream(req.op, outcome, time.Since(start))
	}()

	var payload io.Reader = http.NoBody
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return false, err
		}
		payload = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, payload)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.idempotencyKey)
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		httpReq.Header.Set("X-Request-Id", requestID)
	}
	tracing.InjectHeaders(ctx, httpReq.Header)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return false, classifyTransportError(req.op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return false, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upstream := &UpstreamError{
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		c.log.Warn("record store rejected call",
			zap.String("op", req.op),
			zap.Int("status", resp.StatusCode),
			zap.String("body", upstream.Body),
		)
		return false, upstream
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return false, &UpstreamError{Op: req.op, StatusCode: resp.StatusCode, Err: errors.New("empty response body")}
		}
		if transportErr := classifyTransportError(req.op, err); IsTimeout(transportErr) {
			return false, transportErr
		}
		return false, &UpstreamError{Op: req.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return true, nil
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
