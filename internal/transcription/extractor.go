package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/mutrapro/internal/observability/context"
	"github.com/smallbiznis/mutrapro/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultExtractorTimeout = 60 * time.Second
	maxExtractorErrorBody   = 2048
)

// Extraction is what the note extraction engine returns for one audio file.
type Extraction struct {
	Events []json.RawMessage `json:"events"`
	// MIDI is base64 in the JSON body.
	MIDI []byte `json:"midi,omitempty"`
}

type Extractor interface {
	Extract(ctx context.Context, name string, audio []byte) (*Extraction, error)
}

// HTTPExtractor calls an extraction engine exposed over HTTP.
type HTTPExtractor struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	tracer  trace.Tracer
}

func NewHTTPExtractor(baseURL string, timeout time.Duration, log *zap.Logger) *HTTPExtractor {
	if timeout <= 0 {
		timeout = defaultExtractorTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPExtractor{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("transcription.extractor"),
		tracer:  otel.Tracer("github.com/smallbiznis/mutrapro/internal/transcription"),
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, name string, audio []byte) (out *Extraction, err error) {
	ctx, span := e.tracer.Start(ctx, "transcription.extract",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("audio.bytes", len(audio))),
	)
	defer func() {
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "extract failed")
		}
		span.End()
	}()

	if e.baseURL == "" {
		return nil, fmt.Errorf("%w: no extractor configured", ErrExtractorUnavailable)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/trans", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	tracing.InjectHeaders(ctx, req.Header)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, classifyExtractorError(err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxExtractorErrorBody))
		e.log.Warn("extractor rejected audio",
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(msg))),
		)
		if resp.StatusCode == http.StatusBadRequest {
			return nil, ErrUnsupportedAudio
		}
		return nil, fmt.Errorf("%w: status %d", ErrExtractorUnavailable, resp.StatusCode)
	}

	var result Extraction
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if classified := classifyExtractorError(err); errors.Is(classified, ErrExtractorTimeout) {
			return nil, classified
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrExtractorUnavailable, err)
	}
	return &result, nil
}

func classifyExtractorError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExtractorTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrExtractorTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
}
