package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "taskflow/api"
	requestEventName   = "taskflow.request"
	requestEventDomain = "taskflow.api"
	observabilityEvent = "observability.event"
	metricsKey         = "requestMetrics"
)

// requestMetrics times one task request and reports it as a span plus an
// observability.event log entry. A nil *requestMetrics ignores every call.
type requestMetrics struct {
	logger *log.Logger
	span   trace.Span
	route  string
	method string

	start          time.Time
	authDuration   time.Duration
	storeDuration  time.Duration
	encodeDuration time.Duration
	resultCount    int
	errorStage     string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, method, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, method+" "+route, trace.WithSpanKind(trace.SpanKindServer))
	return &requestMetrics{
		logger: logger,
		span:   span,
		route:  route,
		method: method,
		start:  time.Now(),
	}, spanCtx
}

func (m *requestMetrics) ObserveAuth(d time.Duration) {
	if m != nil && d > 0 {
		m.authDuration = d
	}
}

// ObserveStore accumulates time spent in services and storage.
func (m *requestMetrics) ObserveStore(d time.Duration) {
	if m != nil && d > 0 {
		m.storeDuration += d
	}
}

func (m *requestMetrics) ObserveEncode(d time.Duration) {
	if m != nil && d > 0 {
		m.encodeDuration = d
	}
}

func (m *requestMetrics) SetResultCount(n int) {
	if m == nil {
		return
	}
	if n < 0 {
		n = 0
	}
	m.resultCount = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if m != nil && stage != "" {
		m.errorStage = stage
	}
}

// Log ends the span and writes the observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := map[string]any{
		"http.route":                  m.route,
		"http.method":                 m.method,
		"http.status_code":            status,
		"taskflow.request.total_ms":   durationToMillis(time.Since(m.start)),
		"taskflow.request.result_cnt": m.resultCount,
	}
	if m.authDuration > 0 {
		attrs["taskflow.request.auth_ms"] = durationToMillis(m.authDuration)
	}
	if m.storeDuration > 0 {
		attrs["taskflow.request.store_ms"] = durationToMillis(m.storeDuration)
	}
	if m.encodeDuration > 0 {
		attrs["taskflow.request.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs["taskflow.request.error_stage"] = m.errorStage
	}

	severityText, severityNumber := severityForStatus(status, err)
	kvs := toAttributes(attrs)
	m.span.SetAttributes(kvs...)

	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", requestEventName),
		attribute.String("event.domain", requestEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, kvs...)
	switch {
	case err != nil:
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		m.span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		m.span.SetStatus(codes.Error, http.StatusText(status))
	default:
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))

	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"attributes":      attrs,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if sc := m.span.SpanContext(); sc.HasTraceID() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}
	if err != nil {
		fields["error.message"] = err.Error()
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	entry := m.logger.WithFields(fields)
	switch severityNumber {
	case 17:
		entry.Error(observabilityEvent)
	case 13:
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil && status < http.StatusBadRequest:
		return "ERROR", 17
	case status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	}
	return "INFO", 9
}

func toAttributes(values map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		}
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

// observeRequests opens request metrics for every route of a group. It runs
// after routing, so c.Path() is the matched route template.
func observeRequests(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			m, ctx := newRequestMetrics(req.Context(), logger, req.Method, c.Path())
			c.SetRequest(req.WithContext(ctx))
			c.Set(metricsKey, m)

			err := next(c)
			status := c.Response().Status
			if err != nil {
				status, _ = translateError(err)
				if m.errorStage == "" {
					m.SetErrorStage("handler")
				}
			}
			m.Log(status, err)
			return err
		}
	}
}

func metricsFrom(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsKey).(*requestMetrics)
	return m
}
