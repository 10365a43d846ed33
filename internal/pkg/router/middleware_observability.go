package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/stepup/internal/pkg/config"
	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const maxLoggedBodyBytes = 8 * 1024

// alwaysMasked never reach a log line whatever instrument.log_mask_fields says:
// the typed code, the bearer credentials, and the attributes holding the phone number.
var alwaysMasked = []string{"authorization", "code", "resume_token", "attributes", "pipeline_state"}

// AttrPendingID tags request spans with the challenge they act on.
const AttrPendingID = attribute.Key("stepup.pending_id")

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   bytes.Buffer
	capped bool
	err    error
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if room := maxLoggedBodyBytes - w.body.Len(); room < len(p) {
		w.body.Write(p[:max(room, 0)])
		w.capped = true
	} else {
		w.body.Write(p)
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// SetError lets the router and the recoverer attach the failure to the span.
func (w *statusRecorder) SetError(err error) {
	w.err = err
}

func (w *statusRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func maskHeaders(headers http.Header, maskKeys map[string]struct{}) http.Header {
	result := headers.Clone()
	for key := range result {
		if _, found := maskKeys[strings.ToLower(key)]; found {
			result.Set(key, "***")
		}
	}
	return result
}

// loggableBody renders a captured JSON body with sensitive keys masked.
// The API only speaks JSON, anything else is summarised.
func loggableBody(body []byte, capped bool, maskKeys map[string]struct{}) any {
	if len(body) == 0 {
		return nil
	}

	var v any
	if !capped && json.Unmarshal(body, &v) == nil {
		return instrument.MaskData(v, maskKeys)
	}
	if !utf8.Valid(body) {
		return "<binary body omitted>"
	}
	return map[string]any{"bytes": len(body), "truncated": capped}
}

// peekRequestBody copies up to maxLoggedBodyBytes of the body for logging and
// leaves the full body readable by the handler.
func peekRequestBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	//nolint:errcheck // logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	if len(head) > maxLoggedBodyBytes {
		return head[:maxLoggedBodyBytes], true
	}
	return head, false
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	m.requests, err = meter.Int64Counter("http.server.requests", metric.WithDescription("Number of challenge API requests"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}
	m.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("Challenge API request duration"), metric.WithUnit("ms"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}
	return m
}

func (m httpMetrics) record(ctx context.Context, elapsed time.Duration, attrs ...attribute.KeyValue) {
	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
	}
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	configured := []string{}
	if cfg != nil {
		configured = cfg.GetArray("instrument.log_mask_fields")
	}
	maskKeys := instrument.MaskKeys(append(configured, alwaysMasked...))

	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := matchedRoutePath(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.ClientAddress(r.RemoteAddr),
				),
			)
			defer span.End()

			pendingID := httprouter.ParamsFromContext(r.Context()).ByName("id")
			if pendingID != "" {
				span.SetAttributes(AttrPendingID.String(pendingID))
			}

			reqBody, reqCapped := peekRequestBody(r)
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"route", route,
				"pending_id", pendingID,
				"client_ip", r.RemoteAddr,
				"headers", maskHeaders(r.Header, maskKeys),
				"body", loggableBody(reqBody, reqCapped, maskKeys),
			)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusCode()
			elapsed := time.Since(start)

			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}
			span.SetAttributes(attrs...)
			span.SetAttributes(attribute.Int("http.response_content_length", rec.bytes))
			metrics.record(ctx, elapsed, attrs...)

			if rec.err != nil {
				span.RecordError(rec.err)
			}
			switch {
			case status < http.StatusInternalServerError:
				span.SetStatus(codes.Ok, "")
			case rec.err != nil:
				span.SetStatus(codes.Error, rec.err.Error())
			default:
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(ctx, level, "response sent",
				"method", r.Method,
				"route", route,
				"pending_id", pendingID,
				"status", status,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
				"body", loggableBody(rec.body.Bytes(), rec.capped, maskKeys),
			)
		})
	}
}
