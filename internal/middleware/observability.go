package middleware

import (
	"fmt"
	"net/http"
	"time"

	"whatsview/internal/httputil"
	"whatsview/internal/service"
	"whatsview/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// responseWrapper captures the status code and response size for logging.
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.responseSize += int64(n)
	return n, err
}

// Observability wraps handlers with an OpenTelemetry span and a
// structured completion log. Status codes of 400 and up raise the log
// level and mark the span as failed.
func Observability(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), "http_request")
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("client.address", httputil.GetClientIP(r)),
			)

			start := time.Now()
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r.WithContext(ctx))

			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
			)
			if wrapper.statusCode >= 400 {
				span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			} else if wrapper.statusCode >= 400 {
				logLevel = logrus.WarnLevel
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldMethod:   r.Method,
				service.LogFieldPath:     r.URL.Path,
				service.LogFieldHTTPCode: wrapper.statusCode,
				service.LogFieldDuration: duration.Milliseconds(),
				service.LogFieldRemoteIP: httputil.GetClientIP(r),
			}).Log(logLevel, "HTTP request completed")
		})
	}
}
