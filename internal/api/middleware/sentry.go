package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// SentryMiddleware opens a transaction per request, tags it with the
// request ID, and reports panics and 5xx responses. A no-op when Sentry
// was never initialized.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		options := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
		}
		if sentryTrace := r.Header.Get("sentry-trace"); sentryTrace != "" {
			options = append(options, sentry.ContinueFromHeaders(sentryTrace, r.Header.Get("baggage")))
		}

		transaction := sentry.StartTransaction(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path), options...)
		defer transaction.Finish()

		ctx := sentry.SetHubOnContext(transaction.Context(), hub)
		r = r.WithContext(ctx)

		hub.Scope().SetContext("request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"query":       r.URL.RawQuery,
			"remote_addr": r.RemoteAddr,
		})
		if requestID := GetRequestID(r.Context()); requestID != "" {
			hub.Scope().SetTag("request_id", requestID)
			transaction.SetTag("request_id", requestID)
		}
		if userAgent := r.UserAgent(); userAgent != "" {
			hub.Scope().SetTag("user_agent", userAgent)
		}

		defer func() {
			if err := recover(); err != nil {
				transaction.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				// re-panic so the recovery middleware still runs
				panic(err)
			}
		}()

		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		transaction.Status = httpStatusToSpanStatus(status)
		transaction.SetData("http.response.status_code", status)

		if status >= 500 {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)))
		}
	})
}

var spanStatusByHTTPCode = map[int]sentry.SpanStatus{
	http.StatusBadRequest:         sentry.SpanStatusInvalidArgument,
	http.StatusUnauthorized:       sentry.SpanStatusUnauthenticated,
	http.StatusForbidden:          sentry.SpanStatusPermissionDenied,
	http.StatusNotFound:           sentry.SpanStatusNotFound,
	http.StatusConflict:           sentry.SpanStatusAlreadyExists,
	http.StatusTooManyRequests:    sentry.SpanStatusResourceExhausted,
	499:                           sentry.SpanStatusCanceled,
	http.StatusNotImplemented:     sentry.SpanStatusUnimplemented,
	http.StatusServiceUnavailable: sentry.SpanStatusUnavailable,
	http.StatusGatewayTimeout:     sentry.SpanStatusDeadlineExceeded,
}

// httpStatusToSpanStatus maps an HTTP status code onto the Sentry span
// status vocabulary.
func httpStatusToSpanStatus(status int) sentry.SpanStatus {
	if s, ok := spanStatusByHTTPCode[status]; ok {
		return s
	}
	switch {
	case status >= 200 && status < 300:
		return sentry.SpanStatusOK
	case status >= 400 && status < 500:
		return sentry.SpanStatusInvalidArgument
	case status >= 500:
		return sentry.SpanStatusInternalError
	default:
		return sentry.SpanStatusUnknown
	}
}
