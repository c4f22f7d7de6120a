package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/account-rental/pkg/logger"
)

const (
	maxLoggedBody = 64 << 10
	redacted      = "[FILTERED]"
)

// secretKeys match header and field names by substring. Provider callbacks carry their signature
// both as a header and as a form field.
var secretKeys = []string{
	"authorization",
	"password",
	"token",
	"secret",
	"private_key",
	"signature",
	"cron",
	"api_key",
}

// referenceKeys are the provider fields that tie a callback to a payment attempt.
var referenceKeys = []string{
	"partnerReferenceNo",
	"originalPartnerReferenceNo",
	"virtualAccountNo",
	"paymentRequestId",
	"inquiryRequestId",
	"trxId",
	"bill_no",
}

// LoggingMiddleware writes one access line per request. It carries the annotations handlers added
// on the way down, any provider reference found in the request body, and both bodies when the
// answer was not a success.
func LoggingMiddleware(lg *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logger.Track(r.Context())
			r = r.WithContext(ctx)

			reqBody := readBody(r)
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern(r),
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.size,
				"remote_addr", r.RemoteAddr,
			}
			attrs = append(attrs, logger.Attrs(ctx)...)
			if refs := providerReferences(reqBody); len(refs) > 0 {
				attrs = append(attrs, slog.Group("provider", refs...))
			}
			if status >= http.StatusBadRequest {
				attrs = append(attrs,
					"headers", filterSensitiveHeaders(r.Header),
					"request_body", filterSensitiveBody(reqBody),
					"response_body", filterSensitiveBody(rec.body.Bytes()))
			}

			lg.Log(ctx, levelFor(status), "http request", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// readBody copies at most maxLoggedBody bytes and leaves the full body readable for the handler.
func readBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}
	return head
}

// statusRecorder keeps the status and the first maxLoggedBody bytes of the answer.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
	body   bytes.Buffer
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *statusRecorder) statusCode() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func isSecret(name string) bool {
	name = strings.ToLower(name)
	for _, key := range secretKeys {
		if strings.Contains(name, key) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSecret(name) {
			filtered[name] = redacted
			continue
		}
		filtered[name] = strings.Join(values, ", ")
	}
	return filtered
}

// filterSensitiveBody masks secret fields in JSON and form bodies. Anything else is dropped when it
// mentions a secret key at all.
func filterSensitiveBody(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err == nil {
		out, err := json.Marshal(redactJSON(doc))
		if err != nil {
			return redacted
		}
		return string(out)
	}

	if form, ok := parseForm(body); ok {
		for name := range form {
			if isSecret(name) {
				form[name] = []string{redacted}
			}
		}
		return form.Encode()
	}

	if isSecret(string(body)) {
		return "[FILTERED - contains sensitive data]"
	}
	return string(body)
}

func redactJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSecret(key) {
				out[key] = redacted
				continue
			}
			out[key] = redactJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redactJSON(item)
		}
		return out
	default:
		return v
	}
}

func parseForm(body []byte) (url.Values, bool) {
	s := string(body)
	if !strings.Contains(s, "=") || strings.ContainsAny(s, " \n\t{") {
		return nil, false
	}
	form, err := url.ParseQuery(s)
	if err != nil || len(form) == 0 {
		return nil, false
	}
	return form, true
}

// providerReferences pulls payment references out of a SNAP JSON body or a legacy form body.
func providerReferences(body []byte) []any {
	if len(body) == 0 {
		return nil
	}

	lookup := func(string) string { return "" }
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err == nil {
		lookup = func(key string) string {
			if s, ok := doc[key].(string); ok {
				return strings.TrimSpace(s)
			}
			return ""
		}
	} else if form, ok := parseForm(body); ok {
		lookup = form.Get
	}

	var refs []any
	for _, key := range referenceKeys {
		if v := lookup(key); v != "" {
			refs = append(refs, key, v)
		}
	}
	return refs
}
