// Package v1handler serves the v1 JSON API: redirect resolution and payload
// analysis, with optional bearer authentication and per-client rate limiting.
package v1handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"qrshield/internal/analyzer"
	"qrshield/pkg/controller"
	"qrshield/pkg/logger"
	"qrshield/pkg/ratelimit"
	"qrshield/pkg/serrors"
	"strconv"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

const (
	// maxBodyBytes bounds request bodies; URLs themselves are bounded by the analyzer.
	maxBodyBytes = 64 << 10

	contentTypeJSON   = "application/json"
	contentTypeNDJSON = "application/x-ndjson"
)

// Limiter admits requests per client key. *ratelimit.FixedWindow satisfies it.
type Limiter interface {
	Allow(key string) ratelimit.Decision
}

// Deps are the collaborators of the v1 handlers. A nil Limiter admits every request.
type Deps struct {
	Analyzer analyzer.Analyzer
	Limiter  Limiter
}

// Handler serves the v1 API.
type Handler struct {
	deps Deps
	sec  *SecHandler
	mux  *http.ServeMux
	now  func() time.Time
}

var _ http.Handler = (*Handler)(nil)

// New creates a Handler. A nil sec disables authentication.
func New(deps Deps, sec *SecHandler) *Handler {
	if sec == nil {
		sec = &SecHandler{}
	}

	h := &Handler{deps: deps, sec: sec, mux: http.NewServeMux(), now: time.Now}
	h.mux.HandleFunc("POST /v1/resolve", h.guard(h.Resolve))
	h.mux.HandleFunc("POST /v1/analyze", h.guard(h.Analyze))
	h.mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		h.writeError(r.Context(), w, serrors.With(serrors.ErrNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// guard authenticates and admits a request before calling next.
func (h *Handler) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, err := h.sec.authenticate(r)
		if err != nil {
			h.writeError(r.Context(), w, err)

			return
		}

		if h.deps.Limiter != nil {
			key := "ip:" + controller.GetClientIP(r)
			if userID, ok := GetUserIDFromContext(ctx); ok {
				key = "user:" + userID.String()
			}

			decision := h.deps.Limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			if !decision.Allowed {
				logger.Info(ctx, "request rate limited", zap.String("key", key))
				h.writeError(ctx, w, serrors.RateLimited(decision.ResetAt, "rate limit of %d requests exceeded", decision.Limit))

				return
			}
		}

		next(w, r.WithContext(ctx))
	}
}

func readRequest(w http.ResponseWriter, r *http.Request) (request, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return request{}, serrors.Wrap(serrors.ErrBadRequest, err, "request body too large")
		}

		return request{}, serrors.Wrap(serrors.ErrBadRequest, err, "could not read request body")
	}

	return decodeRequest(b)
}

// Resolve expands the redirect chain of the requested URL.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := readRequest(w, r)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	exp, err := h.deps.Analyzer.Resolve(ctx, req.URL, analyzer.WithForce(req.Force))
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	envelope(e, "analysis", func(e *jx.Encoder) { encodeExpansion(e, req.URL, exp) })
	writeJSON(w, http.StatusOK, e.Bytes())
}

// wantsStream reports whether the client asked for newline delimited JSON.
func wantsStream(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Accept"))

	return err == nil && mediaType == contentTypeNDJSON
}

// Analyze scores the requested payload. With Accept: application/x-ndjson the
// local report is flushed first, a resolving report follows every confirmed
// redirect and the resolved report comes last, one per line.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := readRequest(w, r)
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	stream := wantsStream(r)
	reports, err := h.deps.Analyzer.Inspect(ctx, req.URL, analyzer.WithForce(req.Force), analyzer.WithProgress(stream))
	if err != nil {
		h.writeError(ctx, w, err)

		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	if !stream {
		// only the final report is returned
		for rep := range reports {
			e.Reset()
			envelope(e, "result", func(e *jx.Encoder) { encodeReport(e, rep) })
		}
		writeJSON(w, http.StatusOK, e.Bytes())

		return
	}

	w.Header().Set("Content-Type", contentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for rep := range reports {
		e.Reset()
		envelope(e, "result", func(e *jx.Encoder) { encodeReport(e, rep) })
		if _, err := w.Write(append(e.Bytes(), '\n')); err != nil {
			logger.Debug(ctx, "client went away during stream", zap.Error(err))

			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// ErrorStatusCode is an error response before encoding.
type ErrorStatusCode struct {
	StatusCode int
	Response   ErrorBody
	RetryAt    time.Time
}

// NewError maps err to an HTTP status and a client-safe body. Internal
// errors are logged and never echoed.
func (h *Handler) NewError(ctx context.Context, err error) *ErrorStatusCode {
	kind := serrors.KindOf(err)

	var se *serrors.Error
	message := ""
	if errors.As(err, &se) {
		message = se.Message()
	}

	res := &ErrorStatusCode{Response: ErrorBody{Code: kind.Error(), Message: message}}
	switch kind {
	case serrors.ErrBadRequest:
		res.StatusCode = http.StatusBadRequest
		if message == "" {
			res.Response.Message = "bad request"
		}
	case serrors.ErrUnauthorized:
		res.StatusCode = http.StatusUnauthorized
		if message == "" {
			res.Response.Message = "unauthorized"
		}
	case serrors.ErrNotFound:
		res.StatusCode = http.StatusNotFound
		if message == "" {
			res.Response.Message = "resource not found"
		}
	case serrors.ErrRateLimited:
		res.StatusCode = http.StatusTooManyRequests
		if message == "" {
			res.Response.Message = "too many requests"
		}
		if se != nil && !se.RetryAt().IsZero() {
			res.RetryAt = se.RetryAt()
			wait := se.RetryAt().Sub(h.now())
			res.Response.RetryAfter = max(int((wait+time.Second-1)/time.Second), 1)
		}
	case serrors.ErrTimeout:
		res.StatusCode = http.StatusGatewayTimeout
		res.Response.Message = "request timed out"
	case serrors.ErrUnavailable:
		res.StatusCode = http.StatusServiceUnavailable
		res.Response.Message = "service unavailable"
		logger.Warn(ctx, "dependency unavailable", zap.Error(err))
	default:
		res.StatusCode = http.StatusInternalServerError
		res.Response.Code = serrors.ErrInternal.Error()
		res.Response.Message = "internal error"
		logger.Error(ctx, err.Error())
	}

	return res
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	res := h.NewError(ctx, err)
	if res.Response.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(res.Response.RetryAfter))
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeError(e, res.Response)
	writeJSON(w, res.StatusCode, e.Bytes())
}
