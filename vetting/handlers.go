package vetting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"risk-vetting-engine/metrics"
	"risk-vetting-engine/normalize"
	"risk-vetting-engine/risk"
)

// StatusClientClosedRequest is sent when the caller went away mid-scan.
const StatusClientClosedRequest = 499

const maxBodyBytes = 64 << 10

type ScanRequest struct {
	Input string `json:"input"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type reloadResponse struct {
	Entries int `json:"entries"`
}

type lookupResponse struct {
	Host     string    `json:"host"`
	Label    string    `json:"label,omitempty"`
	Found    bool      `json:"found"`
	Entries  int       `json:"entries"`
	LoadedAt time.Time `json:"loadedAt"`
}

// SafeListAdmin is the part of the safe-list the API exposes.
type SafeListAdmin interface {
	Lookup(host string) (string, bool)
	Reload(ctx context.Context) (int, error)
	Len() int
	LoadedAt() time.Time
}

type ServerOptions struct {
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
}

type Handler struct {
	engine *Engine
	safe   SafeListAdmin
	logger *zap.SugaredLogger
}

func NewHandler(engine *Engine, safe SafeListAdmin, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{engine: engine, safe: safe, logger: logger}
}

// Router mounts the API with request IDs, panic recovery, a request timeout,
// a global token-bucket limit and request logging.
func (h *Handler) Router(opts ServerOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = rate.Inf
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(rate.NewLimiter(opts.RateLimit, opts.RateBurst)))
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/scan", func(r chi.Router) {
			r.Post("/url", h.scan(h.engine.ScanURL))
			r.Post("/qr", h.scan(h.engine.ScanQR))
			r.Post("/text", h.scan(h.engine.ScanText))
			r.Post("/phone", h.scan(h.engine.ScanPhone))
			r.Post("/bank", h.scan(h.engine.ScanBankAccount))
		})
		r.Route("/safelist", func(r chi.Router) {
			r.Post("/reload", h.reloadSafeList)
			r.Get("/lookup", h.lookupSafeList)
		})
	})
	return r
}

type scanFunc func(ctx context.Context, input string) (risk.Verdict, error)

func (h *Handler) scan(fn scanFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScanRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		v, err := fn(r.Context(), req.Input)
		if err != nil {
			h.writeScanError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) writeScanError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrPhoneTooShort):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		w.WriteHeader(StatusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		// the timeout middleware answers 504
	default:
		h.logger.Errorw("[API] scan failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) reloadSafeList(w http.ResponseWriter, r *http.Request) {
	n, err := h.safe.Reload(r.Context())
	if err != nil {
		h.logger.Warnw("[API] safe-list reload failed", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "trust source unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, reloadResponse{Entries: n})
}

func (h *Handler) lookupSafeList(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	if host == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "host required"})
		return
	}
	if strings.Contains(host, "/") {
		host = normalize.Host(host)
	}
	label, ok := h.safe.Lookup(host)
	writeJSON(w, http.StatusOK, lookupResponse{
		Host:     normalize.StripWWW(host),
		Label:    label,
		Found:    ok,
		Entries:  h.safe.Len(),
		LoadedAt: h.safe.LoadedAt(),
	})
}

func rateLimit(l *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.HTTPDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
		h.logger.Infow("[API] request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
