// Package api serves assembled report payloads over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/chapter-report/internal/aggregate"
	"github.com/sells-group/chapter-report/internal/assemble"
	"github.com/sells-group/chapter-report/internal/compare"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
	"github.com/sells-group/chapter-report/internal/store"
)

// Service is the read side of the pipeline.
type Service interface {
	Periods(ctx context.Context, chapterID string) ([]model.Period, error)
	Period(ctx context.Context, chapterID string, period model.Period) (*report.PeriodReport, error)
	Aggregate(ctx context.Context, chapterID string, periods []model.Period) (*aggregate.Report, error)
	Compare(ctx context.Context, chapterID string, current, previous model.Period) (*compare.Result, error)
}

// Options configures the router middleware.
type Options struct {
	CORSOrigins []string
	RateLimit   float64 // requests per second, 0 disables
	RateBurst   int
}

// Handler wires report endpoints to the service.
type Handler struct {
	svc Service
}

// New constructs a Handler.
func New(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the report endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/chapters/{chapter}", func(r chi.Router) {
		r.Get("/periods", h.handlePeriods)
		r.Get("/periods/{period}", h.handlePeriod)
		r.Get("/aggregate", h.handleAggregate)
		r.Get("/compare", h.handleCompare)
	})
}

// NewRouter returns the full HTTP handler: recovery, CORS, rate limiting,
// the health check and the report endpoints.
func NewRouter(h *Handler, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RateLimit > 0 {
		r.Use(RateLimit(rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	h.Register(r)
	return r
}

// RateLimit rejects requests with 429 once limiter is exhausted.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) handlePeriods(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "chapter")
	periods, err := h.svc.Periods(r.Context(), chapterID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if periods == nil {
		periods = []model.Period{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"chapterId": chapterID, "periods": periods})
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Period(r.Context(), chi.URLParam(r, "chapter"), model.Period(chi.URLParam(r, "period")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assemble.Period(rep))
}

func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	periods := splitPeriods(r.URL.Query().Get("periods"))
	if len(periods) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "periods is required"})
		return
	}
	agg, err := h.svc.Aggregate(r.Context(), chi.URLParam(r, "chapter"), periods)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assemble.Aggregate(agg))
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	current, previous := strings.TrimSpace(q.Get("current")), strings.TrimSpace(q.Get("previous"))
	if current == "" || previous == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "current and previous are required"})
		return
	}
	res, err := h.svc.Compare(r.Context(), chi.URLParam(r, "chapter"), model.Period(current), model.Period(previous))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assemble.Comparison(res))
}

func splitPeriods(raw string) []model.Period {
	var out []model.Period
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, model.Period(p))
		}
	}
	return out
}

// statusFor maps domain and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrEmptyPeriodSet):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrSelfInteraction),
		errors.Is(err, model.ErrUnknownMember),
		errors.Is(err, model.ErrAxisMismatch),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, model.ErrDuplicateNormalized):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
