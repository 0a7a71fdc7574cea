package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"medsales/m/internal/metrics"
	"medsales/m/internal/report"
	"medsales/m/internal/store"
)

// DefaultTokenTTL is how long a session id stays valid.
const DefaultTokenTTL = 12 * time.Hour

const maxBodyBytes = 1 << 20

var reportFile = regexp.MustCompile(`^[A-Za-z0-9_.-]+\.(pdf|xlsx)$`)

// Options configures a Handler. Zero values get defaults.
type Options struct {
	Secret    string
	PublicURL string
	StaticDir string
	Reports   *report.Writer
	Logger    *zap.Logger
	Metrics   *metrics.RPC
	Gatherer  prometheus.Gatherer
	TokenTTL  time.Duration
	Now       func() time.Time
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	secret    string
	publicURL string
	staticDir string
	reports   *report.Writer
	log       *zap.Logger
	metrics   *metrics.RPC
	gatherer  prometheus.Gatherer
	tokenTTL  time.Duration
	now       func() time.Time
	functions map[string]function
}

// New constructs a Handler.
func New(st *store.Store, opts Options) *Handler {
	h := &Handler{
		store:     st,
		secret:    opts.Secret,
		publicURL: opts.PublicURL,
		staticDir: opts.StaticDir,
		reports:   opts.Reports,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		gatherer:  opts.Gatherer,
		tokenTTL:  opts.TokenTTL,
		now:       opts.Now,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.tokenTTL <= 0 {
		h.tokenTTL = DefaultTokenTTL
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.reports == nil {
		h.reports = report.NewWriter("reports")
	}
	h.functions = h.registry()
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Post("/exec", h.execPost)
	r.Get("/exec", h.execGet)

	r.Get("/reports/{file}", h.downloadReport)

	if h.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(h.gatherer))
	}
	if h.staticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticDir)))
		r.Handle("/static/*", cacheFor(time.Hour, fs))
	}
	return r
}

// requestLogger logs each request without its query string, which carries
// credentials and session ids in JSONP calls.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		defer func() {
			h.log.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(started)))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) downloadReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if !reportFile.MatchString(name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, filepath.Join(h.reports.Dir(), name))
}

func cacheFor(d time.Duration, next http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(int(d.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", value)
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}
