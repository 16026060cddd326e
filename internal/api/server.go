// Package api serves cluster detection over HTTP.
package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/buscluster/internal/chart"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/httputil"
	"github.com/banshee-data/buscluster/internal/monitoring"
	"github.com/banshee-data/buscluster/internal/pipeline"
	"github.com/banshee-data/buscluster/internal/telemetry"
	"github.com/banshee-data/buscluster/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Banner is the message returned by GET /.
const Banner = "Bus Clustering Detection API"

// Transport labels HTTP requests in metrics and the archive.
const Transport = "http"

// RequestIDHeader carries the per-request ID.
const RequestIDHeader = "X-Request-ID"

// AdminMounter attaches debug routes to a mux.
type AdminMounter interface {
	AttachAdminRoutes(mux *http.ServeMux) error
}

type Server struct {
	pipeline *pipeline.Pipeline
	metrics  *monitoring.Metrics
	admin    AdminMounter
}

// NewServer creates the HTTP server. metrics and admin may be nil.
func NewServer(p *pipeline.Pipeline, metrics *monitoring.Metrics, admin AdminMounter) *Server {
	return &Server{pipeline: p, metrics: metrics, admin: admin}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, duration and request ID.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms id=%s",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
			w.Header().Get(RequestIDHeader),
		)
	})
}

// RequestIDMiddleware echoes a client-supplied X-Request-ID or assigns a new one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// ServeMux registers every route. Admin routes are mounted only when an
// admin mounter was supplied.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/detect-clusters", s.handleDetect)
	mux.HandleFunc("/detect-clusters/chart", s.handleChart)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	if s.admin != nil {
		if err := s.admin.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("admin routes disabled: %v", err)
		}
	}
	return mux
}

// Handler wraps the mux with request IDs, CORS and access logging.
func (s *Server) Handler(cors CORSConfig) http.Handler {
	return LoggingMiddleware(RequestIDMiddleware(CORS(cors)(s.ServeMux())))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, httputil.Info{Message: Banner, Version: version.Version})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	out, ok := s.run(w, r)
	if !ok {
		return
	}
	if out.RunID != "" {
		w.Header().Set("X-Run-ID", out.RunID)
	}
	httputil.WriteJSONOK(w, out.Result)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	out, ok := s.run(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := chart.RenderHTML(&buf, out.Points, out.Result); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

// run executes the pipeline and writes the error response on failure.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*pipeline.Outcome, bool) {
	out, err := s.pipeline.Run(r.Context(), Transport, http.MaxBytesReader(w, r.Body, telemetry.MaxRequestBytes))
	if err == nil {
		return out, true
	}
	if errors.Is(err, detect.ErrInvalidInput) {
		httputil.BadRequest(w, pipeline.Detail(err))
	} else {
		httputil.InternalServerError(w, pipeline.Detail(err))
	}
	return nil, false
}
