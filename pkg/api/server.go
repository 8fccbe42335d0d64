package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hiredeck/hiredeck/pkg/jobs"
	"github.com/hiredeck/hiredeck/pkg/middleware"
	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// Server assembles the API router
type Server struct {
	router     *mux.Router
	reconciler *orgs.Reconciler
	jobService *jobs.Service
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// Options carries the middleware the server mounts. Auth is required;
// RateLimit may be nil when Redis is not configured.
type Options struct {
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
	TraceHTTP bool
}

// NewServer creates the API server and mounts all routes.
func NewServer(reconciler *orgs.Reconciler, jobService *jobs.Service, logger *observability.Logger, metrics *observability.Metrics, opts Options) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		reconciler: reconciler,
		jobService: jobService,
		logger:     logger,
		metrics:    metrics,
	}
	s.setupRoutes(opts)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(opts Options) {
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID))
	if opts.TraceHTTP {
		s.router.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "api")
		})
	}
	s.router.Use(s.requestMetrics)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(opts.Auth.Handler)
	// After auth, so authenticated callers are limited per user, not per IP.
	if opts.RateLimit != nil {
		v1.Use(opts.RateLimit.Handler)
	}

	// Org-scoped surface
	orgRouter := v1.PathPrefix("/orgs/{external_org_id}").Subrouter()
	orgRouter.HandleFunc("/bootstrap", s.Bootstrap).Methods("POST")
	orgRouter.HandleFunc("/repair", s.Repair).Methods("POST")
	orgRouter.HandleFunc("/dashboard", s.Dashboard).Methods("GET")
	orgRouter.HandleFunc("/jobs", s.ListOrgJobs).Methods("GET")
	orgRouter.HandleFunc("/jobs", s.CreateJob).Methods("POST")
	orgRouter.HandleFunc("/jobs/{job_id}", s.GetOrgJob).Methods("GET")
	orgRouter.HandleFunc("/jobs/{job_id}/applications/{application_id}/status", s.UpdateApplicationStatus).Methods("PUT")

	// Public/seeker surface
	v1.HandleFunc("/jobs", s.ListPublicJobs).Methods("GET")
	v1.HandleFunc("/jobs/{job_id}", s.GetPublicJob).Methods("GET")
	v1.HandleFunc("/jobs/{job_id}/apply", s.Apply).Methods("POST")
	v1.HandleFunc("/me/applications", s.ListMyApplications).Methods("GET")
}

var nowFunc = time.Now

// requestMetrics records request counts and latency per route.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := nowFunc()
		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		s.metrics.RecordHTTPRequest(r.Method, path, recorder.status, nowFunc().Sub(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
