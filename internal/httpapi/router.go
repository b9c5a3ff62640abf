package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"neurod/pkg/types"
)

// Options configures a service router.
type Options struct {
	// APIKey protects POST /predict. Empty rejects every protected call.
	APIKey string
	// UploadDir receives persisted uploads. Empty disables persistence
	// where it is optional (MRI).
	UploadDir string
	// Now is the clock used for upload names and /status; defaults to
	// time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// newRouter returns the chi router shared by every service: base middleware,
// probes, metrics, status and the optional docs UI. status fills in the
// service-specific parts of /status.
func newRouter(service string, opts Options, status func(*types.StatusResponse)) chi.Router {
	started := opts.now()
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   corsAllowedOrigins,
			AllowedMethods:   corsAllowedMethods,
			AllowedHeaders:   corsAllowedHeaders,
			AllowCredentials: corsAllowCredentials,
			MaxAge:           300,
		}))
	}
	r.Use(MetricsMiddleware(service))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Services are fully loaded before the router exists, so readiness only
	// flips once shutdown begins.
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if serverBaseCtx.Err() != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("draining"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		now := opts.now()
		resp := types.StatusResponse{
			Service:        service,
			AuthConfigured: opts.APIKey != "",
			UptimeSeconds:  int64(now.Sub(started).Seconds()),
			ServerTimeUnix: now.Unix(),
		}
		if status != nil {
			status(&resp)
		}
		writeJSON(w, resp)
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	if swaggerEnabled {
		mountSwagger(r, service)
	}
	return r
}
