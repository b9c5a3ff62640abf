package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"neurod/internal/config"
	"neurod/internal/httpapi"
)

// serveFlags are shared by every `serve` subcommand.
type serveFlags struct {
	addr        string
	corsOrigins string
	swagger     bool
	requestLog  string
}

func (f *serveFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults NEUROD_ADDR or the service default)")
	fs.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	fs.BoolVar(&f.swagger, "swagger", false, "Serve API docs under /swagger/")
	fs.StringVar(&f.requestLog, "request-log", "", "Default per-request log level: off|error|info|debug")
}

// apply overlays flags the user set onto the config.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config, cors *config.CORSConfig) {
	fs := cmd.Flags()
	if fs.Changed("addr") {
		cfg.Server.Addr = f.addr
	}
	if fs.Changed("cors-origins") {
		cors.AllowedOrigins = splitCSV(f.corsOrigins)
		cors.Enabled = len(cors.AllowedOrigins) > 0
	}
	if fs.Changed("swagger") {
		cfg.Server.Swagger = f.swagger
	}
	if fs.Changed("request-log") {
		cfg.Log.Requests = f.requestLog
	}
}

// configureHTTP pushes server settings into the HTTP layer. It must run
// before the service router is built.
func (a *app) configureHTTP(cors config.CORSConfig) {
	s := a.cfg.Server
	httpapi.SetLogger(a.log)
	httpapi.SetDefaultLogLevel(a.cfg.Log.Requests)
	httpapi.SetMaxBodyBytes(s.MaxBodyBytes)
	httpapi.SetMaxUploadBytes(s.MaxUploadBytes)
	httpapi.SetRequestTimeout(time.Duration(s.RequestTimeoutSeconds) * time.Second)
	httpapi.SetSwaggerEnabled(s.Swagger)
	methods := cors.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := cors.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", httpapi.APIKeyHeader}
	}
	httpapi.SetCORSOptions(cors.Enabled, cors.AllowedOrigins, methods, headers, cors.AllowCredentials)
}

// listenAndServe runs h until ctx ends or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (a *app) listenAndServe(ctx context.Context, service string, h http.Handler) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Cancelling the base context flips /readyz and aborts in-flight work.
	httpapi.SetBaseContext(ctx)

	addr := a.cfg.ListenAddr(service)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("service", service).Str("addr", ln.Addr().String()).Msg("listening")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	a.log.Info().Str("service", service).Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
