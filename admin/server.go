package admin

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/metric"
	"github.com/ringwire/streamserver/pkg/security"
	"github.com/ringwire/streamserver/pkg/tlsutil"
	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

// Config controls which admin endpoints come up and how the server binds.
type Config struct {
	Addr        string // e.g. ":6381"
	MetricsPath string // default "/metrics"
	EnablePprof bool
	TLS         security.ServerTLSConfig
}

func (c Config) metricsPath() string {
	if c.MetricsPath == "" {
		return "/metrics"
	}
	return c.MetricsPath
}

// ReloadFunc is called by POST /reload once the request body has passed
// schema validation (see reload.go); it returns an error to report back to
// the caller as a 500.
type ReloadFunc func(body []byte) error

// Server is the admin HTTP surface: status, metrics, health, optional
// pprof, and an optional guarded config-reload endpoint.
type Server struct {
	Registry        *registry.Registry
	Ring            *ring.Ring
	MetricsRegistry *metric.MetricsRegistry
	Config          Config
	Reload          ReloadFunc

	mu           sync.Mutex
	httpServer   *http.Server
	acmeCleanup  func()
	shuttingDown bool
}

// NewServer builds an admin Server; call Start to bind and begin serving.
func NewServer(reg *registry.Registry, r *ring.Ring, metricsReg *metric.MetricsRegistry, cfg Config) *Server {
	return &Server{
		Registry:        reg,
		Ring:            r,
		MetricsRegistry: metricsReg,
		Config:          cfg,
	}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/clients", s.handleClients)

	if s.MetricsRegistry != nil {
		handler := promhttp.HandlerFor(s.MetricsRegistry.PrometheusRegistry(), promhttp.HandlerOpts{EnableOpenMetrics: true})
		mux.Handle(s.Config.metricsPath(), handler)
	}

	if s.Reload != nil {
		mux.HandleFunc("/reload", s.handleReload)
	}

	if s.Config.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

// Start binds the admin listener and serves until Shutdown is called.
// Start blocks; callers run it in its own goroutine. ACME-issued TLS is
// used when Config.TLS.Mode is "acme"; a background renewal loop runs
// for the lifetime of the server and is stopped by Shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "admin", "Start", "admin server already running")
	}
	srv := &http.Server{Addr: s.Config.Addr, Handler: s.mux()}

	if s.Config.TLS.Enabled {
		tlsConfig, cleanup, err := tlsutil.LoadServerTLSConfigWithACME(ctx, s.Config.TLS)
		if err != nil {
			s.mu.Unlock()
			return errors.WrapFatal(err, "admin", "Start", "load TLS config")
		}
		srv.TLSConfig = tlsConfig
		s.acmeCleanup = cleanup
	}
	s.httpServer = srv
	s.mu.Unlock()

	var err error
	if s.Config.TLS.Enabled {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return errors.WrapTransient(err, "admin", "Start", fmt.Sprintf("serve on %s", s.Config.Addr))
	}
	return nil
}

// Shutdown gracefully stops the admin server and any ACME renewal loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	cleanup := s.acmeCleanup
	s.shuttingDown = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	if cleanup != nil {
		cleanup()
	}
	return err
}

func idString(id registry.UnitID) string {
	return strconv.FormatUint(uint64(id), 10)
}
