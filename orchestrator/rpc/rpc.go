package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

// ServerConfig holds configuration for the RPC server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         *int
	MaxConcurrentRequests *int
	OTelConfig            *OTelConfig
	// Ready backs /server/ready, nil always reports ready
	Ready func(ctx context.Context) error
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() *ServerConfig {
	rateLimit := 0
	maxConcurrentRequests := 200
	return &ServerConfig{
		Address:               "localhost:8080",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8080"},
		EnableMetrics:         true,
		RatePerMinute:         &rateLimit,
		MaxConcurrentRequests: &maxConcurrentRequests,
		OTelConfig:            DefaultOTelConfig(),
	}
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	mux          *chi.Mux
	otelShutdown func(context.Context) error
}

// NewServer creates the RPC server of the lease and profit services
func NewServer(ctx context.Context, config *ServerConfig, leases *LeaseServer, profits *ProfitServer) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}

	var otelShutdown func(context.Context) error
	if config.OTelConfig != nil && (config.OTelConfig.EnableTracing || config.OTelConfig.EnableMetrics || config.OTelConfig.EnableLogs) {
		shutdown, err := NewOTelSDK(ctx, config.OTelConfig)
		if err != nil {
			// the daemon keeps running without telemetry
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()
	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Compress(5))
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(realIPMiddleware)

	if config.RatePerMinute != nil && *config.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(*config.RatePerMinute, 1*time.Minute))
	}
	if config.MaxConcurrentRequests != nil && *config.MaxConcurrentRequests > 0 {
		mux.Use(middleware.Throttle(*config.MaxConcurrentRequests))
	}

	if metricsEnabled(config) {
		mux.Handle("/server/metrics", promhttp.Handler())
		Logger.Info().Msg("Metrics endpoint enabled: /server/metrics")
	}

	mux.HandleFunc("/server/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "lease-orchestrator"})
	})

	mux.HandleFunc("/server/ready", func(w http.ResponseWriter, r *http.Request) {
		if config.Ready != nil {
			if err := config.Ready(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	connectOpts := []connect.HandlerOption{
		connect.WithRecover(recoverHandler),
		connect.WithInterceptors(
			loggingInterceptor(),
			noCacheInterceptor(),
		),
	}
	if config.OTelConfig != nil && config.OTelConfig.EnableTracing {
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			Logger.Warn().Err(err).Msg("Failed to create OTEL interceptor, continuing without it")
		} else {
			connectOpts = append(connectOpts, connect.WithInterceptors(otelInterceptor))
		}
	}

	path, handler := leases.Handler(connectOpts...)
	mux.Handle(path+"*", handler)
	if profits != nil {
		path, handler = profits.Handler(connectOpts...)
		mux.Handle(path+"*", handler)
	}

	corsHandler := newCORSHandler(config.AllowedOrigins, mux)

	// h2c serves HTTP/2 without TLS for gRPC clients
	httpServer := &http.Server{
		Addr:              config.Address,
		Handler:           h2c.NewHandler(corsHandler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		config:       config,
		httpServer:   httpServer,
		mux:          mux,
		otelShutdown: otelShutdown,
	}, nil
}

// Handler exposes the full handler chain, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving RPC requests without TLS
func (s *Server) Start() error {
	s.logServerInfo("http")
	return s.httpServer.ListenAndServe()
}

// StartTLS begins serving RPC requests with TLS
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logServerInfo("https")
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) logServerInfo(protocol string) {
	Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Msg("Spectra lease orchestrator starting")

	Logger.Info().Msg("Available endpoints:")
	Logger.Info().Msgf("\tRPC: /%s/*", LeaseServiceName)
	Logger.Info().Msgf("\tRPC: /%s/*", ProfitServiceName)
	Logger.Info().Msg("\tHealth: /server/health")
	Logger.Info().Msg("\tReady: /server/ready")
	if metricsEnabled(s.config) {
		Logger.Info().Msg("\tMetrics: /server/metrics")
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down RPC server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	// flush pending telemetry after the last request
	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}

func metricsEnabled(config *ServerConfig) bool {
	return config.EnableMetrics || (config.OTelConfig != nil && config.OTelConfig.UsePrometheus)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// recoverHandler handles panics in RPC handlers
func recoverHandler(ctx context.Context, spec connect.Spec, header http.Header, p any) error {
	Logger.Error().
		Interface("panic", p).
		Str("procedure", spec.Procedure).
		Msg("Panic in RPC handler")
	return connect.NewError(connect.CodeInternal, fmt.Errorf("internal server error"))
}
