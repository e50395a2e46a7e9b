package rpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// OTelConfig configures OpenTelemetry exporters
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	EnableTracing bool
	UseOTLPTraces bool
	OTLPTracesURL string

	EnableMetrics  bool
	UsePrometheus  bool
	UseOTLPMetrics bool
	OTLPMetricsURL string

	EnableLogs  bool
	UseOTLPLogs bool
	OTLPLogsURL string

	// InsecureOTLP allows unencrypted connections to OTLP endpoints.
	// Only for local development.
	InsecureOTLP bool

	// Client side TLS towards the observability backend
	OTLPClientCertFile string
	OTLPClientKeyFile  string
	OTLPCACertFile     string

	// DevelopmentMode uses stdout exporters
	DevelopmentMode bool
}

// DefaultOTelConfig returns the configuration used when none is given
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "spectra-lease-orchestrator",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		EnableTracing:  true,
		UseOTLPTraces:  true,
		OTLPTracesURL:  "http://localhost:4318/v1/traces",
		EnableMetrics:  true,
		UsePrometheus:  true,
		OTLPMetricsURL: "http://localhost:4318/v1/metrics",
		// zerolog handles application logs
		EnableLogs:  false,
		OTLPLogsURL: "http://localhost:4318/v1/logs",
	}
}

// NewOTelSDK bootstraps the OpenTelemetry pipeline with the given configuration.
// If it does not return an error, make sure to call the shutdown function for proper cleanup.
func NewOTelSDK(ctx context.Context, config *OTelConfig) (func(context.Context) error, error) {
	if config == nil {
		config = DefaultOTelConfig()
	}

	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}
	fail := func(err error) (func(context.Context) error, error) {
		return shutdown, errors.Join(err, shutdown(ctx))
	}

	res, err := newResource(config)
	if err != nil {
		return shutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if config.EnableTracing {
		tracerProvider, err := newTracerProvider(ctx, res, config)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otel.SetTracerProvider(tracerProvider)
	}

	if config.EnableMetrics {
		meterProvider, err := newMeterProvider(ctx, res, config)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)
	}

	if config.EnableLogs {
		loggerProvider, err := newLoggerProvider(ctx, res, config)
		if err != nil {
			return fail(err)
		}
		shutdownFuncs = append(shutdownFuncs, loggerProvider.Shutdown)
		global.SetLoggerProvider(loggerProvider)
	}

	return shutdown, nil
}

func newResource(config *OTelConfig) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironmentName(config.Environment),
		),
	)
}

// otlpTLS returns the client TLS config of OTLP exporters, nil when the defaults apply
func otlpTLS(config *OTelConfig) (*tls.Config, error) {
	if config.InsecureOTLP || (config.OTLPCACertFile == "" && config.OTLPClientCertFile == "") {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if config.OTLPCACertFile != "" {
		caCert, err := os.ReadFile(config.OTLPCACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	if config.OTLPClientCertFile != "" && config.OTLPClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(config.OTLPClientCertFile, config.OTLPClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource, config *OTelConfig) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch {
	case config.DevelopmentMode:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
	case config.UseOTLPTraces:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(config.OTLPTracesURL)}
		if config.InsecureOTLP {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if tlsConfig, err := otlpTLS(config); err != nil {
			return nil, fmt.Errorf("failed to build TLS config for traces: %w", err)
		} else if tlsConfig != nil {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(tlsConfig))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
	default:
		return trace.NewTracerProvider(trace.WithResource(res)), nil
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, config *OTelConfig) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(res)}

	// pull based, served on /server/metrics through the default registry
	if config.UsePrometheus {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(exporter))
	}

	if config.UseOTLPMetrics {
		if config.DevelopmentMode {
			exporter, err := stdoutmetric.New()
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
			}
			opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(10*time.Second))))
		} else {
			otlpOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(config.OTLPMetricsURL)}
			if config.InsecureOTLP {
				otlpOpts = append(otlpOpts, otlpmetrichttp.WithInsecure())
			} else if tlsConfig, err := otlpTLS(config); err != nil {
				return nil, fmt.Errorf("failed to build TLS config for metrics: %w", err)
			} else if tlsConfig != nil {
				otlpOpts = append(otlpOpts, otlpmetrichttp.WithTLSClientConfig(tlsConfig))
			}
			exporter, err := otlpmetrichttp.New(ctx, otlpOpts...)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
			}
			opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(60*time.Second))))
		}
	}

	return metric.NewMeterProvider(opts...), nil
}

func newLoggerProvider(ctx context.Context, res *resource.Resource, config *OTelConfig) (*log.LoggerProvider, error) {
	var exporter log.Exporter
	var err error

	switch {
	case config.DevelopmentMode:
		exporter, err = stdoutlog.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout log exporter: %w", err)
		}
	case config.UseOTLPLogs:
		opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(config.OTLPLogsURL)}
		if config.InsecureOTLP {
			opts = append(opts, otlploghttp.WithInsecure())
		} else if tlsConfig, err := otlpTLS(config); err != nil {
			return nil, fmt.Errorf("failed to build TLS config for logs: %w", err)
		} else if tlsConfig != nil {
			opts = append(opts, otlploghttp.WithTLSClientConfig(tlsConfig))
		}
		exporter, err = otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
	default:
		return log.NewLoggerProvider(log.WithResource(res)), nil
	}

	return log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(exporter)),
		log.WithResource(res),
	), nil
}
