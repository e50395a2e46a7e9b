package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Cogwheel-Validator/spectra-lease/chain/rest"
	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/lease"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/alarms"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/config"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/engine"
	"github.com/Cogwheel-Validator/spectra-lease/orchestrator/rpc"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/profit"
	"github.com/Cogwheel-Validator/spectra-lease/store"
	"github.com/Cogwheel-Validator/spectra-lease/store/postgres"
	"github.com/Cogwheel-Validator/spectra-lease/store/redis"
	"github.com/Cogwheel-Validator/spectra-lease/swap/osmosis"
	sqsquery "github.com/Cogwheel-Validator/spectra-lease/swap/sqs_query"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	rpc.SetLogger(log.With().Str("component", "rpc").Logger())
	engine.SetLogger(log.With().Str("component", "engine").Logger())
	alarms.SetLogger(log.With().Str("component", "alarms").Logger())
}

func main() {
	configPath := flag.String("config", "", "toml config of the daemon, ORCHESTRATOR_* env vars are used when empty")
	flag.Parse()

	var path *string
	if *configPath != "" {
		path = configPath
	}
	cfg, err := config.LoadServerConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load server config")
	}

	dexConfig, err := config.LoadDexConfig(cfg.DexConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dex config")
	}
	connection, err := dexConfig.DexConnection()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dex connection")
	}
	policy, err := dexConfig.DexPolicy()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid saga policy")
	}
	denoms, err := dexConfig.DexDenoms()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dex assets")
	}
	profitConfig, distribute, err := dexConfig.DexProfit()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid profit distribution")
	}
	if err := platform.ValidateAddress(cfg.Owner, ""); err != nil {
		log.Fatal().Err(err).Str("owner", cfg.Owner).Msg("Invalid owner address")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stateStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open state store")
	}
	defer stateStore.Close()

	sqsClient, err := sqsquery.NewClient(cfg.SqsURLs, sqsquery.DefaultFailoverConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create SQS client")
	}
	defer sqsClient.Close()

	restClient, err := rest.NewClient(cfg.LocalRestURL, 10*time.Second, 2, 500*time.Millisecond)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create REST client")
	}
	if node, err := restClient.NodeStatus(); err != nil {
		log.Warn().Err(err).Str("url", cfg.LocalRestURL).Msg("Local chain not reachable yet")
	} else {
		log.Info().Str("network", node.Network).Str("app", node.AppName).Str("version", node.AppVersion).Msg("Connected to local chain")
	}

	env := dex.Env{
		Owner:      cfg.Owner,
		Connection: connection,
		Policy:     policy,
		Swap:       osmosis.NewVenue(),
		Paths:      osmosis.NewResolver(sqsClient),
		Balances:   restClient,
		Denoms:     denoms,
		IDs:        dex.UUIDs(),
		Log:        log.With().Str("component", "dex").Logger(),
	}

	leases := engine.New[lease.State](lease.Workflow{Due: policy.StepTimeout}, store.NewNamespace(stateStore, "lease/"), env)
	leaseAlarms := alarms.New(leases.Wake, alarms.DefaultConfig())
	leases.SetScheduler(leaseAlarms)
	schedulers := []*alarms.Scheduler{leaseAlarms}

	var profitServer *rpc.ProfitServer
	if distribute {
		profits := engine.New[profit.State](profit.Workflow{Due: policy.StepTimeout}, store.NewNamespace(stateStore, "profit/"), env)
		profitAlarms := alarms.New(profits.Wake, alarms.DefaultConfig())
		profits.SetScheduler(profitAlarms)
		schedulers = append(schedulers, profitAlarms)
		profitServer = rpc.NewProfitServer(profits, profitConfig)

		if _, err := profits.Resume(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to resume profit distribution")
		}
		log.Info().Str("treasury", profitConfig.Treasury).Str("reward", profitConfig.Reward).Msg("Profit distribution enabled")
	} else {
		log.Warn().Msg("No profit treasury configured, profit distribution disabled")
	}

	for _, scheduler := range schedulers {
		go func(scheduler *alarms.Scheduler) {
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Alarm scheduler stopped")
			}
		}(scheduler)
	}

	resumed, err := leases.Resume(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resume sagas")
	}
	log.Info().Int("resumed", resumed).Msg("Sagas resumed")

	serverConfig := buildServerConfig(cfg)
	serverConfig.Ready = func(ctx context.Context) error {
		_, err := restClient.NodeStatus()
		return err
	}
	server, err := rpc.NewServer(ctx, serverConfig, rpc.NewLeaseServer(leases), profitServer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	cancel()
	pending := 0
	for _, scheduler := range schedulers {
		pending += scheduler.Pending()
	}
	log.Info().Int("pending_alarms", pending).Msg("Alarm schedulers stopped")
}

func openStore(ctx context.Context, cfg *config.ServerConfig) (store.StateStore, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		s := redis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		return s, nil
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	case config.StoreMemory:
		log.Warn().Msg("Using the in-memory store, sagas are lost on restart")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// buildServerConfig converts the loaded config to rpc.ServerConfig
func buildServerConfig(cfg *config.ServerConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.UsePrometheus,
	}

	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:        defaultString(cfg.ServiceName, "spectra-lease-orchestrator"),
			ServiceVersion:     defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:        defaultString(cfg.Environment, "development"),
			EnableTracing:      cfg.EnableTracing,
			UseOTLPTraces:      cfg.UseOTLPTraces,
			OTLPTracesURL:      cfg.OTLPTracesURL,
			EnableMetrics:      cfg.EnableMetrics,
			UsePrometheus:      cfg.UsePrometheus,
			UseOTLPMetrics:     cfg.UseOTLPMetrics,
			OTLPMetricsURL:     cfg.OTLPMetricsURL,
			EnableLogs:         cfg.EnableLogs,
			UseOTLPLogs:        cfg.UseOTLPLogs,
			OTLPLogsURL:        cfg.OTLPLogsURL,
			InsecureOTLP:       cfg.InsecureOTLP,
			OTLPClientCertFile: cfg.OTLPClientCertFile,
			OTLPClientKeyFile:  cfg.OTLPClientKeyFile,
			OTLPCACertFile:     cfg.OTLPCACertFile,
			DevelopmentMode:    cfg.DevelopmentMode,
		}
	}
	return serverConfig
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
