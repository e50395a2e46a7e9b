package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadServerConfig loads the daemon config from the toml file at configPath, or from
// ORCHESTRATOR_* env vars when configPath is nil
func LoadServerConfig(configPath *string) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store_backend", StoreMemory)
	v.SetDefault("service_name", "spectra-lease-orchestrator")
	v.SetDefault("max_concurrent_requests", 200)
}

func loadEnv(v *viper.Viper) (*ServerConfig, error) {
	// env can be applied through docker, systemd or other means, a missing .env is fine
	_ = godotenv.Load()
	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "otlp_client_cert_file", "otlp_client_key_file", "otlp_ca_cert_file",
		"development_mode", "sqs_urls",
		"store_backend", "redis_addr", "redis_password", "redis_db", "postgres_dsn",
		"owner", "local_rest_url", "dex_config_path",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*ServerConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}
	if len(config.SqsURLs) == 0 {
		return fmt.Errorf("sqs_urls is required")
	}
	for _, url := range config.SqsURLs {
		if url == "" {
			return fmt.Errorf("sqs_urls must not be empty")
		}
	}
	if config.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	if config.LocalRestURL == "" {
		return fmt.Errorf("local_rest_url is required")
	}
	if config.DexConfigPath == "" {
		return fmt.Errorf("dex_config_path is required")
	}
	if (config.OTLPClientCertFile == "") != (config.OTLPClientKeyFile == "") {
		return fmt.Errorf("otlp_client_cert_file and otlp_client_key_file go together")
	}

	switch config.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if config.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis store")
		}
	case StorePostgres:
		if config.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store_backend %q", config.StoreBackend)
	}
	return nil
}
