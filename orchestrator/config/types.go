package config

// ServerConfig configures the orchestrator daemon
type ServerConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`
	// TLS towards the collector. The CA verifies it, cert and key authenticate us.
	OTLPClientCertFile string `toml:"otlp_client_cert_file" mapstructure:"otlp_client_cert_file"`
	OTLPClientKeyFile  string `toml:"otlp_client_key_file" mapstructure:"otlp_client_key_file"`
	OTLPCACertFile     string `toml:"otlp_ca_cert_file" mapstructure:"otlp_ca_cert_file"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`

	// Osmosis SQS config
	SqsURLs []string `toml:"sqs_urls" mapstructure:"sqs_urls"`

	// State store: memory, redis or postgres
	StoreBackend  string `toml:"store_backend" mapstructure:"store_backend"`
	RedisAddr     string `toml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `toml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `toml:"redis_db" mapstructure:"redis_db"`
	PostgresDSN   string `toml:"postgres_dsn" mapstructure:"postgres_dsn"`

	// Owner is the local account that owns the interchain accounts
	Owner string `toml:"owner" mapstructure:"owner"`
	// LocalRestURL is the cosmos REST endpoint balances are queried on
	LocalRestURL string `toml:"local_rest_url" mapstructure:"local_rest_url"`
	// DexConfigPath points to the connection and policy file of the dex
	DexConfigPath string `toml:"dex_config_path" mapstructure:"dex_config_path"`
}

// Store backends
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// DexConfig is the dex connection and the saga policy, read from a toml file
type DexConfig struct {
	Venue      string           `toml:"venue"`
	Connection ConnectionConfig `toml:"connection"`
	Policy     PolicyConfig     `toml:"policy"`
	Assets     []AssetConfig    `toml:"assets"`
	Profit     ProfitConfig     `toml:"profit"`
}

// AssetConfig names an asset on both chains. Origin "local" or "dex" derives the
// voucher of Denom over the configured transfer channel, assets native to a third
// chain give Local and Dex explicitly.
type AssetConfig struct {
	Denom  string `toml:"denom"`
	Origin string `toml:"origin"`
	Local  string `toml:"local"`
	Dex    string `toml:"dex"`
}

// Asset origins
const (
	OriginLocal = "local"
	OriginDex   = "dex"
)

// ProfitConfig configures the margin distribution, an empty treasury disables it
type ProfitConfig struct {
	Treasury string `toml:"treasury"`
	Reward   string `toml:"reward"`
}

type ConnectionConfig struct {
	ConnectionID       string `toml:"connection_id"`
	HostConnectionID   string `toml:"host_connection_id"`
	TransferChannel    string `toml:"transfer_channel"`
	DexTransferChannel string `toml:"dex_transfer_channel"`
	Bech32Prefix       string `toml:"bech32_prefix"`
}

// PolicyConfig holds durations as Go duration strings, e.g. "5m". Empty keeps the default.
type PolicyConfig struct {
	StepTimeout       string `toml:"step_timeout"`
	PacketTimeout     string `toml:"packet_timeout"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryDelay        string `toml:"retry_delay"`
	RecoveryDelay     string `toml:"recovery_delay"`
	TransferInPoll    string `toml:"transfer_in_poll"`
	TransferInTimeout string `toml:"transfer_in_timeout"`
	SlippageBps       uint32 `toml:"slippage_bps"`
}
