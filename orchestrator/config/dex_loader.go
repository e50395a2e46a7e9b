package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Cogwheel-Validator/spectra-lease/dex"
	"github.com/Cogwheel-Validator/spectra-lease/platform"
	"github.com/Cogwheel-Validator/spectra-lease/profit"
	"github.com/Cogwheel-Validator/spectra-lease/swap/osmosis"
)

// LoadDexConfig reads the dex connection and saga policy from a toml file
func LoadDexConfig(filePath string) (*DexConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dex config file: %w", err)
	}

	var config DexConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if config.Venue == "" {
		config.Venue = osmosis.VenueName
	}
	if config.Venue != osmosis.VenueName {
		return nil, fmt.Errorf("unsupported venue %q", config.Venue)
	}
	return &config, nil
}

// DexConnection converts the connection section
func (c *DexConfig) DexConnection() (dex.Connection, error) {
	conn := dex.Connection{
		ConnectionID:       c.Connection.ConnectionID,
		HostConnectionID:   c.Connection.HostConnectionID,
		TransferChannel:    c.Connection.TransferChannel,
		DexTransferChannel: c.Connection.DexTransferChannel,
		Bech32Prefix:       c.Connection.Bech32Prefix,
	}

	var errs []error
	if conn.ConnectionID == "" || conn.HostConnectionID == "" {
		errs = append(errs, errors.New("connection_id and host_connection_id are required"))
	}
	if conn.TransferChannel == "" || conn.DexTransferChannel == "" {
		errs = append(errs, errors.New("transfer_channel and dex_transfer_channel are required"))
	}
	if conn.Bech32Prefix == "" {
		errs = append(errs, errors.New("bech32_prefix is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return dex.Connection{}, err
	}
	return conn, nil
}

// DexPolicy converts the policy section on top of dex.DefaultPolicy
func (c *DexConfig) DexPolicy() (dex.Policy, error) {
	policy := dex.DefaultPolicy()
	p := c.Policy

	durations := []struct {
		key   string
		value string
		into  *time.Duration
	}{
		{"step_timeout", p.StepTimeout, &policy.StepTimeout},
		{"packet_timeout", p.PacketTimeout, &policy.PacketTimeout},
		{"retry_delay", p.RetryDelay, &policy.RetryDelay},
		{"recovery_delay", p.RecoveryDelay, &policy.RecoveryDelay},
		{"transfer_in_poll", p.TransferInPoll, &policy.TransferInPoll},
		{"transfer_in_timeout", p.TransferInTimeout, &policy.TransferInTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return dex.Policy{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if parsed <= 0 {
			return dex.Policy{}, fmt.Errorf("%s must be positive", d.key)
		}
		*d.into = parsed
	}

	if p.MaxAttempts < 0 {
		return dex.Policy{}, fmt.Errorf("max_attempts must not be negative")
	}
	if p.MaxAttempts > 0 {
		policy.MaxAttempts = p.MaxAttempts
	}
	if p.SlippageBps > 10000 {
		return dex.Policy{}, fmt.Errorf("slippage_bps must be at most 10000")
	}
	if p.SlippageBps > 0 {
		policy.SlippageBps = p.SlippageBps
	}
	if policy.StepTimeout <= policy.PacketTimeout {
		return dex.Policy{}, fmt.Errorf("step_timeout must exceed packet_timeout")
	}
	return policy, nil
}

// DexDenoms builds the denom table of the assets section. Vouchers are derived over
// the channels of the connection section.
func (c *DexConfig) DexDenoms() (*platform.DenomTable, error) {
	if len(c.Assets) == 0 {
		return nil, errors.New("at least one asset is required")
	}

	pairs := make([]platform.DenomPair, 0, len(c.Assets))
	var errs []error
	for i, a := range c.Assets {
		switch {
		case a.Local != "" || a.Dex != "":
			if a.Denom != "" || a.Origin != "" {
				errs = append(errs, fmt.Errorf("asset %d: give either denom and origin or local and dex", i))
				continue
			}
			pairs = append(pairs, platform.DenomPair{Local: a.Local, Dex: a.Dex})
		case a.Denom == "":
			errs = append(errs, fmt.Errorf("asset %d: denom is required", i))
		case a.Origin == OriginLocal:
			pairs = append(pairs, platform.LocalAsset(a.Denom, c.Connection.DexTransferChannel))
		case a.Origin == OriginDex:
			pairs = append(pairs, platform.DexAsset(a.Denom, c.Connection.TransferChannel))
		default:
			errs = append(errs, fmt.Errorf("asset %s: origin must be %q or %q, got %q", a.Denom, OriginLocal, OriginDex, a.Origin))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return platform.NewDenomTable(pairs...)
}

// DexProfit converts the profit section. ok is false when distribution is disabled.
func (c *DexConfig) DexProfit() (cfg profit.Config, ok bool, err error) {
	if c.Profit.Treasury == "" {
		return profit.Config{}, false, nil
	}
	cfg = profit.Config{Treasury: c.Profit.Treasury, Reward: c.Profit.Reward}
	if err := cfg.Validate(); err != nil {
		return profit.Config{}, false, fmt.Errorf("invalid profit section: %w", err)
	}
	return cfg, true, nil
}
