package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Base mainnet defaults, matching the deployment the checker was first run against.
const (
	DefaultFactory = "0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"
	DefaultUSDC    = "0xd9AA594F65d163C22072c0eDFC7923A7F3470cC1"
	DefaultWETH    = "0x4200000000000000000000000000000000000006"
)

type RPCConfig struct {
	URL    string `json:"url"`
	APIKey string `json:"apiKey,omitempty"`
}

type QuoteConfig struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
}

type EtherscanConfig struct {
	URL    string `json:"url,omitempty"`
	APIKey string `json:"apiKey,omitempty"`

	// Defaults to the chain the RPC endpoint reports.
	ChainID string `json:"chainId,omitempty"`
}

type NarrativeConfig struct {
	Enabled bool   `json:"enabled"`
	Model   string `json:"model,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`

	// Bounds one completion request; probe_timeout when unset.
	Timeout Duration `json:"timeout,omitempty"`
}

// Duration decodes from either a Go duration string ("12s") or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	RPC            []RPCConfig     `json:"rpc"`
	Factory        string          `json:"factory"`
	Quotes         []QuoteConfig   `json:"quotes"`
	BlockTime      Duration        `json:"block_time"`
	ProbeTimeout   Duration        `json:"probe_timeout"`
	Concurrency    int             `json:"concurrency,omitempty"`
	LogChunkBlocks uint64          `json:"log_chunk_blocks,omitempty"`
	SerializeRPC   bool            `json:"serialize_rpc"`
	Etherscan      EtherscanConfig `json:"etherscan"`
	Narrative      NarrativeConfig `json:"narrative"`
	Output         string          `json:"output"`
	Log            string          `json:"log"`
	DB             string          `json:"db"`
}

// Load reads the JSON config at path, applies .env and environment overrides and fills defaults.
// A missing path is allowed when the environment supplies an RPC URL.
func Load(path string) (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil && !(os.IsNotExist(err) && os.Getenv("RUGCHECK_RPC_URL") != "") {
			return nil, fmt.Errorf("config open error: %w", err)
		}
		if f != nil {
			defer func() { _ = f.Close() }()
			if err := json.NewDecoder(f).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("config decode error: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if url := strings.TrimSpace(os.Getenv("RUGCHECK_RPC_URL")); url != "" {
		cfg.RPC = append([]RPCConfig{{URL: url}}, cfg.RPC...)
	}
	if key := strings.TrimSpace(os.Getenv("ETHERSCAN_API_KEY")); key != "" {
		cfg.Etherscan.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		cfg.Narrative.APIKey = key
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Factory == "" {
		cfg.Factory = DefaultFactory
	}
	if len(cfg.Quotes) == 0 {
		cfg.Quotes = []QuoteConfig{
			{Symbol: "USDC", Address: DefaultUSDC},
			{Symbol: "WETH", Address: DefaultWETH},
		}
	}
	if cfg.BlockTime <= 0 {
		cfg.BlockTime = Duration(12 * time.Second)
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = Duration(15 * time.Second)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.LogChunkBlocks == 0 {
		cfg.LogChunkBlocks = 5000
	}
	if cfg.Etherscan.URL == "" {
		cfg.Etherscan.URL = "https://api.etherscan.io/v2/api"
	}
	if cfg.Narrative.Model == "" {
		cfg.Narrative.Model = "gpt-4o-mini"
	}
	if cfg.Log == "" {
		cfg.Log = "rugcheck.log"
	}
}

func Validate(cfg *Config) error {
	if len(cfg.RPC) == 0 {
		return fmt.Errorf("rpc list required in config")
	}

	hasValidRPC := false
	for _, r := range cfg.RPC {
		if r.URL != "" {
			hasValidRPC = true
			break
		}
	}
	if !hasValidRPC {
		return fmt.Errorf("at least one valid RPC URL is required")
	}

	if !common.IsHexAddress(cfg.Factory) {
		return fmt.Errorf("invalid factory address: %s", cfg.Factory)
	}
	if len(cfg.Quotes) == 0 {
		return fmt.Errorf("at least one quote token is required")
	}
	for _, q := range cfg.Quotes {
		if !common.IsHexAddress(q.Address) {
			return fmt.Errorf("invalid quote address for %s: %s", q.Symbol, q.Address)
		}
	}
	if cfg.BlockTime.Std() < time.Millisecond {
		return fmt.Errorf("block_time must be positive")
	}
	if cfg.Narrative.Enabled && cfg.Narrative.APIKey == "" {
		return fmt.Errorf("narrative enabled but no API key configured (set OPENAI_API_KEY)")
	}
	return nil
}

// QuoteAddresses returns the quote tokens in priority order.
func (c *Config) QuoteAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.Quotes))
	for _, q := range c.Quotes {
		out = append(out, common.HexToAddress(q.Address))
	}
	return out
}

// QuoteSymbol returns the configured symbol for addr, or "" when addr is not a configured quote.
func (c *Config) QuoteSymbol(addr common.Address) string {
	for _, q := range c.Quotes {
		if common.HexToAddress(q.Address) == addr {
			return q.Symbol
		}
	}
	return ""
}

// RPCURLs returns every configured endpoint with its API key applied.
func (c *Config) RPCURLs() []string {
	urls := make([]string, 0, len(c.RPC))
	for _, r := range c.RPC {
		if r.URL == "" {
			continue
		}
		urls = append(urls, BuildRPCURL(r.URL, r.APIKey))
	}
	return urls
}

func BuildRPCURL(base, key string) string {
	if key == "" {
		return base
	}
	if strings.HasPrefix(key, "?") || strings.HasSuffix(base, "/") {
		return base + key
	}
	return base + "/" + key
}
