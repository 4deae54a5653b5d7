package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RUGCHECK_RPC_URL", "")
	t.Setenv("ETHERSCAN_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	path := writeConfig(t, `{"rpc": [{"url": "https://rpc.example.com"}]}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultFactory, cfg.Factory)
	require.Len(t, cfg.Quotes, 2)
	assert.Equal(t, "USDC", cfg.Quotes[0].Symbol)
	assert.Equal(t, "WETH", cfg.Quotes[1].Symbol)
	assert.Equal(t, 12*time.Second, cfg.BlockTime.Std())
	assert.Equal(t, 15*time.Second, cfg.ProbeTimeout.Std())
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, uint64(5000), cfg.LogChunkBlocks)
	assert.Empty(t, cfg.Etherscan.ChainID, "chain id comes from the RPC endpoint unless configured")
	assert.Zero(t, cfg.Narrative.Timeout)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_EtherscanAndNarrativeSettings(t *testing.T) {
	path := writeConfig(t, `{
		"rpc": [{"url": "https://rpc.example.com"}],
		"etherscan": {"chainId": "1"},
		"narrative": {"timeout": "30s"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1", cfg.Etherscan.ChainID)
	assert.Equal(t, 30*time.Second, cfg.Narrative.Timeout.Std())
}

func TestLoad_DurationForms(t *testing.T) {
	path := writeConfig(t, `{
		"rpc": [{"url": "https://rpc.example.com"}],
		"block_time": "2s",
		"probe_timeout": 4.5
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.BlockTime.Std())
	assert.Equal(t, 4500*time.Millisecond, cfg.ProbeTimeout.Std())
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `{"rpc": [{"url": "x"}], "block_time": "soon"}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RUGCHECK_RPC_URL", "https://env-rpc.example.com")
	t.Setenv("ETHERSCAN_API_KEY", "scan-key")
	t.Setenv("OPENAI_API_KEY", "ai-key")

	path := writeConfig(t, `{"rpc": [{"url": "https://file-rpc.example.com"}]}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://env-rpc.example.com", "https://file-rpc.example.com"}, cfg.RPCURLs())
	assert.Equal(t, "scan-key", cfg.Etherscan.APIKey)
	assert.Equal(t, "ai-key", cfg.Narrative.APIKey)
}

func TestLoad_MissingFileWithEnvRPC(t *testing.T) {
	t.Setenv("RUGCHECK_RPC_URL", "https://env-rpc.example.com")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_MissingFileWithoutEnv(t *testing.T) {
	t.Setenv("RUGCHECK_RPC_URL", "")
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{RPC: []RPCConfig{{URL: "wss://example.com"}}}
		applyDefaults(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ValidConfig", func(*Config) {}, false},
		{"NoRPCs", func(c *Config) { c.RPC = nil }, true},
		{"EmptyRPCURL", func(c *Config) { c.RPC = []RPCConfig{{URL: ""}} }, true},
		{"BadFactory", func(c *Config) { c.Factory = "0x1234" }, true},
		{"BadQuote", func(c *Config) { c.Quotes = []QuoteConfig{{Symbol: "X", Address: "nope"}} }, true},
		{"NarrativeWithoutKey", func(c *Config) { c.Narrative.Enabled = true }, true},
		{"NarrativeWithKey", func(c *Config) { c.Narrative.Enabled = true; c.Narrative.APIKey = "k" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteHelpers(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)

	addrs := cfg.QuoteAddresses()
	require.Len(t, addrs, 2)
	assert.Equal(t, common.HexToAddress(DefaultUSDC), addrs[0])
	assert.Equal(t, "WETH", cfg.QuoteSymbol(common.HexToAddress(DefaultWETH)))
	assert.Equal(t, "", cfg.QuoteSymbol(common.HexToAddress("0x01")))
}

func TestBuildRPCURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{"NoKey", "https://rpc.example.com", "", "https://rpc.example.com"},
		{"SimpleAppend", "https://rpc.example.com", "12345", "https://rpc.example.com/12345"},
		{"BaseWithSlash", "https://rpc.example.com/", "12345", "https://rpc.example.com/12345"},
		{"QueryParamKey", "https://rpc.example.com", "?key=12345", "https://rpc.example.com?key=12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildRPCURL(tt.base, tt.key))
		})
	}
}
