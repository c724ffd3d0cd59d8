package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the bot needs at startup. Secrets (RPC urls,
// private key) can be overridden through the environment so the yaml file
// stays committable.
type Config struct {
	RPC struct {
		HTTPURL string `yaml:"http_url"`
		WSURL   string `yaml:"ws_url"`
	} `yaml:"rpc"`

	Engine struct {
		Workers        int `yaml:"workers"`
		Simulators     int `yaml:"simulators"`
		CacheTTLMs     int `yaml:"cache_ttl_ms"`
		QueueHighWater int `yaml:"queue_high_water"`
		QueueCap       int `yaml:"queue_cap"`
		MaxRecentArbs  int `yaml:"max_recent_arbs"`
	} `yaml:"engine"`

	Search struct {
		MaxHops          int      `yaml:"max_hops"`
		MinLiquidity     string   `yaml:"min_liquidity"`
		MaxPoolsPerToken int      `yaml:"max_pools_per_token"`
		GasPerHop        uint64   `yaml:"gas_per_hop"`
		ProbeAmountsWei  []string `yaml:"probe_amounts_wei"`
	} `yaml:"search"`

	Tokens struct {
		WrappedNative string   `yaml:"wrapped_native"`
		Pegged        []string `yaml:"pegged"`
	} `yaml:"tokens"`

	Routers map[string]string `yaml:"routers"` // address -> dex name

	Executor struct {
		Contract     string `yaml:"contract"`
		Sender       string `yaml:"sender"`
		GasLimit     uint64 `yaml:"gas_limit"`
		GasPriceGwei uint64 `yaml:"gas_price_gwei"`
	} `yaml:"executor"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Logging struct {
		Dir   string `yaml:"dir"`
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("RPC_HTTP_URL"); v != "" {
		cfg.RPC.HTTPURL = v
	}
	if v := os.Getenv("RPC_WS_URL"); v != "" {
		cfg.RPC.WSURL = v
	}
	if v := os.Getenv("SENDER_ADDRESS"); v != "" {
		cfg.Executor.Sender = v
	}
	if v := os.Getenv("ARB_CONTRACT_ADDRESS"); v != "" {
		cfg.Executor.Contract = v
	}
}

func (c *Config) applyDefaults() {
	if c.Engine.Workers == 0 {
		c.Engine.Workers = 8
	}
	if c.Engine.Simulators == 0 {
		c.Engine.Simulators = 16
	}
	if c.Engine.CacheTTLMs == 0 {
		c.Engine.CacheTTLMs = 3000
	}
	if c.Engine.QueueHighWater == 0 {
		c.Engine.QueueHighWater = 10
	}
	if c.Engine.QueueCap == 0 {
		c.Engine.QueueCap = 512
	}
	if c.Engine.MaxRecentArbs == 0 {
		c.Engine.MaxRecentArbs = 20
	}
	if c.Search.MaxHops == 0 {
		c.Search.MaxHops = 2
	}
	if c.Search.MinLiquidity == "" {
		c.Search.MinLiquidity = "1000"
	}
	if c.Search.MaxPoolsPerToken == 0 {
		c.Search.MaxPoolsPerToken = 10
	}
	if c.Search.GasPerHop == 0 {
		c.Search.GasPerHop = 150_000
	}
	if c.Executor.GasLimit == 0 {
		c.Executor.GasLimit = 300_000
	}
	if c.Executor.GasPriceGwei == 0 {
		c.Executor.GasPriceGwei = 25
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/pools.db"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
}

func (c *Config) Validate() error {
	if c.RPC.HTTPURL == "" {
		return fmt.Errorf("rpc.http_url is required")
	}
	if c.Tokens.WrappedNative == "" {
		return fmt.Errorf("tokens.wrapped_native is required")
	}
	if c.Engine.QueueCap < c.Engine.QueueHighWater {
		return fmt.Errorf("engine.queue_cap (%d) must be >= engine.queue_high_water (%d)",
			c.Engine.QueueCap, c.Engine.QueueHighWater)
	}
	if c.Search.MaxHops < 1 {
		return fmt.Errorf("search.max_hops must be >= 1")
	}
	return nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Engine.CacheTTLMs) * time.Millisecond
}
