package config

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	QuoteAPIURL        string
	RPCURL             string
	ChainID            int64
	RouterAddress      common.Address
	NativeTokenAddress common.Address
	SlippageBps        int64
	Routing            RoutingConfig
	Quote              QuoteConfig
	Wallet             WalletConfig
	Backend            string
	ReceiptPoll        time.Duration
	StateFile          string
	TokenList          string
	LogLevel           string
}

// RoutingConfig holds the routing tunables forwarded to the quote service
type RoutingConfig struct {
	MaxEdge  int
	MaxSplit int
}

// QuoteConfig controls quote fetching
type QuoteConfig struct {
	Debounce        time.Duration
	RefreshInterval time.Duration
	MaxAttempts     int
	RetryInterval   time.Duration
	Timeout         time.Duration
}

// WalletConfig selects and configures the signing wallet
type WalletConfig struct {
	Type       string
	PrivateKey string
	Endpoint   string
}

const (
	WalletKeyed     = "keyed"
	WalletExtension = "extension"

	BackendSigner = "signer"
	BackendRPC    = "rpc"
)

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("chain_id", 9001)
	v.SetDefault("router_address", "0xdf7ba1982ff003a80A74CdC0eEf246bc2a3E5F32")
	v.SetDefault("native_token_address", "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	v.SetDefault("slippage_bps", 100)
	v.SetDefault("routing.max_edge", 4)
	v.SetDefault("routing.max_split", 10)
	v.SetDefault("quote.debounce", "200ms")
	v.SetDefault("quote.refresh_interval", "15s")
	v.SetDefault("quote.max_attempts", 3)
	v.SetDefault("quote.retry_interval", "500ms")
	v.SetDefault("quote.timeout", "10s")
	v.SetDefault("wallet.type", WalletKeyed)
	v.SetDefault("backend", BackendSigner)
	v.SetDefault("receipt.poll_interval", "2s")
	v.SetDefault("log_level", "warn")
}

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v, err := setupViper()
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Peek reads configuration without cross-field validation, for commands that
// need only part of it (token list, receipt lookups)
func Peek() (*Config, error) {
	v, err := setupViper()
	if err != nil {
		return nil, err
	}
	return build(v)
}

func setupViper() (*viper.Viper, error) {
	viper.SetConfigName(".arbiswap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	SetDefaults(viper.GetViper())

	// Read from environment variables, routing.max_edge -> ARBISWAP_ROUTING_MAX_EDGE
	viper.SetEnvPrefix("ARBISWAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := readConfigFile(viper.GetViper()); err != nil {
		return nil, err
	}
	return viper.GetViper(), nil
}

// readConfigFile reads the config file into v. A missing file is fine; a file
// that exists but cannot be parsed is not.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config file")
	}
	return nil
}

// FromViper builds and validates a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg, err := build(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		QuoteAPIURL: strings.TrimSpace(v.GetString("quote_api_url")),
		RPCURL:      strings.TrimSpace(v.GetString("rpc_url")),
		ChainID:     v.GetInt64("chain_id"),
		SlippageBps: v.GetInt64("slippage_bps"),
		Routing: RoutingConfig{
			MaxEdge:  v.GetInt("routing.max_edge"),
			MaxSplit: v.GetInt("routing.max_split"),
		},
		Quote: QuoteConfig{
			Debounce:        v.GetDuration("quote.debounce"),
			RefreshInterval: v.GetDuration("quote.refresh_interval"),
			MaxAttempts:     v.GetInt("quote.max_attempts"),
			RetryInterval:   v.GetDuration("quote.retry_interval"),
			Timeout:         v.GetDuration("quote.timeout"),
		},
		Wallet: WalletConfig{
			Type:       strings.ToLower(v.GetString("wallet.type")),
			PrivateKey: v.GetString("wallet.private_key"),
			Endpoint:   v.GetString("wallet.endpoint"),
		},
		Backend:     strings.ToLower(v.GetString("backend")),
		ReceiptPoll: v.GetDuration("receipt.poll_interval"),
		StateFile:   v.GetString("state_file"),
		TokenList:   v.GetString("token_list"),
		LogLevel:    v.GetString("log_level"),
	}

	router := v.GetString("router_address")
	if !common.IsHexAddress(router) {
		return nil, errors.Errorf("invalid router_address: %q", router)
	}
	cfg.RouterAddress = common.HexToAddress(router)

	native := v.GetString("native_token_address")
	if !common.IsHexAddress(native) {
		return nil, errors.Errorf("invalid native_token_address: %q", native)
	}
	cfg.NativeTokenAddress = common.HexToAddress(native)
	return cfg, nil
}

// Validate checks required settings and cross-field constraints
func (c *Config) Validate() error {
	if c.QuoteAPIURL == "" {
		return errors.New("quote API URL not found. Please set ARBISWAP_QUOTE_API_URL environment variable or create a .arbiswap.yaml config file")
	}
	if c.RPCURL == "" {
		return errors.New("RPC URL not found. Please set ARBISWAP_RPC_URL environment variable or create a .arbiswap.yaml config file")
	}
	if c.ChainID <= 0 {
		return errors.New("chain_id must be positive")
	}
	if c.SlippageBps <= 0 || c.SlippageBps > 5000 {
		return errors.New("slippage_bps must be within 1..5000")
	}
	if c.Routing.MaxEdge <= 0 || c.Routing.MaxSplit <= 0 {
		return errors.New("routing.max_edge and routing.max_split must be positive")
	}
	if c.Quote.MaxAttempts < 1 {
		return errors.New("quote.max_attempts must be at least 1")
	}

	switch c.Wallet.Type {
	case WalletKeyed:
		if c.Wallet.PrivateKey == "" {
			return errors.New("wallet.private_key is required for a keyed wallet")
		}
	case WalletExtension:
		if c.Wallet.Endpoint == "" {
			return errors.New("wallet.endpoint is required for an extension wallet")
		}
	default:
		return errors.Errorf("unsupported wallet.type: %s", c.Wallet.Type)
	}

	switch c.Backend {
	case BackendSigner:
		if c.Wallet.Type != WalletKeyed {
			return errors.Errorf("backend %q requires wallet.type %q", BackendSigner, WalletKeyed)
		}
	case BackendRPC:
	default:
		return errors.Errorf("unsupported backend: %s", c.Backend)
	}
	return nil
}
