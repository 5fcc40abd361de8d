package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/chainpay-backend/pkg/enums"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Engine       EngineConfig
	Chains       ChainsConfig
	Callback     CallbackConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Chains.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHAINPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"CHAINPAY_APP_PORT" default:"9090"`
	LogLevel     string `envconfig:"CHAINPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHAINPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHAINPAY_SERVICE_KIND" default:"reconciler-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"CHAINPAY_DB_DSN"`
	Driver string `envconfig:"CHAINPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CHAINPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"CHAINPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CHAINPAY_DB_USER"`
	LegacyPassword string `envconfig:"CHAINPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CHAINPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CHAINPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHAINPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHAINPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHAINPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHAINPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHAINPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CHAINPAY_REDIS_ADDR"`
	Password     string        `envconfig:"CHAINPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHAINPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHAINPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHAINPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHAINPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHAINPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHAINPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// EngineConfig tunes the reconciliation loop.
type EngineConfig struct {
	TickInterval     time.Duration `envconfig:"CHAINPAY_ENGINE_TICK_INTERVAL" default:"30s"`
	BatchConcurrency int           `envconfig:"CHAINPAY_ENGINE_BATCH_CONCURRENCY" default:"10"`
	ProviderTimeout  time.Duration `envconfig:"CHAINPAY_ENGINE_PROVIDER_TIMEOUT" default:"8s"`
	CacheTTL         time.Duration `envconfig:"CHAINPAY_ENGINE_CACHE_TTL" default:"30s"`
	PaymentTTL       time.Duration `envconfig:"CHAINPAY_ENGINE_PAYMENT_TTL" default:"15m"`

	// ProviderRateLimit caps calls per provider per window, shared across
	// worker instances. Zero disables the guard.
	ProviderRateLimit  int           `envconfig:"CHAINPAY_ENGINE_PROVIDER_RATE_LIMIT" default:"0"`
	ProviderRateWindow time.Duration `envconfig:"CHAINPAY_ENGINE_PROVIDER_RATE_WINDOW" default:"10s"`
}

// ChainsConfig describes the per-currency provider topology. Provider lists
// are ordered by priority; the resolver tries them first to last.
type ChainsConfig struct {
	Providers              ProviderEndpoints `envconfig:"CHAINPAY_CHAIN_PROVIDERS" required:"true"`
	ConfirmationThresholds map[string]int    `envconfig:"CHAINPAY_CONFIRMATION_THRESHOLDS" default:"BTC:3,LTC:6,ETH:12,BNB:15,SOL:1,USDT:12,USDC:12"`
	Decimals               map[string]int    `envconfig:"CHAINPAY_CHAIN_DECIMALS" default:"BTC:8,LTC:8,ETH:18,BNB:18,SOL:9,USDT:6,USDC:6"`
	AddressPools           AddressPools      `envconfig:"CHAINPAY_ADDRESS_POOLS"`
}

type CallbackConfig struct {
	Timeout       time.Duration `envconfig:"CHAINPAY_CALLBACK_TIMEOUT" default:"5s"`
	MaxAttempts   int           `envconfig:"CHAINPAY_CALLBACK_MAX_ATTEMPTS" default:"3"`
	SigningSecret string        `envconfig:"CHAINPAY_CALLBACK_SIGNING_SECRET"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CHAINPAY_AUTO_MIGRATE" default:"false"`
}

// ProviderEndpoint points at one external chain-data source.
type ProviderEndpoint struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	APIKey string `json:"apiKey,omitempty"`
}

// ProviderEndpoints maps a currency code to its ordered provider list. The
// env value is a JSON object, e.g.
//
//	{"BTC":[{"name":"blockcypher","kind":"blockcypher","url":"https://api.blockcypher.com/v1/btc/main/addrs/{address}"}]}
type ProviderEndpoints map[string][]ProviderEndpoint

// Decode implements envconfig.Decoder.
func (p *ProviderEndpoints) Decode(value string) error {
	parsed := map[string][]ProviderEndpoint{}
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return fmt.Errorf("parsing provider endpoints: %w", err)
	}
	*p = parsed
	return nil
}

// AddressPools maps a currency code to the pre-derived receiving addresses
// handed out to new payment requests. The env value is a JSON object.
type AddressPools map[string][]string

// Decode implements envconfig.Decoder.
func (a *AddressPools) Decode(value string) error {
	parsed := map[string][]string{}
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		return fmt.Errorf("parsing address pools: %w", err)
	}
	*a = parsed
	return nil
}

func (c ChainsConfig) validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("%s must configure at least one currency", EnvChainProviders)
	}
	for code, endpoints := range c.Providers {
		if _, err := enums.ParseCurrency(code); err != nil {
			return fmt.Errorf("provider config: %w", err)
		}
		if len(endpoints) == 0 {
			return fmt.Errorf("provider config: currency %s has no endpoints", code)
		}
		for _, endpoint := range endpoints {
			if endpoint.Name == "" || endpoint.URL == "" {
				return fmt.Errorf("provider config: currency %s has an endpoint missing name or url", code)
			}
		}
	}
	for code, threshold := range c.ConfirmationThresholds {
		if _, err := enums.ParseCurrency(code); err != nil {
			return fmt.Errorf("confirmation thresholds: %w", err)
		}
		if threshold < 1 {
			return fmt.Errorf("confirmation thresholds: currency %s must require at least 1 confirmation", code)
		}
	}
	return nil
}

// ThresholdFor returns the confirmation threshold for a currency, defaulting
// to 1 when unset.
func (c ChainsConfig) ThresholdFor(currency enums.Currency) int {
	if threshold, ok := c.ConfirmationThresholds[currency.String()]; ok && threshold > 0 {
		return threshold
	}
	return 1
}

// DecimalsFor returns the native unit decimals for a currency.
func (c ChainsConfig) DecimalsFor(currency enums.Currency) int {
	if decimals, ok := c.Decimals[currency.String()]; ok && decimals >= 0 {
		return decimals
	}
	return 8
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
