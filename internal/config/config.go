package config

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when the loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Arbitrage ArbitrageConfig
	Database  DatabaseConfig
	Exchanges map[string]ExchangeConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Notify    NotifyConfig
}

// ArbitrageConfig defines the arbitrage-related settings.
type ArbitrageConfig struct {
	TradingPair        string          `mapstructure:"pair"`
	ProfitThreshold    decimal.Decimal `mapstructure:"profit_threshold"`
	Demo               bool            `mapstructure:"demo"`
	SimulatedLatencyMS int             `mapstructure:"simulated_latency_ms"`
}

// DatabaseConfig defines the database connection settings.
// An empty Host disables the deal journal.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// Enabled reports whether a deal journal database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN builds a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", d.User, d.Password, d.Host, port, d.DBName)
}

// ExchangeConfig defines settings for a specific exchange.
type ExchangeConfig struct {
	// Symbol overrides the venue-native symbol derived from the pair.
	Symbol        string `mapstructure:"symbol"`
	WSURL         string `mapstructure:"ws_url"`
	MaxReconnects int    `mapstructure:"max_reconnects"`
}

// LoggingConfig defines log level and optional rotated log file.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MetricsConfig defines the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// NotifyConfig defines external alerting.
type NotifyConfig struct {
	TelegramToken  string  `mapstructure:"telegram_token"`
	TelegramChatID string  `mapstructure:"telegram_chat_id"`
	TelegramRate   float64 `mapstructure:"telegram_rate"` // messages per second
	Buffer         int     `mapstructure:"buffer"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("arbitrage.profit_threshold", "0")
	v.SetDefault("logging.level", "info")
	v.SetDefault("notify.buffer", 64)
	v.SetDefault("notify.telegram_rate", 1)
	// Bind keys that may only come from the environment.
	for _, key := range []string{"arbitrage.pair", "arbitrage.demo", "database.host", "database.password"} {
		if err = v.BindEnv(key); err != nil {
			return
		}
	}

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalHook,
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return
	}

	err = config.Validate()
	return
}

// Validate checks that the configuration can drive exactly one pair on two venues.
func (c Config) Validate() error {
	if _, _, err := SplitPair(c.Arbitrage.TradingPair); err != nil {
		return err
	}
	if c.Arbitrage.ProfitThreshold.IsNegative() {
		return fmt.Errorf("%w: profit_threshold must not be negative", ErrInvalidConfig)
	}
	if c.Arbitrage.SimulatedLatencyMS < 0 {
		return fmt.Errorf("%w: simulated_latency_ms must not be negative", ErrInvalidConfig)
	}
	if len(c.Exchanges) != 2 {
		return fmt.Errorf("%w: exactly two exchanges required, got %d", ErrInvalidConfig, len(c.Exchanges))
	}
	return nil
}

// ExchangeNames returns the configured exchange names in sorted order.
func (c Config) ExchangeNames() []string {
	names := make([]string, 0, len(c.Exchanges))
	for name := range c.Exchanges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SplitPair splits "BTC/EUR" into its base and quote tickers.
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: pair %q must look like BASE/QUOTE", ErrInvalidConfig, pair)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	}
	return data, nil
}
