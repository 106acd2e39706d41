package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config
// file.
type Config struct {
	Mode string

	PollInterval time.Duration
	Sources      []string
	FeedTimeout  time.Duration

	OracleURL     string
	OracleAPIKey  string
	OracleTimeout time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration

	RecipientsFile string
	ScenariosFile  string

	PGDSN string

	RPCURL          string
	PrivateKey      string
	ContractAddress string
	ChainID         int64

	MaxPayout      float64
	InitialBalance float64

	KafkaBrokers []string
	KafkaTopic   string

	ListenAddr string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into
// Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "MOCK")
	v.SetDefault("poll-interval", time.Minute)
	v.SetDefault("source", []string{"gdacs", "eonet", "nws"})
	v.SetDefault("feed-timeout", 20*time.Second)
	v.SetDefault("oracle-timeout", 15*time.Second)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("recipients", "./data/recipients.yaml")
	v.SetDefault("max-payout", float64(10000))
	v.SetDefault("initial-balance", float64(10000))
	v.SetDefault("kafka-topic", "sentinel.outcomes")
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Mode:            strings.ToUpper(v.GetString("mode")),
		PollInterval:    v.GetDuration("poll-interval"),
		Sources:         getStringSlice(v, "source"),
		FeedTimeout:     v.GetDuration("feed-timeout"),
		OracleURL:       v.GetString("oracle-url"),
		OracleAPIKey:    v.GetString("oracle-api-key"),
		OracleTimeout:   v.GetDuration("oracle-timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		RecipientsFile:  v.GetString("recipients"),
		ScenariosFile:   v.GetString("scenarios"),
		PGDSN:           v.GetString("pg-dsn"),
		RPCURL:          v.GetString("rpc"),
		PrivateKey:      v.GetString("private-key"),
		ContractAddress: v.GetString("contract"),
		ChainID:         v.GetInt64("chain-id"),
		MaxPayout:       v.GetFloat64("max-payout"),
		InitialBalance:  v.GetFloat64("initial-balance"),
		KafkaBrokers:    getStringSlice(v, "kafka-broker"),
		KafkaTopic:      v.GetString("kafka-topic"),
		ListenAddr:      v.GetString("listen"),
		LogLevel:        v.GetString("log-level"),
	}

	if cfg.Mode != "LIVE" && cfg.Mode != "MOCK" {
		return Config{}, fmt.Errorf("mode must be LIVE or MOCK, got %q", cfg.Mode)
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
