package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
}

type Config struct {
	CostFactor string `mapstructure:"cost_factor"`
	Mode       string `mapstructure:"mode"`
	ClearGraph bool   `mapstructure:"clear_graph"`
	Seed       int64  `mapstructure:"seed"`

	NodesFile       string    `mapstructure:"nodes_file"`
	LinksFile       string    `mapstructure:"links_file"`
	OrdersFile      string    `mapstructure:"orders_file"`
	NetworkFile     string    `mapstructure:"network_file"`
	SyntheticOrders int       `mapstructure:"synthetic_orders"`
	StartDate       time.Time `mapstructure:"start_date"` // window for synthetic orders
	EndDate         time.Time `mapstructure:"end_date"`

	GraphStore  string        `mapstructure:"graph_store"` // memory or postgres
	DatabaseURL string        `mapstructure:"database_url"`
	MaxHops     int           `mapstructure:"max_hops"`
	ExpiryGrace time.Duration `mapstructure:"expiry_grace"`

	OutputFormat    string             `mapstructure:"output_format"`
	OutputPath      string             `mapstructure:"output_path"`
	OutputFolder    string             `mapstructure:"output_folder"`
	KafkaBrokerList string             `mapstructure:"kafka_broker_list"`
	KafkaTopic      string             `mapstructure:"kafka_topic"`
	CloudStorage    CloudStorageConfig `mapstructure:"cloud_storage"`

	ShowProgress bool   `mapstructure:"show_progress"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// Options is the small typed configuration the simulation core consumes.
type Options struct {
	CostFactor  string
	Mode        string
	ClearGraph  bool
	MaxHops     int
	ExpiryGrace time.Duration
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("cost_factor", CostFactorDuration)
	v.SetDefault("mode", ModeStatic)
	v.SetDefault("clear_graph", true)
	v.SetDefault("seed", 42)
	v.SetDefault("graph_store", "memory")
	v.SetDefault("max_hops", DefaultMaxHops)
	v.SetDefault("expiry_grace", DefaultExpiryGrace)
	v.SetDefault("output_format", "console")
	v.SetDefault("output_folder", "results")
	v.SetDefault("kafka_topic", "simulation_results")
}

// LoadConfig initializes and reads the configuration using Viper
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// Default config location
		v.AddConfigPath("examples")
		v.AddConfigPath(".")
		v.SetConfigName("routesim")
	}

	v.SetEnvPrefix("ROUTESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			StringToTimestampHookFunc(),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate normalises enum-like settings and rejects unknown values.
func (cfg *Config) Validate() error {
	factor, err := NormalizeCostFactor(cfg.CostFactor)
	if err != nil {
		return err
	}
	cfg.CostFactor = factor

	switch strings.ToLower(cfg.Mode) {
	case ModeStatic, "":
		cfg.Mode = ModeStatic
	case ModeDynamic:
		cfg.Mode = ModeDynamic
	default:
		return fmt.Errorf("unknown mode %q (want static or dynamic)", cfg.Mode)
	}

	switch cfg.GraphStore {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown graph store %q (want memory or postgres)", cfg.GraphStore)
	}
	if cfg.GraphStore == "postgres" && cfg.DatabaseURL == "" {
		return fmt.Errorf("graph store postgres requires database_url")
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultMaxHops
	}
	if cfg.ExpiryGrace <= 0 {
		cfg.ExpiryGrace = DefaultExpiryGrace
	}
	return nil
}

func (cfg *Config) Options() Options {
	return Options{
		CostFactor:  cfg.CostFactor,
		Mode:        cfg.Mode,
		ClearGraph:  cfg.ClearGraph,
		MaxHops:     cfg.MaxHops,
		ExpiryGrace: cfg.ExpiryGrace,
	}
}

// NormalizeCostFactor maps the accepted aliases onto financial or duration.
func NormalizeCostFactor(factor string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(factor)) {
	case CostFactorFinancial, "cost":
		return CostFactorFinancial, nil
	case CostFactorDuration, "time", "":
		return CostFactorDuration, nil
	}
	return "", fmt.Errorf("unknown cost factor %q (want financial or duration)", factor)
}
