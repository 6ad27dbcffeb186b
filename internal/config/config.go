// Package config loads the engine's typed configuration (§6
// "Configuration values") from a YAML file, environment variables, and
// command-line flags, the way the rest of the retrieval pack wires
// config: spf13/viper layered over spf13/pflag.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob spec §6 enumerates.
type Config struct {
	MaxTickers      int `mapstructure:"max-tickers"`
	MaxOrders       int `mapstructure:"max-orders"`
	MaxPriceLevels  int `mapstructure:"max-price-levels"`
	MaxClients      int `mapstructure:"max-clients"`
	MaxPendingReqs  int `mapstructure:"max-pending-requests"`
	ReqRingCap      int `mapstructure:"req-ring-capacity"`
	RspRingCap      int `mapstructure:"rsp-ring-capacity"`
	MdRingCap       int `mapstructure:"md-ring-capacity"`
	SnapRingCap     int `mapstructure:"snap-ring-capacity"`

	IncrementalIP    string `mapstructure:"incremental-ip"`
	IncrementalPort  int    `mapstructure:"incremental-port"`
	IncrementalIface string `mapstructure:"incremental-iface"`

	SnapshotIP    string `mapstructure:"snapshot-ip"`
	SnapshotPort  int    `mapstructure:"snapshot-port"`
	SnapshotIface string `mapstructure:"snapshot-iface"`

	OrderGatewayIface string `mapstructure:"order-gateway-iface"`
	OrderGatewayPort  int    `mapstructure:"order-gateway-port"`

	SnapshotPeriod time.Duration `mapstructure:"snapshot-period"`

	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`

	// Per-task CPU core assignments (§5): -1 leaves the task unpinned.
	EngineCore      int `mapstructure:"engine-core"`
	GatewayCore     int `mapstructure:"gateway-core"`
	PublisherCore   int `mapstructure:"publisher-core"`
	SynthesiserCore int `mapstructure:"synthesiser-core"`
}

// Defaults returns the configuration used when no file/env/flag
// overrides a value.
func Defaults() Config {
	return Config{
		MaxTickers:     8,
		MaxOrders:      1 << 16,
		MaxPriceLevels: 256,
		MaxClients:     256,
		MaxPendingReqs: 1024,
		ReqRingCap:     1 << 14,
		RspRingCap:     1 << 14,
		MdRingCap:      1 << 14,
		SnapRingCap:    1 << 14,

		IncrementalIP:    "239.0.0.1",
		IncrementalPort:  20000,
		IncrementalIface: "",

		SnapshotIP:    "239.0.0.2",
		SnapshotPort:  20001,
		SnapshotIface: "",

		OrderGatewayIface: "0.0.0.0",
		OrderGatewayPort:  12345,

		SnapshotPeriod: 60 * time.Second,

		MetricsAddr: ":9090",
		LogLevel:    "info",

		EngineCore:      -1,
		GatewayCore:     -1,
		PublisherCore:   -1,
		SynthesiserCore: -1,
	}
}

// Load reads configuration from configPath (if it exists), the
// MATCHCORE_ env prefix, and flags, falling back to Defaults() for
// anything unset.
func Load(configPath string, flags *pflag.FlagSet) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefault := func(key string, val interface{}) { v.SetDefault(key, val) }
	setDefault("max-tickers", cfg.MaxTickers)
	setDefault("max-orders", cfg.MaxOrders)
	setDefault("max-price-levels", cfg.MaxPriceLevels)
	setDefault("max-clients", cfg.MaxClients)
	setDefault("max-pending-requests", cfg.MaxPendingReqs)
	setDefault("req-ring-capacity", cfg.ReqRingCap)
	setDefault("rsp-ring-capacity", cfg.RspRingCap)
	setDefault("md-ring-capacity", cfg.MdRingCap)
	setDefault("snap-ring-capacity", cfg.SnapRingCap)
	setDefault("incremental-ip", cfg.IncrementalIP)
	setDefault("incremental-port", cfg.IncrementalPort)
	setDefault("incremental-iface", cfg.IncrementalIface)
	setDefault("snapshot-ip", cfg.SnapshotIP)
	setDefault("snapshot-port", cfg.SnapshotPort)
	setDefault("snapshot-iface", cfg.SnapshotIface)
	setDefault("order-gateway-iface", cfg.OrderGatewayIface)
	setDefault("order-gateway-port", cfg.OrderGatewayPort)
	setDefault("snapshot-period", cfg.SnapshotPeriod)
	setDefault("metrics-addr", cfg.MetricsAddr)
	setDefault("log-level", cfg.LogLevel)
	setDefault("engine-core", cfg.EngineCore)
	setDefault("gateway-core", cfg.GatewayCore)
	setDefault("publisher-core", cfg.PublisherCore)
	setDefault("synthesiser-core", cfg.SynthesiserCore)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
