package bootstrap

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	EnginePath       string  `mapstructure:"ENGINE_PATH"`
	ModelPath        string  `mapstructure:"MODEL_PATH"`
	EngineConfigPath string  `mapstructure:"ENGINE_CONFIG_PATH"`
	EngineName       string  `mapstructure:"ENGINE_NAME"`
	MirrorThreshold  float64 `mapstructure:"MIRROR_THRESHOLD"`
	AnalyzeInterval  int     `mapstructure:"ANALYZE_INTERVAL"` // centiseconds between kata-analyze reports
	LogLevel         string  `mapstructure:"LOG_LEVEL"`
	DebugAddr        string  `mapstructure:"DEBUG_ADDR"`
	GrpcAddr         string  `mapstructure:"GRPC_ADDR"`
	RedisUrl         string  `mapstructure:"REDIS_URL"`
	RedisChannel     string  `mapstructure:"REDIS_CHANNEL"`
	DecisionHistory  int     `mapstructure:"DECISION_HISTORY"`
}

var defaults = map[string]any{
	"ENGINE_PATH":        "katago",
	"MODEL_PATH":         "",
	"ENGINE_CONFIG_PATH": "",
	"ENGINE_NAME":        "KataGo",
	"MIRROR_THRESHOLD":   1.0,
	"ANALYZE_INTERVAL":   50,
	"LOG_LEVEL":          "info",
	"DEBUG_ADDR":         "",
	"GRPC_ADDR":          "",
	"REDIS_URL":          "",
	"REDIS_CHANNEL":      "mirror_go:decisions",
	"DECISION_HISTORY":   64,
}

// flags maps command-line flags onto config keys.
var flags = map[string]string{
	"engine":           "ENGINE_PATH",
	"model":            "MODEL_PATH",
	"engine-config":    "ENGINE_CONFIG_PATH",
	"engine-name":      "ENGINE_NAME",
	"threshold":        "MIRROR_THRESHOLD",
	"analyze-interval": "ANALYZE_INTERVAL",
	"log-level":        "LOG_LEVEL",
	"debug-addr":       "DEBUG_ADDR",
	"grpc-addr":        "GRPC_ADDR",
	"redis-url":        "REDIS_URL",
	"redis-channel":    "REDIS_CHANNEL",
	"decision-history": "DECISION_HISTORY",
}

func newFlagSet(cfgPath string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("mirrorbot", pflag.ContinueOnError)
	fs.String("config", cfgPath, "dotenv file with settings, skipped if missing")
	fs.String("engine", "", "path to the KataGo binary")
	fs.String("model", "", "KataGo neural net model file")
	fs.String("engine-config", "", "KataGo GTP config file")
	fs.String("engine-name", "", "name the subordinate engine must report")
	fs.Float64("threshold", 0, "score loss tolerated before the mirror move is rejected")
	fs.Int("analyze-interval", 0, "kata-analyze report interval in centiseconds")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("debug-addr", "", "listen address of the debug HTTP server")
	fs.String("grpc-addr", "", "listen address of the gRPC health service")
	fs.String("redis-url", "", "redis address decisions are published to")
	fs.String("redis-channel", "", "redis channel for decisions")
	fs.Int("decision-history", 0, "number of decisions kept in memory")
	return fs
}

// Setup merges defaults, the dotenv file, environment variables and
// command-line flags, in increasing order of precedence.
func Setup(cfgPath string, args []string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	fs := newFlagSet(cfgPath)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for name, key := range flags {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	cfgFlag := fs.Lookup("config")
	if path := cfgFlag.Value.String(); path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		case cfgFlag.Changed || !errors.Is(statErr, os.ErrNotExist):
			return nil, fmt.Errorf("config file %s: %w", path, statErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.EnginePath == "" {
		return errors.New("ENGINE_PATH must be set")
	}
	if c.MirrorThreshold < 0 {
		return fmt.Errorf("MIRROR_THRESHOLD must be >= 0, got %v", c.MirrorThreshold)
	}
	if c.AnalyzeInterval <= 0 {
		return fmt.Errorf("ANALYZE_INTERVAL must be > 0, got %d", c.AnalyzeInterval)
	}
	if c.DecisionHistory <= 0 {
		return fmt.Errorf("DECISION_HISTORY must be > 0, got %d", c.DecisionHistory)
	}
	return nil
}
