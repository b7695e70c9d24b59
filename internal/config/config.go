// Package config loads layered simulation configuration: defaults, a YAML
// file, TREATYLAB_ environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix. Nested keys use "_" for ".",
// e.g. TREATYLAB_SIMULATION_EPISODES.
const EnvPrefix = "TREATYLAB"

// DefaultPath is the config file used when none is given.
const DefaultPath = "configs/simulation.yaml"

// Config is the root configuration.
type Config struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Stress     StressConfig     `mapstructure:"stress"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

// SimulationConfig controls a single orchestrator run.
type SimulationConfig struct {
	Episodes               int     `mapstructure:"episodes" validate:"gte=1"`
	Agents                 int     `mapstructure:"agents" validate:"gte=1"`
	AgentKind              string  `mapstructure:"agent_kind" validate:"oneof=heuristic baseline mixed"`
	Mode                   string  `mapstructure:"mode" validate:"oneof=demo train"`
	Epsilon                float64 `mapstructure:"epsilon" validate:"gte=0,lte=1"`
	Seed                   uint64  `mapstructure:"seed"`
	MaxConsecutiveFailures int     `mapstructure:"max_consecutive_failures" validate:"gte=0"`
	TreatiesFile           string  `mapstructure:"treaties_file"`
	Source                 string  `mapstructure:"source" validate:"oneof=sample sequence synthetic"`
	Benchmark              bool    `mapstructure:"benchmark"`
}

// EvaluationConfig holds compliance thresholds.
type EvaluationConfig struct {
	MinPremiumMargin float64 `mapstructure:"min_premium_margin" validate:"gte=1"`
	TailRiskFraction float64 `mapstructure:"tail_risk_fraction" validate:"gt=0,lte=1"`
}

// StressConfig selects scenarios and how many run at once.
type StressConfig struct {
	ScenariosFile string `mapstructure:"scenarios_file"`
	Parallelism   int    `mapstructure:"parallelism" validate:"gte=1"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=memory postgres"`
	PostgresDSN   string `mapstructure:"postgres_dsn" validate:"required_if=Backend postgres"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr     string        `mapstructure:"addr" validate:"required"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.episodes", 100)
	v.SetDefault("simulation.agents", 3)
	v.SetDefault("simulation.agent_kind", "mixed")
	v.SetDefault("simulation.mode", "train")
	v.SetDefault("simulation.epsilon", 0.1)
	v.SetDefault("simulation.seed", 42)
	v.SetDefault("simulation.max_consecutive_failures", 10)
	v.SetDefault("simulation.treaties_file", "")
	v.SetDefault("simulation.source", "synthetic")
	v.SetDefault("simulation.benchmark", false)

	v.SetDefault("evaluation.min_premium_margin", 1.05)
	v.SetDefault("evaluation.tail_risk_fraction", 0.5)

	v.SetDefault("stress.scenarios_file", "")
	v.SetDefault("stress.parallelism", 4)

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.interval", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from path (skipped when empty), the environment
// and flags. flags maps config keys such as "simulation.episodes" to flags;
// a flag only overrides when it was set on the command line.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
