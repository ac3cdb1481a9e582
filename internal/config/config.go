// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/tables"
	"github.com/iwvelando/curve-factors/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for curve-factors.
type Configuration struct {
	Engine  EngineConfig  `yaml:"engine,omitempty"`
	Inputs  InputsConfig  `yaml:"inputs,omitempty"`
	Output  OutputConfig  `yaml:"output,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Export  ExportConfig  `yaml:"export,omitempty"`

	// path is the file the configuration was read from, if any.
	path string
}

// EngineConfig selects the factor and coverage policies.
type EngineConfig struct {
	FactorPolicy            string `yaml:"factorPolicy,omitempty"`   // compounded, power
	CoveragePolicy          string `yaml:"coveragePolicy,omitempty"` // validate, fill
	FixedHorizonNodes       int    `yaml:"fixedHorizonNodes,omitempty"`
	CoverageToleranceMonths int    `yaml:"coverageToleranceMonths,omitempty"`
	ForwardRates            bool   `yaml:"forwardRates,omitempty"`
	StrictRequirements      bool   `yaml:"strictRequirements,omitempty"`
	Workers                 int    `yaml:"workers,omitempty"` // 0 uses GOMAXPROCS
}

// InputsConfig holds the paths of the three input tables.
type InputsConfig struct {
	CurveObservations     string `yaml:"curveObservations,omitempty"`
	CurveRequirements     string `yaml:"curveRequirements,omitempty"`
	InflationObservations string `yaml:"inflationObservations,omitempty"`
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format    string `yaml:"format,omitempty"` // pretty, csv
	Directory string `yaml:"directory,omitempty"`
	Precision int    `yaml:"precision,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// ExportConfig holds the optional sinks the output tables are published to.
type ExportConfig struct {
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`
	Schema  string `yaml:"schema,omitempty"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled,omitempty"`
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.factorPolicy", constants.FactorPolicyCompounded)
	v.SetDefault("engine.coveragePolicy", constants.CoveragePolicyValidate)
	v.SetDefault("engine.fixedHorizonNodes", constants.DefaultFixedHorizonNodes)
	v.SetDefault("engine.coverageToleranceMonths", constants.DefaultCoverageToleranceMonths)
	v.SetDefault("engine.forwardRates", true)
	v.SetDefault("engine.strictRequirements", false)
	v.SetDefault("engine.workers", 0)

	v.SetDefault("inputs.curveObservations", "")
	v.SetDefault("inputs.curveRequirements", "")
	v.SetDefault("inputs.inflationObservations", "")

	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("output.directory", "")
	v.SetDefault("output.precision", constants.DefaultOutputPrecision)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputFile", "")

	v.SetDefault("export.postgres.enabled", false)
	v.SetDefault("export.postgres.dsn", "")
	v.SetDefault("export.postgres.schema", constants.DefaultPostgresSchema)
	v.SetDefault("export.redis.enabled", false)
	v.SetDefault("export.redis.addr", "")
	v.SetDefault("export.redis.password", "")
	v.SetDefault("export.redis.db", 0)
	v.SetDefault("export.redis.prefix", constants.DefaultRedisPrefix)
	v.SetDefault("export.redis.ttl", "0s")
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path loads defaults and environment
// overrides only. Environment variables use the CURVEFACTORS_ prefix with
// dots replaced by underscores, e.g. CURVEFACTORS_ENGINE_FACTORPOLICY.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	configuration.path = configPath

	return &configuration, nil
}

// CurveOptions converts the engine section into curve options.
func (c *Configuration) CurveOptions() (curve.Options, error) {
	opts := curve.DefaultOptions()

	factor, err := curve.ParseFactorPolicy(c.Engine.FactorPolicy)
	if err != nil {
		return opts, err
	}
	coverage, err := curve.ParseCoveragePolicy(c.Engine.CoveragePolicy)
	if err != nil {
		return opts, err
	}

	opts.FactorPolicy = factor
	opts.CoveragePolicy = coverage
	opts.FixedHorizonNodes = c.Engine.FixedHorizonNodes
	opts.ToleranceMonths = c.Engine.CoverageToleranceMonths
	opts.ForwardRates = c.Engine.ForwardRates
	opts.StrictRequirements = c.Engine.StrictRequirements
	if c.Engine.Workers > 0 {
		opts.Workers = c.Engine.Workers
	}

	return opts, opts.Validate()
}

// WriteOptions converts the output section into table write options.
func (c *Configuration) WriteOptions() tables.WriteOptions {
	return tables.WriteOptions{
		Precision:    int32(c.Output.Precision),
		ForwardRates: c.Engine.ForwardRates,
	}
}

// ResolvePath returns p relative to the directory of the configuration file
// when p is relative and the configuration was read from a file.
func (c *Configuration) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}

// ValidateConfiguration performs general validation of the configuration and
// returns warnings together with the first blocking error.
func (c *Configuration) ValidateConfiguration() ([]string, error) {
	var warnings []string

	if _, err := curve.ParseFactorPolicy(c.Engine.FactorPolicy); err != nil {
		return warnings, err
	}
	coverage, err := curve.ParseCoveragePolicy(c.Engine.CoveragePolicy)
	if err != nil {
		return warnings, err
	}

	validator := validation.SettingsValidator{
		Engine: validation.EngineSettings{
			CoveragePolicy:     coverage.String(),
			FixedHorizonNodes:  c.Engine.FixedHorizonNodes,
			ToleranceMonths:    c.Engine.CoverageToleranceMonths,
			StrictRequirements: c.Engine.StrictRequirements,
			Workers:            c.Engine.Workers,
		},
		Output: validation.OutputSettings{
			Format:    c.Output.Format,
			Directory: c.Output.Directory,
			Precision: c.Output.Precision,
		},
		Export: validation.ExportSettings{
			PostgresEnabled: c.Export.Postgres.Enabled,
			PostgresDSN:     c.Export.Postgres.DSN,
			RedisEnabled:    c.Export.Redis.Enabled,
			RedisAddr:       c.Export.Redis.Addr,
		},
	}
	return validator.ValidateAll()
}
