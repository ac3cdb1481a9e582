package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/curve-factors/pkg/curve"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curve-factors.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "No config file",
			configPath: "",
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
			}
		})
	}
}

func TestLoadConfigurationDefaults(t *testing.T) {
	config, err := LoadConfiguration(writeConfig(t, "output:\n  format: csv\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if config.Engine.FactorPolicy != "compounded" {
		t.Errorf("expected compounded factor policy, got %s", config.Engine.FactorPolicy)
	}
	if config.Engine.CoveragePolicy != "validate" {
		t.Errorf("expected validate coverage policy, got %s", config.Engine.CoveragePolicy)
	}
	if config.Engine.FixedHorizonNodes != 122 {
		t.Errorf("expected 122 fixed horizon nodes, got %d", config.Engine.FixedHorizonNodes)
	}
	if config.Engine.CoverageToleranceMonths != 2 {
		t.Errorf("expected tolerance of 2, got %d", config.Engine.CoverageToleranceMonths)
	}
	if !config.Engine.ForwardRates {
		t.Errorf("expected forward rates on by default")
	}
	if config.Output.Format != "csv" {
		t.Errorf("expected csv output, got %s", config.Output.Format)
	}
	if config.Output.Precision != 10 {
		t.Errorf("expected precision 10, got %d", config.Output.Precision)
	}
	if config.Export.Postgres.Schema != "actuarial" {
		t.Errorf("expected default schema, got %s", config.Export.Postgres.Schema)
	}
	if config.Export.Redis.Prefix != "curvefactors" {
		t.Errorf("expected default redis prefix, got %s", config.Export.Redis.Prefix)
	}
}

func TestLoadConfigurationFull(t *testing.T) {
	path := writeConfig(t, `engine:
  factorPolicy: power
  coveragePolicy: fill
  fixedHorizonNodes: 60
  coverageToleranceMonths: 1
  forwardRates: false
  strictRequirements: true
  workers: 3
inputs:
  curveObservations: data/curves.csv
  curveRequirements: data/requirements.csv
  inflationObservations: /srv/inflation.csv
output:
  format: pretty
  precision: 8
logging:
  level: debug
  format: json
export:
  redis:
    enabled: true
    addr: localhost:6379
    db: 2
    ttl: 24h
`)

	config, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	opts, err := config.CurveOptions()
	if err != nil {
		t.Fatalf("CurveOptions() error = %v", err)
	}
	if opts.FactorPolicy != curve.FactorPower || opts.CoveragePolicy != curve.CoverageFill {
		t.Errorf("unexpected policies %s/%s", opts.FactorPolicy, opts.CoveragePolicy)
	}
	if opts.FixedHorizonNodes != 60 || opts.ToleranceMonths != 1 || opts.Workers != 3 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.ForwardRates || !opts.StrictRequirements {
		t.Errorf("unexpected flags %+v", opts)
	}

	if config.Logging.Level != "debug" || config.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", config.Logging)
	}
	if config.Export.Redis.TTL != 24*time.Hour || config.Export.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", config.Export.Redis)
	}

	write := config.WriteOptions()
	if write.Precision != 8 || write.ForwardRates {
		t.Errorf("unexpected write options %+v", write)
	}

	dir := filepath.Dir(path)
	if got := config.ResolvePath(config.Inputs.CurveObservations); got != filepath.Join(dir, "data", "curves.csv") {
		t.Errorf("ResolvePath() = %s", got)
	}
	if got := config.ResolvePath(config.Inputs.InflationObservations); got != "/srv/inflation.csv" {
		t.Errorf("ResolvePath() changed an absolute path to %s", got)
	}
}

func TestLoadConfigurationEnvironmentOverride(t *testing.T) {
	t.Setenv("CURVEFACTORS_ENGINE_FACTORPOLICY", "power")
	t.Setenv("CURVEFACTORS_OUTPUT_PRECISION", "4")

	config, err := LoadConfiguration(writeConfig(t, "engine:\n  factorPolicy: compounded\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if config.Engine.FactorPolicy != "power" {
		t.Errorf("expected environment to override factor policy, got %s", config.Engine.FactorPolicy)
	}
	if config.Output.Precision != 4 {
		t.Errorf("expected environment to override precision, got %d", config.Output.Precision)
	}
}

func TestCurveOptionsInvalidPolicy(t *testing.T) {
	config, err := LoadConfiguration(writeConfig(t, "engine:\n  factorPolicy: linear\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if _, err := config.CurveOptions(); !errors.Is(err, curve.ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
	if _, err := config.ValidateConfiguration(); err == nil {
		t.Errorf("expected validation error for unknown policy")
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantWarning string
		wantError   string
	}{
		{
			name:    "Defaults",
			content: "output:\n  format: pretty\n",
		},
		{
			name:        "Custom horizon under validate",
			content:     "engine:\n  fixedHorizonNodes: 60\n",
			wantWarning: "ignored",
		},
		{
			name:      "Postgres without dsn",
			content:   "export:\n  postgres:\n    enabled: true\n",
			wantError: "dsn",
		},
		{
			name:      "Unknown output format",
			content:   "output:\n  format: xml\n",
			wantError: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(writeConfig(t, tt.content))
			if err != nil {
				t.Fatalf("LoadConfiguration() error = %v", err)
			}
			warnings, err := config.ValidateConfiguration()
			if tt.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantError) {
					t.Errorf("expected error containing %q, got %v", tt.wantError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateConfiguration() error = %v", err)
			}
			if tt.wantWarning == "" && len(warnings) != 0 {
				t.Errorf("expected no warnings, got %v", warnings)
			}
			if tt.wantWarning != "" && (len(warnings) != 1 || !strings.Contains(warnings[0], tt.wantWarning)) {
				t.Errorf("expected warning containing %q, got %v", tt.wantWarning, warnings)
			}
		})
	}
}

func TestExampleConfiguration(t *testing.T) {
	conf, err := LoadConfiguration("../../curve-factors.yaml.example")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	warnings, err := conf.ValidateConfiguration()
	if err != nil {
		t.Fatalf("ValidateConfiguration() error = %v", err)
	}
	for _, warning := range warnings {
		t.Logf("warning: %s", warning)
	}

	opts, err := conf.CurveOptions()
	if err != nil {
		t.Fatalf("CurveOptions() error = %v", err)
	}
	if opts.FactorPolicy != curve.FactorCompounded || opts.CoveragePolicy != curve.CoverageValidate {
		t.Errorf("unexpected policies %v/%v", opts.FactorPolicy, opts.CoveragePolicy)
	}
	if conf.Export.Redis.TTL != 720*time.Hour {
		t.Errorf("redis ttl = %v, want 720h", conf.Export.Redis.TTL)
	}
	if got := conf.ResolvePath(conf.Inputs.CurveObservations); got != filepath.Join("../..", "data/curve_observations.csv") {
		t.Errorf("ResolvePath() = %s", got)
	}
}
