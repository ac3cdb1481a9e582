// Package validation checks run settings before a batch is started.
package validation

import (
	"fmt"

	"github.com/iwvelando/curve-factors/pkg/constants"
)

// maxSignificantPlaces is the number of decimal places beyond which float64
// factors carry no further information.
const maxSignificantPlaces = 15

// ValidateHorizon checks the fixed horizon and coverage tolerance against the
// coverage policy. A non-empty string is a warning; an error means the run
// cannot start.
func ValidateHorizon(coveragePolicy string, fixedHorizonNodes, toleranceMonths int) (string, error) {
	if toleranceMonths < 0 {
		return "", fmt.Errorf("coverage tolerance must be non-negative, got %d", toleranceMonths)
	}

	switch coveragePolicy {
	case constants.CoveragePolicyFill:
		if fixedHorizonNodes < 1 {
			return "", fmt.Errorf("fixed horizon must be at least 1 node under the %s policy, got %d",
				constants.CoveragePolicyFill, fixedHorizonNodes)
		}
		if fixedHorizonNodes <= toleranceMonths {
			return fmt.Sprintf("Fixed horizon of %d nodes does not exceed the %d month tolerance",
				fixedHorizonNodes, toleranceMonths), nil
		}
	case constants.CoveragePolicyValidate:
		if fixedHorizonNodes != 0 && fixedHorizonNodes != constants.DefaultFixedHorizonNodes {
			return fmt.Sprintf("Fixed horizon of %d nodes is ignored under the %s policy",
				fixedHorizonNodes, constants.CoveragePolicyValidate), nil
		}
	default:
		return "", fmt.Errorf("expected coverage policy of %s or %s, got %s",
			constants.CoveragePolicyValidate, constants.CoveragePolicyFill, coveragePolicy)
	}

	return "", nil
}

// ValidatePrecision checks the number of decimal places rendered in output.
func ValidatePrecision(precision int) (string, error) {
	if precision < 0 {
		return "", fmt.Errorf("output precision must be non-negative, got %d", precision)
	}
	if precision > maxSignificantPlaces {
		return fmt.Sprintf("Output precision of %d places exceeds float64 significance (%d)",
			precision, maxSignificantPlaces), nil
	}
	return "", nil
}

// ValidateOutput checks the table output format and where csv tables go. The
// warning is set when csv tables would land in the working directory.
func ValidateOutput(format, directory string) (string, error) {
	switch format {
	case constants.OutputFormatPretty:
		return "", nil
	case constants.OutputFormatCSV:
		if directory == "" {
			return "No output directory set, csv tables will be written to the working directory", nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("expected output format of %s or %s, got %q",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
}

// SettingsValidator collects the run settings that can be checked together.
type SettingsValidator struct {
	Engine EngineSettings
	Output OutputSettings
	Export ExportSettings
}

type EngineSettings struct {
	CoveragePolicy     string
	FixedHorizonNodes  int
	ToleranceMonths    int
	StrictRequirements bool
	Workers            int
}

type OutputSettings struct {
	Format    string
	Directory string
	Precision int
}

type ExportSettings struct {
	PostgresEnabled bool
	PostgresDSN     string
	RedisEnabled    bool
	RedisAddr       string
}

// ValidateAll validates every setting and returns warnings alongside the
// first blocking error.
func (sv *SettingsValidator) ValidateAll() ([]string, error) {
	var warnings []string

	warning, err := ValidateHorizon(sv.Engine.CoveragePolicy, sv.Engine.FixedHorizonNodes, sv.Engine.ToleranceMonths)
	if err != nil {
		return warnings, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	if sv.Engine.CoveragePolicy == constants.CoveragePolicyFill && sv.Engine.StrictRequirements {
		warnings = append(warnings, fmt.Sprintf("Strict requirements are ignored under the %s policy",
			constants.CoveragePolicyFill))
	}
	if sv.Engine.Workers < 0 {
		return warnings, fmt.Errorf("worker count must be non-negative, got %d", sv.Engine.Workers)
	}

	warning, err = ValidateOutput(sv.Output.Format, sv.Output.Directory)
	if err != nil {
		return warnings, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}
	warning, err = ValidatePrecision(sv.Output.Precision)
	if err != nil {
		return warnings, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	if sv.Export.PostgresEnabled && sv.Export.PostgresDSN == "" {
		return warnings, fmt.Errorf("postgres export is enabled but no dsn is set")
	}
	if sv.Export.RedisEnabled && sv.Export.RedisAddr == "" {
		return warnings, fmt.Errorf("redis export is enabled but no address is set")
	}

	return warnings, nil
}
