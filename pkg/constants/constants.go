// Package constants provides shared constants for the curve-factors application.
package constants

// DateLayout is the calendar date format expected in input tables and used
// for every date rendered in output tables.
const DateLayout = "2006-01-02"

// MonthLayout is the year-month format used for human-readable month keys.
const MonthLayout = "2006-01"

// Term structure constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// MonthIDYearFactor turns a year into the high digits of a month id (yyyymm).
	MonthIDYearFactor = 100

	// DefaultCoverageToleranceMonths is the number of nodes a curve must carry
	// beyond its required horizon so interim valuation dates can be interpolated.
	DefaultCoverageToleranceMonths = 2

	// DefaultFixedHorizonNodes is the skeleton length used by the fill policy
	// (120 months of validity plus the two-month tolerance).
	DefaultFixedHorizonNodes = 122

	// DefaultOutputPrecision is the number of decimal places rendered for
	// rates and factors in tabular output.
	DefaultOutputPrecision = 10
)

// Policy names accepted in configuration
const (
	// FactorPolicyCompounded compounds monthly-converted rates node over node (policy A).
	FactorPolicyCompounded = "compounded"

	// FactorPolicyPower raises each node's annual rate to its own tenor in years (policy B).
	FactorPolicyPower = "power"

	// CoveragePolicyValidate rejects the batch when any curve is short.
	CoveragePolicyValidate = "validate"

	// CoveragePolicyFill extends every curve to a fixed horizon by flat forward fill.
	CoveragePolicyFill = "fill"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Output file names written by the csv output format
const (
	// CurveFactorsFile holds the processed curve table.
	CurveFactorsFile = "curve_factors.csv"

	// InflationIndexFile holds the accumulated inflation index.
	InflationIndexFile = "inflation_index.csv"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "curve-factors.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "CURVEFACTORS"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (8 MB)
	DefaultMaxUploadSizeBytes int64 = 8 * 1024 * 1024
)

// Export defaults
const (
	// DefaultPostgresSchema is the schema the Postgres sink writes into
	DefaultPostgresSchema = "actuarial"

	// DefaultRedisPrefix namespaces every key published to Redis
	DefaultRedisPrefix = "curvefactors"
)

// Validation constants
const (
	// RateTolerance is the tolerance used when comparing derived factors
	RateTolerance = 1e-12

	// MinimumRate is the exclusive lower bound for any rate; at or below it
	// accumulation factors become zero or negative.
	MinimumRate = -1.0
)
