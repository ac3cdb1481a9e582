// Package actuarial composes the inflation index and the curve factor table
// handed to the reserve engine.
package actuarial

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"go.uber.org/zap"
)

// Inputs holds the three input tables of one batch.
type Inputs struct {
	CurveObservations     []curve.Observation     `json:"curveObservations"`
	CurveRequirements     []curve.Requirement     `json:"curveRequirements"`
	InflationObservations []inflation.Observation `json:"inflationObservations"`
}

// Result holds both output tables of a successful batch.
type Result struct {
	RunID     string
	Options   curve.Options
	Inflation *inflation.Index
	Curves    *curve.Table
	Report    curve.Report
	Duration  time.Duration
}

// BuildTables runs one batch: curves are completed and checked first, then the
// inflation index is accumulated, then factors are derived. Any failure
// returns a nil Result; there is no partial output.
func BuildTables(ctx context.Context, logger *zap.Logger, in Inputs, opts curve.Options) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger = logger.With(zap.String("runId", runID))
	logger.Info("building actuarial inputs",
		zap.String("op", "actuarial.BuildTables"),
		zap.Stringer("factorPolicy", opts.FactorPolicy),
		zap.Stringer("coveragePolicy", opts.CoveragePolicy),
		zap.Int("curveObservations", len(in.CurveObservations)),
		zap.Int("inflationObservations", len(in.InflationObservations)),
	)

	groups, report, err := completeCurves(logger, in, opts)
	if err != nil {
		return nil, err
	}

	index, err := inflation.NewBuilder(logger).Build(in.InflationObservations)
	if err != nil {
		return nil, fmt.Errorf("failed to build inflation index: %w", err)
	}

	rows, err := curve.NewEngine(logger, opts).Compute(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("failed to compute curve factors: %w", err)
	}
	table, err := curve.NewTable(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to index curve factors: %w", err)
	}

	result := &Result{
		RunID:     runID,
		Options:   opts,
		Inflation: index,
		Curves:    table,
		Report:    report,
		Duration:  time.Since(start),
	}
	logger.Info("actuarial inputs built",
		zap.String("op", "actuarial.BuildTables"),
		zap.Int("cohorts", report.Groups),
		zap.Int("curveRows", table.Len()),
		zap.Int("inflationMonths", index.Len()),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// CheckCoverage runs only the completion step and reports what a full batch
// would keep, discard, or reject.
func CheckCoverage(logger *zap.Logger, in Inputs, opts curve.Options) (curve.Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return curve.Report{}, err
	}
	_, report, err := completeCurves(logger, in, opts)
	return report, err
}

func completeCurves(logger *zap.Logger, in Inputs, opts curve.Options) ([]curve.Group, curve.Report, error) {
	switch opts.CoveragePolicy {
	case curve.CoverageFill:
		if len(in.CurveRequirements) > 0 {
			logger.Warn("fill policy ignores curve requirements",
				zap.String("op", "actuarial.completeCurves"),
				zap.Int("requirements", len(in.CurveRequirements)),
				zap.Int("fixedHorizonNodes", opts.FixedHorizonNodes),
			)
		}
		return curve.NewFiller(logger, opts).Fill(in.CurveObservations)
	default:
		return curve.NewValidator(logger, opts).Validate(in.CurveObservations, in.CurveRequirements)
	}
}
