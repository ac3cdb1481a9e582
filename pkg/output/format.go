// Package output provides utilities for formatting and displaying batch results.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/iwvelando/curve-factors/internal/actuarial"
	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/iwvelando/curve-factors/pkg/tables"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat outputs a human-readable rather than machine-readable summary.
func PrettyFormat(w io.Writer, result *actuarial.Result) {
	if result == nil {
		return
	}
	p := message.NewPrinter(language.English)

	_, _ = fmt.Fprintf(w, "--- Run %s ---\n", result.RunID)
	_, _ = p.Fprintf(w, "Factor policy: %s | Coverage policy: %s | Duration: %s\n",
		result.Options.FactorPolicy, result.Options.CoveragePolicy, result.Duration)
	report := result.Report
	_, _ = p.Fprintf(w, "Cohorts: %d | Observations: %d | Dropped unmatched: %d | Dropped beyond horizon: %d | Filled nodes: %d\n",
		report.Groups, report.Observations, report.DroppedUnmatched, report.DroppedBeyondHorizon, report.FilledNodes)
	if len(report.UnmatchedPairs) > 0 {
		_, _ = fmt.Fprintf(w, "Unmatched pairs: %v\n", report.UnmatchedPairs)
	}

	for _, cohort := range result.Curves.Cohorts() {
		_, _ = fmt.Fprintf(w, "\n--- Curve %s/%s cohort %s ---\n",
			cohort.Country, cohort.Currency, datetime.FormatDate(cohort.CohortDate))
		_, _ = fmt.Fprintf(w, "Node | Valuation  | Annual rate | Accumulation | Discount | Cumulative discount\n")
		_, _ = fmt.Fprintf(w, "____ | __________ | ___________ | ____________ | ________ | ___________________\n")
		for _, row := range result.Curves.Rows {
			if row.Key() != cohort {
				continue
			}
			note := ""
			if row.Extrapolated {
				note = " (filled)"
			}
			_, _ = p.Fprintf(w, "%4d | %s | %.4f%% | %.6f | %.6f | %.6f%s\n",
				row.Node, datetime.FormatDate(row.ValuationDate), row.AnnualRate*100,
				row.AccumulationFactor, row.DiscountFactor, row.CumulativeDiscountSum, note)
		}
	}

	if result.Inflation.Len() > 0 {
		_, _ = fmt.Fprintf(w, "\n--- Inflation index ---\n")
		_, _ = fmt.Fprintf(w, "Month  | Monthly rate | Cumulative index\n")
		_, _ = fmt.Fprintf(w, "______ | ____________ | ________________\n")
		for _, row := range result.Inflation.Rows {
			_, _ = p.Fprintf(w, "%s | %.4f%% | %.6f\n",
				strconv.Itoa(row.MonthID), row.MonthlyRate*100, row.CumulativeIndex)
		}
	}
}

// CsvFormat writes both output tables as CSV files into dir.
func CsvFormat(dir string, result *actuarial.Result, opts tables.WriteOptions) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("no result to write")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	var curveRows []curve.Row
	if result.Curves != nil {
		curveRows = result.Curves.Rows
	}
	curvePath := filepath.Join(dir, constants.CurveFactorsFile)
	if err := writeFile(curvePath, func(w io.Writer) error {
		return tables.WriteCurveFactors(w, curveRows, opts)
	}); err != nil {
		return nil, err
	}

	var inflationRows []inflation.Row
	if result.Inflation != nil {
		inflationRows = result.Inflation.Rows
	}
	inflationPath := filepath.Join(dir, constants.InflationIndexFile)
	if err := writeFile(inflationPath, func(w io.Writer) error {
		return tables.WriteInflationIndex(w, inflationRows, opts)
	}); err != nil {
		return nil, err
	}

	return []string{curvePath, inflationPath}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
