package tables

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/shopspring/decimal"
)

// WriteOptions controls how numbers are rendered.
type WriteOptions struct {
	// Precision is the number of decimal places for rates and factors.
	Precision int32
	// ForwardRates adds the forward_rate column to the curve table.
	ForwardRates bool
}

// DefaultWriteOptions renders DefaultOutputPrecision places with forward rates.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Precision: constants.DefaultOutputPrecision, ForwardRates: true}
}

// CurveFactorsHeader returns the curve table columns for the given options.
func CurveFactorsHeader(opts WriteOptions) []string {
	header := []string{
		"cohort_month_id", "cohort_date", "country", "currency", "node",
		"valuation_month_id", "valuation_date", "annual_effective_rate", "monthly_rate",
	}
	if opts.ForwardRates {
		header = append(header, "forward_rate")
	}
	return append(header, "accumulation_factor", "discount_factor", "cumulative_discount_sum", "extrapolated")
}

// InflationIndexHeader returns the inflation table columns.
func InflationIndexHeader() []string {
	return []string{"month_id", "monthly_rate", "cumulative_index"}
}

// WriteCurveFactors writes the processed curve table as CSV.
func WriteCurveFactors(w io.Writer, rows []curve.Row, opts WriteOptions) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CurveFactorsHeader(opts)); err != nil {
		return fmt.Errorf("failed to write curve header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.CohortMonthID),
			datetime.FormatDate(row.CohortDate),
			row.Country,
			row.Currency,
			strconv.Itoa(row.Node),
			strconv.Itoa(row.ValuationMonthID),
			datetime.FormatDate(row.ValuationDate),
			FormatDecimal(row.AnnualRate, opts.Precision),
			FormatDecimal(row.MonthlyRate, opts.Precision),
		}
		if opts.ForwardRates {
			forward := ""
			if row.ForwardRate != nil {
				forward = FormatDecimal(*row.ForwardRate, opts.Precision)
			}
			record = append(record, forward)
		}
		record = append(record,
			FormatDecimal(row.AccumulationFactor, opts.Precision),
			FormatDecimal(row.DiscountFactor, opts.Precision),
			FormatDecimal(row.CumulativeDiscountSum, opts.Precision),
			strconv.FormatBool(row.Extrapolated),
		)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write curve row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteInflationIndex writes the accumulated inflation index as CSV.
func WriteInflationIndex(w io.Writer, rows []inflation.Row, opts WriteOptions) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(InflationIndexHeader()); err != nil {
		return fmt.Errorf("failed to write inflation header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.MonthID),
			FormatDecimal(row.MonthlyRate, opts.Precision),
			FormatDecimal(row.CumulativeIndex, opts.Precision),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write inflation row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatDecimal renders v rounded half away from zero to places decimals.
// NaN and infinities have no decimal form and are rendered as strconv does.
func FormatDecimal(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
