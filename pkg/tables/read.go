// Package tables reads the batch input tables from CSV and writes the output
// tables back to CSV. Rates are parsed and rendered through decimals so the
// text written matches the configured precision exactly.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"github.com/shopspring/decimal"
)

// Input column names.
const (
	ColCohortDate        = "cohort_date"
	ColCountry           = "country"
	ColCurrency          = "currency"
	ColNode              = "node"
	ColAnnualRate        = "annual_effective_rate"
	ColAppliesFlag       = "applies_flag"
	ColMaxValidityMonths = "max_validity_months"
	ColDate              = "date"
	ColMonthlyRate       = "monthly_rate"
)

// ReadCurveObservations reads cohort_date, country, currency, node, and
// annual_effective_rate columns. Extra columns are ignored.
func ReadCurveObservations(r io.Reader) ([]curve.Observation, error) {
	var observations []curve.Observation
	err := readRecords(r, []string{ColCohortDate, ColCountry, ColCurrency, ColNode, ColAnnualRate}, func(rec record) error {
		cohortDate, err := rec.parseDate(ColCohortDate)
		if err != nil {
			return err
		}
		node, err := rec.parseInt(ColNode)
		if err != nil {
			return err
		}
		rate, err := rec.parseDecimal(ColAnnualRate)
		if err != nil {
			return err
		}
		observations = append(observations, curve.Observation{
			CohortDate: cohortDate,
			Country:    rec.code(ColCountry),
			Currency:   rec.code(ColCurrency),
			Node:       node,
			AnnualRate: rate,
		})
		return nil
	})
	return observations, err
}

// ReadCurveRequirements reads country, currency, applies_flag, and
// max_validity_months columns.
func ReadCurveRequirements(r io.Reader) ([]curve.Requirement, error) {
	var requirements []curve.Requirement
	err := readRecords(r, []string{ColCountry, ColCurrency, ColAppliesFlag, ColMaxValidityMonths}, func(rec record) error {
		applies, err := rec.parseBool(ColAppliesFlag)
		if err != nil {
			return err
		}
		months, err := rec.parseInt(ColMaxValidityMonths)
		if err != nil {
			return err
		}
		requirements = append(requirements, curve.Requirement{
			Country:           rec.code(ColCountry),
			Currency:          rec.code(ColCurrency),
			Applies:           applies,
			MaxValidityMonths: months,
		})
		return nil
	})
	return requirements, err
}

// ReadInflationObservations reads date and monthly_rate columns.
func ReadInflationObservations(r io.Reader) ([]inflation.Observation, error) {
	var observations []inflation.Observation
	err := readRecords(r, []string{ColDate, ColMonthlyRate}, func(rec record) error {
		date, err := rec.parseDate(ColDate)
		if err != nil {
			return err
		}
		rate, err := rec.parseDecimal(ColMonthlyRate)
		if err != nil {
			return err
		}
		observations = append(observations, inflation.Observation{Date: date, MonthlyRate: rate})
		return nil
	})
	return observations, err
}

type record struct {
	line    int
	fields  []string
	columns map[string]int
}

func (rec record) raw(column string) string {
	return strings.TrimSpace(rec.fields[rec.columns[column]])
}

func (rec record) fail(column string, err error) error {
	return fmt.Errorf("line %d, column %s: %w", rec.line, column, err)
}

func (rec record) code(column string) string {
	return strings.ToUpper(rec.raw(column))
}

func (rec record) parseDate(column string) (time.Time, error) {
	t, err := datetime.ParseDate(rec.raw(column))
	if err != nil {
		return t, rec.fail(column, err)
	}
	return datetime.DateOnly(t), nil
}

func (rec record) parseInt(column string) (int, error) {
	n, err := strconv.Atoi(rec.raw(column))
	if err != nil {
		return 0, rec.fail(column, err)
	}
	return n, nil
}

func (rec record) parseDecimal(column string) (float64, error) {
	d, err := decimal.NewFromString(rec.raw(column))
	if err != nil {
		return 0, rec.fail(column, err)
	}
	f, _ := d.Float64()
	return f, nil
}

func (rec record) parseBool(column string) (bool, error) {
	switch strings.ToLower(rec.raw(column)) {
	case "1", "t", "true", "y", "yes", "s", "si":
		return true, nil
	case "0", "f", "false", "n", "no":
		return false, nil
	default:
		return false, rec.fail(column, fmt.Errorf("invalid boolean %q", rec.raw(column)))
	}
}

// readRecords maps the header onto the required columns and calls fn for
// every data line.
func readRecords(r io.Reader, required []string, fn func(record) error) error {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("missing header, expected columns %s", strings.Join(required, ", "))
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	line := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(record{line: line, fields: fields, columns: columns}); err != nil {
			return err
		}
	}
}
