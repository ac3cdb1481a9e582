// Package testutil provides common utility functions for testing.
package testutil

import (
	"time"

	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
)

// Date parses a yyyy-mm-dd string and panics on error.
func Date(s string) time.Time {
	return datetime.MustParseTime(datetime.DateLayout, s)
}

// LadderObservations builds one observation per node in [from, to] for a
// cohort, all at the same annual rate.
func LadderObservations(cohort time.Time, country, currency string, from, to int, rate float64) []curve.Observation {
	var observations []curve.Observation
	for node := from; node <= to; node++ {
		observations = append(observations, curve.Observation{
			CohortDate: cohort,
			Country:    country,
			Currency:   currency,
			Node:       node,
			AnnualRate: rate,
		})
	}
	return observations
}

// FindCohortRows returns the rows of one cohort in table order.
// Returns nil if the cohort has no rows.
func FindCohortRows(rows []curve.Row, key curve.CohortKey) []curve.Row {
	var found []curve.Row
	for _, row := range rows {
		if row.Country == key.Country && row.Currency == key.Currency && row.CohortDate.Equal(key.CohortDate) {
			found = append(found, row)
		}
	}
	return found
}
