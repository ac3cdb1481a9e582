package curve

import (
	"fmt"
)

// RowKey addresses a row by cohort and tenor.
type RowKey struct {
	CohortMonthID int
	Country       string
	Currency      string
	Node          int
}

// ValuationKey addresses a row by the calendar month being valued.
type ValuationKey struct {
	ValuationMonthID int
	Country          string
	Currency         string
	CohortMonthID    int
}

// Table is the processed curve indexed for constant-time joins either by
// cohort and node or by valuation month.
type Table struct {
	Rows        []Row
	byNode      map[RowKey]int
	byValuation map[ValuationKey]int
}

// NewTable indexes rows. Two rows sharing a key are an error.
func NewTable(rows []Row) (*Table, error) {
	t := &Table{
		Rows:        rows,
		byNode:      make(map[RowKey]int, len(rows)),
		byValuation: make(map[ValuationKey]int, len(rows)),
	}
	for i, row := range rows {
		nodeKey := RowKey{CohortMonthID: row.CohortMonthID, Country: row.Country, Currency: row.Currency, Node: row.Node}
		if _, exists := t.byNode[nodeKey]; exists {
			return nil, fmt.Errorf("duplicate curve row for cohort %d %s/%s node %d",
				row.CohortMonthID, row.Country, row.Currency, row.Node)
		}
		t.byNode[nodeKey] = i

		valuationKey := ValuationKey{ValuationMonthID: row.ValuationMonthID, Country: row.Country, Currency: row.Currency, CohortMonthID: row.CohortMonthID}
		if _, exists := t.byValuation[valuationKey]; exists {
			return nil, fmt.Errorf("duplicate curve row for cohort %d %s/%s valuation month %d",
				row.CohortMonthID, row.Country, row.Currency, row.ValuationMonthID)
		}
		t.byValuation[valuationKey] = i
	}
	return t, nil
}

// Lookup returns the row for a cohort month, country, currency, and node.
func (t *Table) Lookup(cohortMonthID int, country, currency string, node int) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	i, ok := t.byNode[RowKey{CohortMonthID: cohortMonthID, Country: country, Currency: currency, Node: node}]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// LookupValuation returns the row of a cohort that values the given month.
func (t *Table) LookupValuation(valuationMonthID int, country, currency string, cohortMonthID int) (Row, bool) {
	if t == nil {
		return Row{}, false
	}
	i, ok := t.byValuation[ValuationKey{ValuationMonthID: valuationMonthID, Country: country, Currency: currency, CohortMonthID: cohortMonthID}]
	if !ok {
		return Row{}, false
	}
	return t.Rows[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Cohorts returns the distinct cohorts in row order.
func (t *Table) Cohorts() []CohortKey {
	if t == nil {
		return nil
	}
	seen := make(map[CohortKey]struct{})
	var keys []CohortKey
	for _, row := range t.Rows {
		key := row.Key()
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
