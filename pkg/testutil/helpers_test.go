package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/iwvelando/curve-factors/pkg/curve"
)

func TestDate(t *testing.T) {
	got := Date("2024-02-29")
	want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Date() = %v, want %v", got, want)
	}
}

func TestDatePanicsOnInvalidInput(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid date")
		}
	}()
	Date("2024-13-01")
}

func TestLadderObservations(t *testing.T) {
	cohort := Date("2024-01-31")
	observations := LadderObservations(cohort, "CO", "COP", 3, 6, 0.07)

	if len(observations) != 4 {
		t.Fatalf("expected 4 observations, got %d", len(observations))
	}
	for i, obs := range observations {
		if obs.Node != 3+i {
			t.Errorf("observation %d has node %d", i, obs.Node)
		}
		if !obs.CohortDate.Equal(cohort) || obs.Country != "CO" || obs.Currency != "COP" || obs.AnnualRate != 0.07 {
			t.Errorf("observation %d has unexpected fields %+v", i, obs)
		}
	}

	if empty := LadderObservations(cohort, "CO", "COP", 5, 4, 0.07); len(empty) != 0 {
		t.Errorf("expected no observations for an empty range, got %d", len(empty))
	}
}

func TestFindCohortRows(t *testing.T) {
	jan := Date("2024-01-01")
	feb := Date("2024-02-01")
	rows := []curve.Row{
		{CohortDate: jan, Country: "CO", Currency: "COP", Node: 1},
		{CohortDate: jan, Country: "US", Currency: "USD", Node: 1},
		{CohortDate: jan, Country: "CO", Currency: "COP", Node: 2},
		{CohortDate: feb, Country: "CO", Currency: "COP", Node: 1},
	}

	tests := []struct {
		name  string
		key   curve.CohortKey
		nodes []int
	}{
		{"two nodes in order", curve.CohortKey{CohortDate: jan, Country: "CO", Currency: "COP"}, []int{1, 2}},
		{"other pair", curve.CohortKey{CohortDate: jan, Country: "US", Currency: "USD"}, []int{1}},
		{"other cohort date", curve.CohortKey{CohortDate: feb, Country: "CO", Currency: "COP"}, []int{1}},
		{"missing", curve.CohortKey{CohortDate: feb, Country: "US", Currency: "USD"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := FindCohortRows(rows, tt.key)
			if tt.nodes == nil {
				if found != nil {
					t.Errorf("expected nil, got %+v", found)
				}
				return
			}
			if len(found) != len(tt.nodes) {
				t.Fatalf("expected %d rows, got %d", len(tt.nodes), len(found))
			}
			for i, node := range tt.nodes {
				if found[i].Node != node {
					t.Errorf("row %d has node %d, want %d", i, found[i].Node, node)
				}
			}
		})
	}
}

func TestFindCohortRowsNilRows(t *testing.T) {
	key := curve.CohortKey{CohortDate: Date("2024-01-01"), Country: "CO", Currency: "COP"}
	if found := FindCohortRows(nil, key); found != nil {
		t.Errorf("expected nil for nil rows, got %+v", found)
	}
}

func TestFindCohortRowsLargeTable(t *testing.T) {
	cohort := Date("2024-01-01")
	var rows []curve.Row
	for i := 0; i < 1000; i++ {
		rows = append(rows, curve.Row{CohortDate: cohort, Country: fmt.Sprintf("C%03d", i%100), Currency: "XXX", Node: i/100 + 1})
	}

	found := FindCohortRows(rows, curve.CohortKey{CohortDate: cohort, Country: "C042", Currency: "XXX"})
	if len(found) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(found))
	}
	if found[9].Node != 10 {
		t.Errorf("last row has node %d, want 10", found[9].Node)
	}
}
