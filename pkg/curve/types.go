// Package curve completes sparse annual-effective rate observations into
// contiguous monthly term structures and derives accumulation factors,
// discount factors, forward rates, and cumulative discounted sums per cohort.
//
// The flow is Validator (or Filler) producing ordered Groups, then Engine
// folding every Group independently into Rows, then Table indexing the Rows
// for constant-time joins.
package curve

import (
	"fmt"
	"sort"
	"time"

	"github.com/iwvelando/curve-factors/pkg/datetime"
)

// Observation is one externally supplied rate for a cohort at a tenor.
type Observation struct {
	CohortDate time.Time `json:"cohortDate"`
	Country    string    `json:"country"`
	Currency   string    `json:"currency"`
	Node       int       `json:"node"`
	AnnualRate float64   `json:"annualEffectiveRate"`
}

// Requirement carries the contractual validity horizon for a country and currency.
type Requirement struct {
	Country           string `json:"country"`
	Currency          string `json:"currency"`
	Applies           bool   `json:"applies"`
	MaxValidityMonths int    `json:"maxValidityMonths"`
}

// PairKey identifies a (country, currency) pair.
type PairKey struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

func (p PairKey) String() string {
	return p.Country + "/" + p.Currency
}

// CohortKey identifies one term-structure instance.
type CohortKey struct {
	CohortDate time.Time `json:"cohortDate"`
	Country    string    `json:"country"`
	Currency   string    `json:"currency"`
}

func (k CohortKey) String() string {
	return fmt.Sprintf("%s %s/%s", datetime.FormatDate(k.CohortDate), k.Country, k.Currency)
}

// Pair returns the (country, currency) part of the key.
func (k CohortKey) Pair() PairKey {
	return PairKey{Country: k.Country, Currency: k.Currency}
}

func (k CohortKey) less(other CohortKey) bool {
	if !k.CohortDate.Equal(other.CohortDate) {
		return k.CohortDate.Before(other.CohortDate)
	}
	if k.Country != other.Country {
		return k.Country < other.Country
	}
	return k.Currency < other.Currency
}

func keyOf(obs Observation) CohortKey {
	return CohortKey{
		CohortDate: datetime.DateOnly(obs.CohortDate),
		Country:    obs.Country,
		Currency:   obs.Currency,
	}
}

// Node is one rung of a completed tenor ladder.
type Node struct {
	Node       int
	AnnualRate float64
	// Filled marks a rate carried forward from the last observed node.
	Filled bool
}

// Group is a completed curve: nodes 1..Horizon in ascending order.
type Group struct {
	Key CohortKey
	// RequiredNodes is R for the cohort's country and currency. It is zero
	// when the group was completed by the fill policy.
	RequiredNodes int
	Horizon       int
	Nodes         []Node
}

// Row is one output entry of the processed curve table.
type Row struct {
	CohortMonthID         int       `json:"cohortMonthId"`
	CohortDate            time.Time `json:"cohortDate"`
	Country               string    `json:"country"`
	Currency              string    `json:"currency"`
	Node                  int       `json:"node"`
	ValuationMonthID      int       `json:"valuationMonthId"`
	ValuationDate         time.Time `json:"valuationDate"`
	AnnualRate            float64   `json:"annualEffectiveRate"`
	MonthlyRate           float64   `json:"monthlyRate"`
	ForwardRate           *float64  `json:"forwardRate,omitempty"`
	AccumulationFactor    float64   `json:"accumulationFactor"`
	DiscountFactor        float64   `json:"discountFactor"`
	CumulativeDiscountSum float64   `json:"cumulativeDiscountSum"`
	Extrapolated          bool      `json:"extrapolated,omitempty"`
}

// Key returns the cohort the row belongs to.
func (r Row) Key() CohortKey {
	return CohortKey{CohortDate: r.CohortDate, Country: r.Country, Currency: r.Currency}
}

// Report summarises what the completion step kept and discarded.
type Report struct {
	Groups       int `json:"groups"`
	Observations int `json:"observations"`
	// DroppedUnmatched counts observations whose country and currency had no
	// applicable requirement.
	DroppedUnmatched int       `json:"droppedUnmatched"`
	UnmatchedPairs   []PairKey `json:"unmatchedPairs,omitempty"`
	// DroppedBeyondHorizon counts observations past the retained horizon.
	DroppedBeyondHorizon int `json:"droppedBeyondHorizon"`
	// FilledNodes counts nodes fabricated by flat forward fill.
	FilledNodes int `json:"filledNodes"`
}

// groupObservations buckets observations by cohort and sorts each bucket by
// node. Keys are returned in cohort order so downstream output is stable.
func groupObservations(observations []Observation) (map[CohortKey][]Observation, []CohortKey) {
	buckets := make(map[CohortKey][]Observation)
	var keys []CohortKey
	for _, obs := range observations {
		key := keyOf(obs)
		if _, exists := buckets[key]; !exists {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], obs)
	}
	for _, key := range keys {
		bucket := buckets[key]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Node < bucket[j].Node
		})
	}
	sortKeys(keys)
	return buckets, keys
}

func sortKeys(keys []CohortKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].less(keys[j])
	})
}
