package curve

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/curve-factors/pkg/datetime"
)

// CoverageShortfall is one cohort whose observed nodes stop short of R + tolerance.
type CoverageShortfall struct {
	CohortDate       time.Time `json:"cohortDate"`
	Country          string    `json:"country"`
	Currency         string    `json:"currency"`
	RequiredNodes    int       `json:"requiredNodes"`
	RequiredCoverage int       `json:"requiredCoverage"`
	MaxObservedNode  int       `json:"maxObservedNode"`
}

// IncompleteCoverageError fails a batch in which at least one cohort does not
// reach its required coverage. It lists every offending cohort.
type IncompleteCoverageError struct {
	Shortfalls []CoverageShortfall
}

func (e *IncompleteCoverageError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s %s/%s (required %d, observed %d)",
			datetime.FormatDate(s.CohortDate), s.Country, s.Currency, s.RequiredCoverage, s.MaxObservedNode))
	}
	return fmt.Sprintf("incomplete curve coverage in %d cohort(s): %s", len(e.Shortfalls), strings.Join(parts, "; "))
}

// LadderIssueKind classifies a broken tenor ladder.
type LadderIssueKind string

const (
	LadderDuplicate    LadderIssueKind = "duplicate"
	LadderGap          LadderIssueKind = "gap"
	LadderInvalidNode  LadderIssueKind = "invalid"
	LadderMissingFirst LadderIssueKind = "missing-first"
)

// LadderIssue is one defect in a cohort's node sequence.
type LadderIssue struct {
	Cohort CohortKey       `json:"cohort"`
	Kind   LadderIssueKind `json:"kind"`
	Node   int             `json:"node"`
}

// NodeLadderError rejects cohorts whose nodes are not a contiguous ascending
// sequence starting at 1.
type NodeLadderError struct {
	Issues []LadderIssue
}

func (e *NodeLadderError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s node %d", issue.Cohort, issue.Kind, issue.Node))
	}
	return fmt.Sprintf("invalid node ladder in %d place(s): %s", len(e.Issues), strings.Join(parts, "; "))
}

// RateIssue is one observation whose rate cannot produce a positive factor.
type RateIssue struct {
	Cohort CohortKey `json:"cohort"`
	Node   int       `json:"node"`
	Rate   float64   `json:"rate"`
}

// RateDomainError lists every non-finite rate or rate at or below -100%.
type RateDomainError struct {
	Issues []RateIssue
}

func (e *RateDomainError) Error() string {
	first := e.Issues[0]
	return fmt.Sprintf("%d curve rate(s) outside (-1, +inf), first at %s node %d: %v",
		len(e.Issues), first.Cohort, first.Node, first.Rate)
}

// UnmatchedRequirementError is returned in strict mode when observations
// reference country and currency pairs without an applicable requirement.
type UnmatchedRequirementError struct {
	Pairs        []PairKey
	Observations int
}

func (e *UnmatchedRequirementError) Error() string {
	return fmt.Sprintf("%d observation(s) without an applicable requirement for %s",
		e.Observations, strings.Join(pairNames(e.Pairs), ", "))
}

// CohortCollisionError is returned when two cohort dates of the same country
// and currency fall in one month and would share a cohort month id.
type CohortCollisionError struct {
	Pair    PairKey
	MonthID int
	Dates   []time.Time
}

func (e *CohortCollisionError) Error() string {
	dates := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		dates = append(dates, datetime.FormatDate(d))
	}
	return fmt.Sprintf("cohort month %d of %s has more than one cohort date: %s",
		e.MonthID, e.Pair, strings.Join(dates, ", "))
}

// FactorIssue is a node whose derived factors left the representable range
// even though its rate was valid.
type FactorIssue struct {
	Cohort             CohortKey `json:"cohort"`
	Node               int       `json:"node"`
	AccumulationFactor float64   `json:"accumulationFactor"`
	DiscountFactor     float64   `json:"discountFactor"`
	CumulativeDiscount float64   `json:"cumulativeDiscountSum"`
}

// FactorDomainError lists the first node of every cohort whose accumulation
// factor underflowed to zero or overflowed, or whose discount factor or
// cumulative discount sum is not finite.
type FactorDomainError struct {
	Issues []FactorIssue
}

func (e *FactorDomainError) Error() string {
	first := e.Issues[0]
	return fmt.Sprintf("%d cohort(s) with factors outside the representable range, first at %s node %d: accumulation %v",
		len(e.Issues), first.Cohort, first.Node, first.AccumulationFactor)
}
