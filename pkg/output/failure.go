package output

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/inflation"
	"gopkg.in/yaml.v3"
)

// Failure kinds reported to callers.
const (
	FailureIncompleteCoverage   = "incomplete_coverage"
	FailureNodeLadder           = "node_ladder"
	FailureRateDomain           = "rate_domain"
	FailureInflationRateDomain  = "inflation_rate_domain"
	FailureFactorDomain         = "factor_domain"
	FailureInflationIndexDomain = "inflation_index_domain"
	FailureDuplicateInflation   = "duplicate_inflation_month"
	FailureUnmatchedRequirement = "unmatched_requirement"
	FailureCohortCollision      = "cohort_collision"
	FailureInvalidOptions       = "invalid_options"
	FailureBadRequest           = "bad_request"
	FailureInternal             = "error"
)

// Failure is the structured form of a batch error. Every offending cohort is
// listed so the upstream feed can be corrected in one pass.
type Failure struct {
	Kind           string           `json:"kind" yaml:"kind"`
	Message        string           `json:"message" yaml:"message"`
	Shortfalls     []ShortfallEntry `json:"shortfalls,omitempty" yaml:"shortfalls,omitempty"`
	LadderIssues   []LadderEntry    `json:"ladderIssues,omitempty" yaml:"ladderIssues,omitempty"`
	RateIssues     []RateEntry      `json:"rateIssues,omitempty" yaml:"rateIssues,omitempty"`
	FactorIssues   []FactorEntry    `json:"factorIssues,omitempty" yaml:"factorIssues,omitempty"`
	UnmatchedPairs []string         `json:"unmatchedPairs,omitempty" yaml:"unmatchedPairs,omitempty"`
}

type ShortfallEntry struct {
	CohortDate       string `json:"cohortDate" yaml:"cohortDate"`
	Country          string `json:"country" yaml:"country"`
	Currency         string `json:"currency" yaml:"currency"`
	RequiredNodes    int    `json:"requiredNodes" yaml:"requiredNodes"`
	RequiredCoverage int    `json:"requiredCoverage" yaml:"requiredCoverage"`
	MaxObservedNode  int    `json:"maxObservedNode" yaml:"maxObservedNode"`
}

type LadderEntry struct {
	Cohort string `json:"cohort" yaml:"cohort"`
	Kind   string `json:"kind" yaml:"kind"`
	Node   int    `json:"node" yaml:"node"`
}

// RateEntry carries the rate as text so NaN and infinities survive encoding.
type RateEntry struct {
	Cohort string `json:"cohort,omitempty" yaml:"cohort,omitempty"`
	Node   int    `json:"node,omitempty" yaml:"node,omitempty"`
	Date   string `json:"date,omitempty" yaml:"date,omitempty"`
	Rate   string `json:"rate" yaml:"rate"`
}

// FactorEntry is the first node of a cohort, or the month of the inflation
// index, whose factors left the float64 range. Values are text for the same
// reason as RateEntry.
type FactorEntry struct {
	Cohort             string `json:"cohort,omitempty" yaml:"cohort,omitempty"`
	Node               int    `json:"node,omitempty" yaml:"node,omitempty"`
	MonthID            int    `json:"monthId,omitempty" yaml:"monthId,omitempty"`
	AccumulationFactor string `json:"accumulationFactor" yaml:"accumulationFactor"`
	DiscountFactor     string `json:"discountFactor,omitempty" yaml:"discountFactor,omitempty"`
}

// DescribeFailure maps an error returned by a batch onto a Failure.
func DescribeFailure(err error) Failure {
	if err == nil {
		return Failure{}
	}
	failure := Failure{Kind: FailureInternal, Message: err.Error()}

	var (
		coverageErr  *curve.IncompleteCoverageError
		ladderErr    *curve.NodeLadderError
		rateErr      *curve.RateDomainError
		inflationErr *inflation.RateDomainError
		factorErr    *curve.FactorDomainError
		indexErr     *inflation.IndexDomainError
		unmatchedErr *curve.UnmatchedRequirementError
		collisionErr *curve.CohortCollisionError
	)
	switch {
	case errors.As(err, &coverageErr):
		failure.Kind = FailureIncompleteCoverage
		for _, s := range coverageErr.Shortfalls {
			failure.Shortfalls = append(failure.Shortfalls, ShortfallEntry{
				CohortDate:       datetime.FormatDate(s.CohortDate),
				Country:          s.Country,
				Currency:         s.Currency,
				RequiredNodes:    s.RequiredNodes,
				RequiredCoverage: s.RequiredCoverage,
				MaxObservedNode:  s.MaxObservedNode,
			})
		}
	case errors.As(err, &ladderErr):
		failure.Kind = FailureNodeLadder
		for _, issue := range ladderErr.Issues {
			failure.LadderIssues = append(failure.LadderIssues, LadderEntry{
				Cohort: issue.Cohort.String(),
				Kind:   string(issue.Kind),
				Node:   issue.Node,
			})
		}
	case errors.As(err, &rateErr):
		failure.Kind = FailureRateDomain
		for _, issue := range rateErr.Issues {
			failure.RateIssues = append(failure.RateIssues, RateEntry{
				Cohort: issue.Cohort.String(),
				Node:   issue.Node,
				Rate:   formatRate(issue.Rate),
			})
		}
	case errors.As(err, &inflationErr):
		failure.Kind = FailureInflationRateDomain
		for _, issue := range inflationErr.Issues {
			failure.RateIssues = append(failure.RateIssues, RateEntry{
				Date: datetime.FormatDate(issue.Date),
				Rate: formatRate(issue.Rate),
			})
		}
	case errors.As(err, &factorErr):
		failure.Kind = FailureFactorDomain
		for _, issue := range factorErr.Issues {
			failure.FactorIssues = append(failure.FactorIssues, FactorEntry{
				Cohort:             issue.Cohort.String(),
				Node:               issue.Node,
				AccumulationFactor: formatRate(issue.AccumulationFactor),
				DiscountFactor:     formatRate(issue.DiscountFactor),
			})
		}
	case errors.As(err, &indexErr):
		failure.Kind = FailureInflationIndexDomain
		failure.FactorIssues = []FactorEntry{{
			MonthID:            indexErr.MonthID,
			AccumulationFactor: formatRate(indexErr.Index),
		}}
	case errors.As(err, &unmatchedErr):
		failure.Kind = FailureUnmatchedRequirement
		for _, pair := range unmatchedErr.Pairs {
			failure.UnmatchedPairs = append(failure.UnmatchedPairs, pair.String())
		}
	case errors.As(err, &collisionErr):
		failure.Kind = FailureCohortCollision
	case errors.Is(err, inflation.ErrDuplicateMonth):
		failure.Kind = FailureDuplicateInflation
	case errors.Is(err, curve.ErrInvalidPolicy), errors.Is(err, curve.ErrInvalidHorizon):
		failure.Kind = FailureInvalidOptions
	}
	return failure
}

// IsInputFailure reports whether the failure was caused by the input tables
// rather than by settings or the runtime.
func (f Failure) IsInputFailure() bool {
	switch f.Kind {
	case "", FailureInternal, FailureInvalidOptions, FailureBadRequest:
		return false
	default:
		return true
	}
}

// WriteFailureYAML renders a batch error as YAML.
func WriteFailureYAML(w io.Writer, err error) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if encodeErr := encoder.Encode(DescribeFailure(err)); encodeErr != nil {
		return fmt.Errorf("failed to encode failure: %w", encodeErr)
	}
	return encoder.Close()
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'g', -1, 64)
}
