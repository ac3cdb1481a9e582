package curve

import (
	"time"

	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/mathutil"
	"go.uber.org/zap"
)

// Validator checks that every cohort covers its required horizon before any
// factor is computed. Failure is all-or-nothing: a single short cohort
// rejects the whole batch.
type Validator struct {
	logger    *zap.Logger
	tolerance int
	strict    bool
}

// NewValidator creates a validator using the tolerance and strictness from opts.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewValidator(logger *zap.Logger, opts Options) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		logger:    logger,
		tolerance: opts.ToleranceMonths,
		strict:    opts.StrictRequirements,
	}
}

// Validate joins observations to their requirement, discards nodes past
// R + tolerance, and returns one Group per cohort with nodes 1..R+tolerance.
//
// Errors, checked in order: *UnmatchedRequirementError (strict mode only),
// *IncompleteCoverageError, *NodeLadderError, *RateDomainError,
// *CohortCollisionError. The Report is filled in as far as validation got.
func (v *Validator) Validate(observations []Observation, requirements []Requirement) ([]Group, Report, error) {
	var report Report

	required, err := ReduceRequirements(requirements)
	if err != nil {
		return nil, report, err
	}

	unmatched := make(map[PairKey]struct{})
	joined := make([]Observation, 0, len(observations))
	for _, obs := range observations {
		pair := PairKey{Country: obs.Country, Currency: obs.Currency}
		if _, ok := required[pair]; !ok {
			report.DroppedUnmatched++
			unmatched[pair] = struct{}{}
			continue
		}
		joined = append(joined, obs)
	}
	for pair := range unmatched {
		report.UnmatchedPairs = append(report.UnmatchedPairs, pair)
	}
	sortPairs(report.UnmatchedPairs)

	if report.DroppedUnmatched > 0 {
		if v.strict {
			return nil, report, &UnmatchedRequirementError{
				Pairs:        report.UnmatchedPairs,
				Observations: report.DroppedUnmatched,
			}
		}
		v.logger.Warn("dropping curve observations without an applicable requirement",
			zap.String("op", "curve.Validate"),
			zap.Int("observations", report.DroppedUnmatched),
			zap.Strings("pairs", pairNames(report.UnmatchedPairs)),
		)
	}

	buckets, keys := groupObservations(joined)
	var shortfalls []CoverageShortfall
	trimmedCohorts := 0
	for _, key := range keys {
		coverage := required[key.Pair()] + v.tolerance
		retained, dropped := truncate(buckets[key], coverage)
		buckets[key] = retained
		report.DroppedBeyondHorizon += dropped
		if dropped > 0 {
			trimmedCohorts++
		}

		maxObserved := 0
		if len(retained) > 0 {
			maxObserved = retained[len(retained)-1].Node
		}
		if maxObserved < coverage {
			shortfalls = append(shortfalls, CoverageShortfall{
				CohortDate:       key.CohortDate,
				Country:          key.Country,
				Currency:         key.Currency,
				RequiredNodes:    required[key.Pair()],
				RequiredCoverage: coverage,
				MaxObservedNode:  maxObserved,
			})
		}
	}
	if report.DroppedBeyondHorizon > 0 {
		v.logger.Warn("discarding curve observations beyond required coverage",
			zap.String("op", "curve.Validate"),
			zap.Int("observations", report.DroppedBeyondHorizon),
			zap.Int("cohorts", trimmedCohorts),
		)
	}
	if len(shortfalls) > 0 {
		v.logger.Error("curve coverage validation failed",
			zap.String("op", "curve.Validate"),
			zap.Int("cohorts", len(shortfalls)),
		)
		return nil, report, &IncompleteCoverageError{Shortfalls: shortfalls}
	}

	if err := checkBuckets(buckets, keys, false); err != nil {
		return nil, report, err
	}

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		bucket := buckets[key]
		nodes := make([]Node, len(bucket))
		for i, obs := range bucket {
			nodes[i] = Node{Node: obs.Node, AnnualRate: obs.AnnualRate}
		}
		groups = append(groups, Group{
			Key:           key,
			RequiredNodes: required[key.Pair()],
			Horizon:       required[key.Pair()] + v.tolerance,
			Nodes:         nodes,
		})
		report.Observations += len(bucket)
	}
	report.Groups = len(groups)
	return groups, report, nil
}

// truncate keeps the prefix of a node-sorted bucket with nodes <= limit.
func truncate(bucket []Observation, limit int) ([]Observation, int) {
	for i, obs := range bucket {
		if obs.Node > limit {
			return bucket[:i], len(bucket) - i
		}
	}
	return bucket, 0
}

// checkBuckets runs the ladder, rate, and cohort month checks shared by
// both coverage policies.
func checkBuckets(buckets map[CohortKey][]Observation, keys []CohortKey, allowGaps bool) error {
	var ladder []LadderIssue
	var rates []RateIssue
	for _, key := range keys {
		bucket := buckets[key]
		ladder = append(ladder, ladderIssues(key, bucket, allowGaps)...)
		for _, obs := range bucket {
			if !mathutil.IsValidRate(obs.AnnualRate) {
				rates = append(rates, RateIssue{Cohort: key, Node: obs.Node, Rate: obs.AnnualRate})
			}
		}
	}
	if len(ladder) > 0 {
		return &NodeLadderError{Issues: ladder}
	}
	if len(rates) > 0 {
		return &RateDomainError{Issues: rates}
	}
	return checkCohortMonths(keys)
}

// ladderIssues walks a node-sorted bucket and reports anything that keeps it
// from being the ladder 1, 2, 3, ... Gaps are tolerated when allowGaps is set
// because the fill policy closes them.
func ladderIssues(key CohortKey, bucket []Observation, allowGaps bool) []LadderIssue {
	var issues []LadderIssue
	prev := 0
	for _, obs := range bucket {
		switch {
		case obs.Node < 1:
			issues = append(issues, LadderIssue{Cohort: key, Kind: LadderInvalidNode, Node: obs.Node})
			continue
		case obs.Node == prev:
			issues = append(issues, LadderIssue{Cohort: key, Kind: LadderDuplicate, Node: obs.Node})
			continue
		case prev == 0 && obs.Node != 1:
			issues = append(issues, LadderIssue{Cohort: key, Kind: LadderMissingFirst, Node: 1})
		case obs.Node != prev+1 && !allowGaps:
			issues = append(issues, LadderIssue{Cohort: key, Kind: LadderGap, Node: prev + 1})
		}
		prev = obs.Node
	}
	if prev == 0 && len(issues) == 0 {
		issues = append(issues, LadderIssue{Cohort: key, Kind: LadderMissingFirst, Node: 1})
	}
	return issues
}

// checkCohortMonths rejects cohort dates that would collide on the
// (cohort month id, country, currency) join key.
func checkCohortMonths(keys []CohortKey) error {
	type monthKey struct {
		pair  PairKey
		month int
	}
	seen := make(map[monthKey][]time.Time)
	var order []monthKey
	for _, key := range keys {
		mk := monthKey{pair: key.Pair(), month: datetime.MonthID(key.CohortDate)}
		if _, exists := seen[mk]; !exists {
			order = append(order, mk)
		}
		seen[mk] = append(seen[mk], key.CohortDate)
	}
	for _, mk := range order {
		if dates := seen[mk]; len(dates) > 1 {
			return &CohortCollisionError{Pair: mk.pair, MonthID: mk.month, Dates: dates}
		}
	}
	return nil
}
