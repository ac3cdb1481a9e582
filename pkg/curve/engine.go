package curve

import (
	"context"
	"fmt"
	"math"

	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/mathutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine derives factors for completed groups. Groups share nothing, so they
// are folded concurrently; within a group nodes are folded strictly in order.
type Engine struct {
	logger       *zap.Logger
	policy       FactorPolicy
	forwardRates bool
	workers      int
}

// NewEngine creates an engine for the factor policy in opts.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewEngine(logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		logger:       logger,
		policy:       opts.FactorPolicy,
		forwardRates: opts.ForwardRates,
		workers:      workers,
	}
}

// Compute folds every group and concatenates the rows in group order.
// Groups must hold the contiguous ladder 1..n, as Validator and Filler produce.
// Valid rates can still compound past float64 range on long ladders; such
// cohorts are returned in a *FactorDomainError and no rows are produced.
func (e *Engine) Compute(ctx context.Context, groups []Group) ([]Row, error) {
	if e.policy != FactorCompounded && e.policy != FactorPower {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, e.policy)
	}
	for _, group := range groups {
		for i, node := range group.Nodes {
			if node.Node != i+1 {
				return nil, &NodeLadderError{Issues: []LadderIssue{{Cohort: group.Key, Kind: LadderGap, Node: i + 1}}}
			}
		}
	}

	results := make([][]Row, len(groups))
	issues := make([]*FactorIssue, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], issues[i] = e.fold(groups[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var domain []FactorIssue
	for _, issue := range issues {
		if issue != nil {
			domain = append(domain, *issue)
		}
	}
	if len(domain) > 0 {
		e.logger.Error("curve factors outside the representable range",
			zap.String("op", "curve.Compute"),
			zap.Stringer("policy", e.policy),
			zap.Int("cohorts", len(domain)),
		)
		return nil, &FactorDomainError{Issues: domain}
	}

	total := 0
	for _, rows := range results {
		total += len(rows)
	}
	rows := make([]Row, 0, total)
	for _, groupRows := range results {
		rows = append(rows, groupRows...)
	}

	e.logger.Debug("curve factors computed",
		zap.String("op", "curve.Compute"),
		zap.Stringer("policy", e.policy),
		zap.Int("groups", len(groups)),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// fold makes a single left-to-right pass over one group and produces the
// accumulation factor, discount factor, cumulative discount sum, and forward
// rate for every node. It stops at the first node whose factors are not
// usable and reports it instead.
func (e *Engine) fold(group Group) ([]Row, *FactorIssue) {
	rows := make([]Row, 0, len(group.Nodes))
	cohortMonthID := datetime.MonthID(group.Key.CohortDate)

	accumulation := 1.0
	previous := 1.0
	sum := 0.0
	for i, node := range group.Nodes {
		monthly := mathutil.MonthlyFromAnnual(node.AnnualRate)
		switch e.policy {
		case FactorCompounded:
			accumulation *= 1 + monthly
		case FactorPower:
			accumulation = mathutil.AnnualPowerFactor(node.AnnualRate, node.Node)
		}
		discount := 1 / accumulation
		sum += discount
		if !usableFactors(accumulation, discount, sum) {
			return nil, &FactorIssue{
				Cohort:             group.Key,
				Node:               node.Node,
				AccumulationFactor: accumulation,
				DiscountFactor:     discount,
				CumulativeDiscount: sum,
			}
		}

		valuationDate := datetime.AddMonths(group.Key.CohortDate, node.Node)
		row := Row{
			CohortMonthID:         cohortMonthID,
			CohortDate:            group.Key.CohortDate,
			Country:               group.Key.Country,
			Currency:              group.Key.Currency,
			Node:                  node.Node,
			ValuationMonthID:      datetime.MonthID(valuationDate),
			ValuationDate:         valuationDate,
			AnnualRate:            node.AnnualRate,
			MonthlyRate:           monthly,
			AccumulationFactor:    accumulation,
			DiscountFactor:        discount,
			CumulativeDiscountSum: sum,
			Extrapolated:          node.Filled,
		}
		if e.forwardRates {
			// Node 1 has no predecessor; its own monthly rate stands in.
			forward := monthly
			if i > 0 {
				forward = accumulation/previous - 1
			}
			row.ForwardRate = &forward
		}
		rows = append(rows, row)
		previous = accumulation
	}
	return rows, nil
}

// usableFactors reports whether a node's accumulation factor is finite and
// strictly positive and its discount factor and running sum are finite.
func usableFactors(accumulation, discount, sum float64) bool {
	return accumulation > 0 && !math.IsInf(accumulation, 0) &&
		!math.IsInf(discount, 0) && !math.IsNaN(discount) &&
		!math.IsInf(sum, 0) && !math.IsNaN(sum)
}
