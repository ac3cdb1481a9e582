package curve

import (
	"go.uber.org/zap"
)

// Filler completes curves without consulting requirements: every cohort is
// laid on a skeleton of nodes 1..horizon and missing rates are carried flat
// from the last observed node. It never reports a coverage shortfall, at the
// cost of fabricating rates past the observed horizon.
type Filler struct {
	logger  *zap.Logger
	horizon int
}

// NewFiller creates a filler with the fixed horizon from opts.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewFiller(logger *zap.Logger, opts Options) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{logger: logger, horizon: opts.FixedHorizonNodes}
}

// Fill returns one Group of exactly horizon nodes per cohort. Nodes past the
// horizon are discarded. A cohort without node 1 has nothing to carry forward
// and is rejected with *NodeLadderError, as are duplicate nodes.
func (f *Filler) Fill(observations []Observation) ([]Group, Report, error) {
	var report Report
	if f.horizon < 1 {
		return nil, report, ErrInvalidHorizon
	}

	buckets, keys := groupObservations(observations)
	for _, key := range keys {
		retained, dropped := truncate(buckets[key], f.horizon)
		buckets[key] = retained
		report.DroppedBeyondHorizon += dropped
	}

	if err := checkBuckets(buckets, keys, true); err != nil {
		return nil, report, err
	}

	groups := make([]Group, 0, len(keys))
	for _, key := range keys {
		bucket := buckets[key]
		nodes := make([]Node, f.horizon)
		next := 0
		var rate float64
		for n := 1; n <= f.horizon; n++ {
			filled := true
			if next < len(bucket) && bucket[next].Node == n {
				rate = bucket[next].AnnualRate
				filled = false
				next++
			}
			if filled {
				report.FilledNodes++
			}
			nodes[n-1] = Node{Node: n, AnnualRate: rate, Filled: filled}
		}
		groups = append(groups, Group{Key: key, Horizon: f.horizon, Nodes: nodes})
		report.Observations += len(bucket)
	}
	report.Groups = len(groups)

	if report.FilledNodes > 0 {
		f.logger.Warn("forward-filled missing curve nodes",
			zap.String("op", "curve.Fill"),
			zap.Int("nodes", report.FilledNodes),
			zap.Int("horizon", f.horizon),
			zap.Int("cohorts", report.Groups),
		)
	}
	return groups, report, nil
}
