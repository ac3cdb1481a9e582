package curve_test

import (
	"errors"
	"testing"

	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFiller(horizon int) *curve.Filler {
	opts := curve.DefaultOptions()
	opts.CoveragePolicy = curve.CoverageFill
	opts.FixedHorizonNodes = horizon
	return curve.NewFiller(zap.NewNop(), opts)
}

func TestFillExtendsTrailingNodesFlat(t *testing.T) {
	cohort := testutil.Date("2024-01-01")
	observations := testutil.LadderObservations(cohort, "CO", "COP", 1, 120, 0.04)
	observations[119].AnnualRate = 0.05

	groups, report, err := newFiller(122).Fill(observations)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	nodes := groups[0].Nodes
	require.Len(t, nodes, 122)
	assert.Equal(t, 122, groups[0].Horizon)
	assert.Equal(t, 0, groups[0].RequiredNodes)
	assert.False(t, nodes[119].Filled)
	assert.True(t, nodes[120].Filled)
	assert.True(t, nodes[121].Filled)
	assert.Equal(t, 0.05, nodes[120].AnnualRate)
	assert.Equal(t, 0.05, nodes[121].AnnualRate)
	assert.Equal(t, 2, report.FilledNodes)
	assert.Equal(t, 120, report.Observations)
}

func TestFillClosesInteriorGaps(t *testing.T) {
	cohort := testutil.Date("2024-01-01")
	observations := []curve.Observation{
		{CohortDate: cohort, Country: "CO", Currency: "COP", Node: 4, AnnualRate: 0.04},
		{CohortDate: cohort, Country: "CO", Currency: "COP", Node: 1, AnnualRate: 0.01},
	}

	groups, report, err := newFiller(5).Fill(observations)
	require.NoError(t, err)

	rates := make([]float64, 0, 5)
	for _, node := range groups[0].Nodes {
		rates = append(rates, node.AnnualRate)
	}
	assert.Equal(t, []float64{0.01, 0.01, 0.01, 0.04, 0.04}, rates)
	assert.Equal(t, 3, report.FilledNodes)
}

func TestFillDiscardsNodesPastHorizon(t *testing.T) {
	cohort := testutil.Date("2024-01-01")
	observations := testutil.LadderObservations(cohort, "CO", "COP", 1, 10, 0.04)

	groups, report, err := newFiller(6).Fill(observations)
	require.NoError(t, err)
	assert.Len(t, groups[0].Nodes, 6)
	assert.Equal(t, 4, report.DroppedBeyondHorizon)
	assert.Equal(t, 0, report.FilledNodes)
}

func TestFillIgnoresRequirementsAndKeepsEveryCohort(t *testing.T) {
	var observations []curve.Observation
	observations = append(observations, testutil.LadderObservations(testutil.Date("2024-01-01"), "CO", "COP", 1, 2, 0.04)...)
	observations = append(observations, testutil.LadderObservations(testutil.Date("2024-01-01"), "MX", "MXN", 1, 1, 0.09)...)

	groups, _, err := newFiller(3).Fill(observations)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "MX", groups[1].Key.Country)
	assert.Equal(t, 0.09, groups[1].Nodes[2].AnnualRate)
}

func TestFillRejectsCohortWithoutFirstNode(t *testing.T) {
	observations := testutil.LadderObservations(testutil.Date("2024-01-01"), "CO", "COP", 2, 5, 0.04)

	_, _, err := newFiller(5).Fill(observations)

	var ladderErr *curve.NodeLadderError
	require.True(t, errors.As(err, &ladderErr))
	assert.Equal(t, curve.LadderMissingFirst, ladderErr.Issues[0].Kind)
}

func TestFillRejectsDuplicates(t *testing.T) {
	cohort := testutil.Date("2024-01-01")
	observations := testutil.LadderObservations(cohort, "CO", "COP", 1, 3, 0.04)
	observations = append(observations, observations[1])

	_, _, err := newFiller(5).Fill(observations)

	var ladderErr *curve.NodeLadderError
	require.True(t, errors.As(err, &ladderErr))
	assert.Equal(t, curve.LadderDuplicate, ladderErr.Issues[0].Kind)
	assert.Equal(t, 2, ladderErr.Issues[0].Node)
}

func TestFillRejectsInvalidHorizon(t *testing.T) {
	_, _, err := newFiller(0).Fill(nil)
	assert.ErrorIs(t, err, curve.ErrInvalidHorizon)
}
