// Package inflation builds the accumulated price index consumed by the
// reserve engine from a monthly inflation-rate series.
package inflation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/iwvelando/curve-factors/pkg/datetime"
	"github.com/iwvelando/curve-factors/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrDuplicateMonth is returned when two observations fall in the same
// calendar month and would collide on the month id key.
var ErrDuplicateMonth = errors.New("duplicate inflation observation for month")

// Observation is one monthly inflation rate.
type Observation struct {
	Date        time.Time `json:"date"`
	MonthlyRate float64   `json:"monthlyRate"`
}

// Row is one entry of the accumulated index.
type Row struct {
	MonthID         int     `json:"monthId"`
	MonthlyRate     float64 `json:"monthlyRate"`
	CumulativeIndex float64 `json:"cumulativeIndex"`
}

// RateIssue describes an observation whose rate cannot be accumulated.
type RateIssue struct {
	Date time.Time
	Rate float64
}

// RateDomainError lists every observation with a non-finite rate or a rate
// at or below -100%.
type RateDomainError struct {
	Issues []RateIssue
}

func (e *RateDomainError) Error() string {
	first := e.Issues[0]
	return fmt.Sprintf("%d inflation observation(s) with rate outside (-1, +inf), first at %s: %v",
		len(e.Issues), datetime.FormatDate(first.Date), first.Rate)
}

// IndexDomainError is returned when the running product leaves the float64
// range: it underflows to zero or overflows even though every rate is valid.
type IndexDomainError struct {
	MonthID int
	Index   float64
}

func (e *IndexDomainError) Error() string {
	return fmt.Sprintf("inflation index outside the representable range at month %d: %v", e.MonthID, e.Index)
}

// Index is the accumulated inflation table keyed by month id.
type Index struct {
	Rows    []Row
	byMonth map[int]int
}

// Lookup returns the index row for a month id.
func (ix *Index) Lookup(monthID int) (Row, bool) {
	if ix == nil {
		return Row{}, false
	}
	i, ok := ix.byMonth[monthID]
	if !ok {
		return Row{}, false
	}
	return ix.Rows[i], true
}

// Len returns the number of months in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Rows)
}

// Builder turns inflation observations into an accumulated index.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a new index builder with the given logger.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Build sorts the observations by date and accumulates the running product
// of (1 + monthly rate), starting from 1. The input slice is not modified.
// Empty input yields an empty index.
func (b *Builder) Build(observations []Observation) (*Index, error) {
	var issues []RateIssue
	for _, obs := range observations {
		if !mathutil.IsValidRate(obs.MonthlyRate) {
			issues = append(issues, RateIssue{Date: obs.Date, Rate: obs.MonthlyRate})
		}
	}
	if len(issues) > 0 {
		return nil, &RateDomainError{Issues: issues}
	}

	sorted := make([]Observation, len(observations))
	copy(sorted, observations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	index := &Index{
		Rows:    make([]Row, 0, len(sorted)),
		byMonth: make(map[int]int, len(sorted)),
	}
	cumulative := 1.0
	for _, obs := range sorted {
		monthID := datetime.MonthID(obs.Date)
		if _, exists := index.byMonth[monthID]; exists {
			return nil, fmt.Errorf("%w %d", ErrDuplicateMonth, monthID)
		}
		cumulative *= 1 + obs.MonthlyRate
		if cumulative <= 0 || math.IsInf(cumulative, 0) || math.IsNaN(cumulative) {
			b.logger.Error("inflation index outside the representable range",
				zap.String("op", "inflation.Build"),
				zap.Int("monthId", monthID),
				zap.Float64("index", cumulative),
			)
			return nil, &IndexDomainError{MonthID: monthID, Index: cumulative}
		}
		index.byMonth[monthID] = len(index.Rows)
		index.Rows = append(index.Rows, Row{
			MonthID:         monthID,
			MonthlyRate:     obs.MonthlyRate,
			CumulativeIndex: cumulative,
		})
	}

	b.logger.Debug("inflation index built",
		zap.String("op", "inflation.Build"),
		zap.Int("months", len(index.Rows)),
		zap.Float64("finalIndex", cumulative),
	)
	return index, nil
}
