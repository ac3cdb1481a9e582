package curve

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/iwvelando/curve-factors/pkg/constants"
)

var (
	// ErrInvalidPolicy is returned for unknown factor or coverage policies.
	ErrInvalidPolicy = errors.New("invalid policy")

	// ErrInvalidHorizon is returned when the fill policy has no usable horizon.
	ErrInvalidHorizon = errors.New("invalid fixed horizon")
)

// FactorPolicy selects how accumulation factors are derived from rates.
type FactorPolicy int

const (
	// FactorCompounded (policy A) compounds the monthly equivalent of every
	// node's annual rate from node 1 up to t.
	FactorCompounded FactorPolicy = iota + 1
	// FactorPower (policy B) raises each node's own annual rate to its tenor
	// in years, independent of preceding nodes.
	FactorPower
)

func (p FactorPolicy) String() string {
	switch p {
	case FactorCompounded:
		return constants.FactorPolicyCompounded
	case FactorPower:
		return constants.FactorPolicyPower
	default:
		return fmt.Sprintf("FactorPolicy(%d)", int(p))
	}
}

// ParseFactorPolicy accepts "compounded" or "A" and "power" or "B".
func ParseFactorPolicy(value string) (FactorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case constants.FactorPolicyCompounded, "a":
		return FactorCompounded, nil
	case constants.FactorPolicyPower, "b":
		return FactorPower, nil
	default:
		return 0, fmt.Errorf("%w: factor policy %q, expected %s or %s",
			ErrInvalidPolicy, value, constants.FactorPolicyCompounded, constants.FactorPolicyPower)
	}
}

// CoveragePolicy selects how short curves are handled.
type CoveragePolicy int

const (
	// CoverageValidate fails the whole batch when any curve is short.
	CoverageValidate CoveragePolicy = iota + 1
	// CoverageFill extends every curve to a fixed horizon by flat forward
	// fill. It fabricates data past the observed horizon and must be opted into.
	CoverageFill
)

func (p CoveragePolicy) String() string {
	switch p {
	case CoverageValidate:
		return constants.CoveragePolicyValidate
	case CoverageFill:
		return constants.CoveragePolicyFill
	default:
		return fmt.Sprintf("CoveragePolicy(%d)", int(p))
	}
}

// ParseCoveragePolicy accepts "validate" or "fill".
func ParseCoveragePolicy(value string) (CoveragePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case constants.CoveragePolicyValidate:
		return CoverageValidate, nil
	case constants.CoveragePolicyFill:
		return CoverageFill, nil
	default:
		return 0, fmt.Errorf("%w: coverage policy %q, expected %s or %s",
			ErrInvalidPolicy, value, constants.CoveragePolicyValidate, constants.CoveragePolicyFill)
	}
}

// Options controls a curve batch.
type Options struct {
	FactorPolicy   FactorPolicy
	CoveragePolicy CoveragePolicy
	// FixedHorizonNodes is the skeleton length for CoverageFill.
	FixedHorizonNodes int
	// ToleranceMonths is added to R to get the required coverage.
	ToleranceMonths    int
	ForwardRates       bool
	StrictRequirements bool
	// Workers bounds the number of groups folded concurrently.
	Workers int
}

// DefaultOptions returns compounded factors with strict coverage validation.
func DefaultOptions() Options {
	return Options{
		FactorPolicy:      FactorCompounded,
		CoveragePolicy:    CoverageValidate,
		FixedHorizonNodes: constants.DefaultFixedHorizonNodes,
		ToleranceMonths:   constants.DefaultCoverageToleranceMonths,
		ForwardRates:      true,
		Workers:           runtime.GOMAXPROCS(0),
	}
}

// Validate checks that the options select known policies and usable bounds.
func (o Options) Validate() error {
	if o.FactorPolicy != FactorCompounded && o.FactorPolicy != FactorPower {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, o.FactorPolicy)
	}
	switch o.CoveragePolicy {
	case CoverageValidate:
	case CoverageFill:
		if o.FixedHorizonNodes < 1 {
			return fmt.Errorf("%w: %d nodes", ErrInvalidHorizon, o.FixedHorizonNodes)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, o.CoveragePolicy)
	}
	if o.ToleranceMonths < 0 {
		return fmt.Errorf("coverage tolerance cannot be negative, got %d", o.ToleranceMonths)
	}
	return nil
}
