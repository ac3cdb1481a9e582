package curve

import (
	"errors"
	"testing"
)

func TestParseFactorPolicy(t *testing.T) {
	tests := []struct {
		value    string
		expected FactorPolicy
		wantErr  bool
	}{
		{value: "compounded", expected: FactorCompounded},
		{value: "A", expected: FactorCompounded},
		{value: " Power ", expected: FactorPower},
		{value: "b", expected: FactorPower},
		{value: "linear", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			result, err := ParseFactorPolicy(tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPolicy) {
					t.Errorf("ParseFactorPolicy(%q) error = %v, expected ErrInvalidPolicy", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFactorPolicy(%q) error = %v", tt.value, err)
			}
			if result != tt.expected {
				t.Errorf("ParseFactorPolicy(%q) = %s, expected %s", tt.value, result, tt.expected)
			}
		})
	}
}

func TestParseCoveragePolicy(t *testing.T) {
	if p, err := ParseCoveragePolicy("validate"); err != nil || p != CoverageValidate {
		t.Errorf("ParseCoveragePolicy(validate) = %s, %v", p, err)
	}
	if p, err := ParseCoveragePolicy("FILL"); err != nil || p != CoverageFill {
		t.Errorf("ParseCoveragePolicy(FILL) = %s, %v", p, err)
	}
	if _, err := ParseCoveragePolicy("extrapolate"); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("ParseCoveragePolicy(extrapolate) error = %v, expected ErrInvalidPolicy", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	defaults := DefaultOptions()
	if err := defaults.Validate(); err != nil {
		t.Fatalf("DefaultOptions().Validate() error = %v", err)
	}
	if defaults.FactorPolicy != FactorCompounded || defaults.CoveragePolicy != CoverageValidate {
		t.Errorf("unexpected default policies %s/%s", defaults.FactorPolicy, defaults.CoveragePolicy)
	}

	fill := DefaultOptions()
	fill.CoveragePolicy = CoverageFill
	fill.FixedHorizonNodes = 0
	if err := fill.Validate(); !errors.Is(err, ErrInvalidHorizon) {
		t.Errorf("expected ErrInvalidHorizon, got %v", err)
	}

	unknown := DefaultOptions()
	unknown.CoveragePolicy = 0
	if err := unknown.Validate(); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}

	negative := DefaultOptions()
	negative.ToleranceMonths = -1
	if err := negative.Validate(); err == nil {
		t.Errorf("expected error for negative tolerance")
	}
}
