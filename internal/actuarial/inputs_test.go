package actuarial

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTable(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadInputs(t *testing.T) {
	dir := t.TempDir()
	paths := InputPaths{
		CurveObservations: writeTable(t, dir, "curves.csv",
			"cohort_date,country,currency,node,annual_effective_rate\n2024-01-01,CO,COP,1,0.12\n2024-01-01,CO,COP,2,0.12\n"),
		CurveRequirements: writeTable(t, dir, "requirements.csv",
			"country,currency,applies_flag,max_validity_months\nCO,COP,true,0\n"),
		InflationObservations: writeTable(t, dir, "inflation.csv",
			"date,monthly_rate\n2024-01-01,0.01\n"),
	}

	in, err := ReadInputs(paths)
	if err != nil {
		t.Fatalf("ReadInputs() error = %v", err)
	}
	if len(in.CurveObservations) != 2 || len(in.CurveRequirements) != 1 || len(in.InflationObservations) != 1 {
		t.Errorf("unexpected table sizes %d/%d/%d",
			len(in.CurveObservations), len(in.CurveRequirements), len(in.InflationObservations))
	}
}

func TestReadInputsOptionalTables(t *testing.T) {
	dir := t.TempDir()
	in, err := ReadInputs(InputPaths{
		CurveObservations: writeTable(t, dir, "curves.csv",
			"cohort_date,country,currency,node,annual_effective_rate\n2024-01-01,CO,COP,1,0.12\n"),
	})
	if err != nil {
		t.Fatalf("ReadInputs() error = %v", err)
	}
	if in.CurveRequirements != nil || in.InflationObservations != nil {
		t.Errorf("expected empty optional tables")
	}
}

func TestReadInputsErrors(t *testing.T) {
	dir := t.TempDir()
	bad := writeTable(t, dir, "bad.csv", "cohort_date,country\n")

	tests := []struct {
		name  string
		paths InputPaths
		want  string
	}{
		{name: "no curve file", paths: InputPaths{}, want: "no curve observations"},
		{name: "missing file", paths: InputPaths{CurveObservations: filepath.Join(dir, "missing.csv")}, want: "failed to open"},
		{name: "bad header", paths: InputPaths{CurveObservations: bad}, want: "bad.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadInputs(tt.paths)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
