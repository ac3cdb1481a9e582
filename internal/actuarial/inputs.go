package actuarial

import (
	"fmt"
	"io"
	"os"

	"github.com/iwvelando/curve-factors/pkg/tables"
)

// InputPaths locates the three input tables on disk. Requirements and
// inflation may be empty, in which case the table is treated as empty.
type InputPaths struct {
	CurveObservations     string
	CurveRequirements     string
	InflationObservations string
}

// ReadInputs loads the input tables from CSV files.
func ReadInputs(paths InputPaths) (Inputs, error) {
	var in Inputs
	if paths.CurveObservations == "" {
		return in, fmt.Errorf("no curve observations file given")
	}

	err := readFile(paths.CurveObservations, func(r io.Reader) (err error) {
		in.CurveObservations, err = tables.ReadCurveObservations(r)
		return err
	})
	if err != nil {
		return in, err
	}

	if paths.CurveRequirements != "" {
		err = readFile(paths.CurveRequirements, func(r io.Reader) (err error) {
			in.CurveRequirements, err = tables.ReadCurveRequirements(r)
			return err
		})
		if err != nil {
			return in, err
		}
	}

	if paths.InflationObservations != "" {
		err = readFile(paths.InflationObservations, func(r io.Reader) (err error) {
			in.InflationObservations, err = tables.ReadInflationObservations(r)
			return err
		})
		if err != nil {
			return in, err
		}
	}

	return in, nil
}

func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := read(f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
