package coverage

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Percentage is instruction coverage in [0, 100], rounded to two decimals.
type Percentage float64

// String formats the percentage the way it appears in feedback, e.g. "42.5".
func (p Percentage) String() string {
	return strconv.FormatFloat(float64(p), 'f', -1, 64)
}

// UnitID returns the unit identifier for a production file: its base name
// without extension.
func UnitID(productionPath string) string {
	base := filepath.Base(productionPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Compute returns the coverage of unitID in records. A unit with no record,
// or with no instructions at all, has 0% coverage.
func Compute(records []Record, unitID string) Percentage {
	var missed, covered int
	for i := range records {
		if records[i].UnitID == unitID {
			missed = records[i].InstructionsMissed
			covered = records[i].InstructionsCovered
			break
		}
	}
	return percentage(missed, covered)
}

func percentage(missed, covered int) Percentage {
	total := missed + covered
	if total <= 0 {
		return 0
	}
	raw := float64(covered) / float64(total) * 100
	return Percentage(math.Round(raw*100) / 100)
}

// Analyzer measures the coverage of one unit from a report file that the
// test command regenerates between measurements.
type Analyzer struct {
	ReportPath string
	UnitID     string
}

// NewAnalyzer creates an analyzer for the unit of productionPath.
func NewAnalyzer(reportPath, productionPath string) *Analyzer {
	return &Analyzer{ReportPath: reportPath, UnitID: UnitID(productionPath)}
}

// Measure reads the report and computes the unit's coverage.
func (a *Analyzer) Measure() (Percentage, error) {
	records, err := LoadReport(a.ReportPath)
	if err != nil {
		return 0, err
	}
	return Compute(records, a.UnitID), nil
}
