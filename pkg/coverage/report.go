// Package coverage parses JaCoCo-style CSV coverage reports and computes
// instruction coverage for a single unit.
package coverage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column names consumed from the report header.
const (
	ColumnUnit                = "CLASS"
	ColumnInstructionsMissed  = "INSTRUCTION_MISSED"
	ColumnInstructionsCovered = "INSTRUCTION_COVERED"
)

// Record is one row of a coverage report.
type Record struct {
	UnitID              string
	InstructionsMissed  int
	InstructionsCovered int
}

// ReportParseError reports a coverage report that cannot be read as tabular data.
type ReportParseError struct {
	Path   string // empty when parsing from a reader
	Line   int    // 0 when the failure is not tied to a row
	Column string
	Err    error
}

func (e *ReportParseError) Error() string {
	var b strings.Builder
	b.WriteString("coverage report")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %s", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ReportParseError) Unwrap() error {
	return e.Err
}

// ParseReport reads a CSV report with a header row. Columns other than
// CLASS, INSTRUCTION_MISSED and INSTRUCTION_COVERED are ignored.
func ParseReport(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ReportParseError{Err: errors.New("report is empty")}
		}
		return nil, &ReportParseError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range []string{ColumnUnit, ColumnInstructionsMissed, ColumnInstructionsCovered} {
		if _, ok := index[col]; !ok {
			return nil, &ReportParseError{Line: 1, Column: col, Err: errors.New("required column missing")}
		}
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ReportParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, &ReportParseError{Err: err}
		}
		line, _ := reader.FieldPos(0)
		if isBlank(row) {
			continue
		}

		rec := Record{UnitID: strings.TrimSpace(field(row, index[ColumnUnit]))}
		if rec.InstructionsMissed, err = parseCount(field(row, index[ColumnInstructionsMissed])); err != nil {
			return nil, &ReportParseError{Line: line, Column: ColumnInstructionsMissed, Err: err}
		}
		if rec.InstructionsCovered, err = parseCount(field(row, index[ColumnInstructionsCovered])); err != nil {
			return nil, &ReportParseError{Line: line, Column: ColumnInstructionsCovered, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadReport opens and parses the report at path.
func LoadReport(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReportParseError{Path: path, Err: err}
	}
	defer f.Close()

	records, err := ParseReport(f)
	if err != nil {
		var perr *ReportParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return records, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseCount parses a non-negative instruction count. Blank cells count as 0.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
