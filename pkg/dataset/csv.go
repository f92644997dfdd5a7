package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVSource reads a comma-separated file with a header row.
//
// The machine id column is parsed as an integer, the timestamp column with
// the configured layout, and every remaining column as float64. Cells that
// are empty or unparsable become absent fields (nulls) rather than errors,
// matching how upstream exports represent missing sensor readings.
type CSVSource struct {
	// Path is the file to read (required).
	Path string

	// MachineColumn is the header name of the machine id column.
	// Defaults to "machineID".
	MachineColumn string

	// TimeColumn is the header name of the timestamp column.
	// Defaults to "datetime".
	TimeColumn string

	// TimeLayout is the Go time layout for the timestamp column, or the
	// keyword "rfc3339". Defaults to "2006-01-02 15:04:05".
	TimeLayout string
}

func (s *CSVSource) Name() string { return "csv" }

// Load implements Source. It reads the whole file into a Table, sorted by
// timestamp then machine id.
func (s *CSVSource) Load(ctx context.Context) (*Table, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("csv source: path is required")
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("csv source: open %s: %w", s.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv source: read header: %w", err)
	}

	machineCol := s.MachineColumn
	if machineCol == "" {
		machineCol = "machineID"
	}
	timeCol := s.TimeColumn
	if timeCol == "" {
		timeCol = "datetime"
	}

	machineIdx, timeIdx := -1, -1
	fieldIdx := make(map[int]string, len(header))
	columns := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch name {
		case machineCol:
			machineIdx = i
		case timeCol:
			timeIdx = i
		default:
			fieldIdx[i] = name
			columns = append(columns, name)
		}
	}
	if machineIdx < 0 {
		return nil, fmt.Errorf("csv source: column %q not found in %s", machineCol, s.Path)
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("csv source: column %q not found in %s", timeCol, s.Path)
	}

	table := &Table{Columns: columns}
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv source: read row: %w", err)
		}
		line++

		machine, err := strconv.Atoi(strings.TrimSpace(row[machineIdx]))
		if err != nil {
			return nil, fmt.Errorf("csv source: line %d: machine id %q: %w", line, row[machineIdx], err)
		}

		ts, err := s.parseTime(strings.TrimSpace(row[timeIdx]))
		if err != nil {
			return nil, fmt.Errorf("csv source: line %d: timestamp: %w", line, err)
		}

		fields := make(map[string]float64, len(fieldIdx))
		for i, name := range fieldIdx {
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			fields[name] = v
		}

		table.Records = append(table.Records, Record{
			MachineID: machine,
			Timestamp: ts,
			Fields:    fields,
		})
	}

	table.SortByTime()
	return table, nil
}

func (s *CSVSource) parseTime(value string) (time.Time, error) {
	layout := s.TimeLayout
	switch layout {
	case "", "2006-01-02 15:04:05":
		return time.ParseInLocation("2006-01-02 15:04:05", value, time.UTC)
	case "rfc3339":
		return time.Parse(time.RFC3339, value)
	default:
		return time.ParseInLocation(layout, value, time.UTC)
	}
}
