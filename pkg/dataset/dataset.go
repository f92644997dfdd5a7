// Package dataset provides Millwright data source connectors that read
// tabular machine data from path-addressed storage and normalize it into
// a common Table structure.
//
// Each source implements the Source interface and can be plugged into the
// training pipeline. Available sources include:
//   - CSVSource: reads comma-separated files with a header row
//   - NDJSONSource: reads newline-delimited JSON using gjson path extraction
//
// Sources are intentionally lightweight. They focus on reading raw rows,
// shaping them into [Table] objects, and leaving all joining, labeling and
// feature building to the pipeline's upper layers.
package dataset

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"
)

// Record is a single observation keyed by machine and timestamp.
// Fields holds the named numeric columns of the row; a column that was
// missing or unparsable in the source is simply absent from the map.
type Record struct {
	MachineID int
	Timestamp time.Time
	Fields    map[string]float64
}

// Table is a lightweight structure for tabular data returned by sources.
// Columns lists the field names in a stable order; Records holds the rows.
type Table struct {
	Columns []string
	Records []Record
}

// Source is the interface that all Millwright data sources must implement.
//
// Sources are responsible for reading raw tabular data from a storage
// location (CSV file, NDJSON file, ...), shaping it into a Table, and
// returning it for joining and feature building.
//
// The Load() call is synchronous and should respect context cancellation.
type Source interface {
	// Load reads the full dataset and returns it as a Table.
	// It must return an error rather than a partially parsed table.
	Load(ctx context.Context) (*Table, error)

	// Name returns a short, unique identifier for the source.
	// Example: "csv", "ndjson".
	Name() string
}

type joinKey struct {
	machine int
	unix    int64
}

func (r Record) key() joinKey {
	return joinKey{machine: r.MachineID, unix: r.Timestamp.Unix()}
}

// Len returns the number of records in the table.
func (t *Table) Len() int {
	return len(t.Records)
}

// Select returns a new table containing only the named field columns.
// Machine id and timestamp are always carried. Requested columns that a
// record does not have are left absent (they show up in NullCount).
func (t *Table) Select(columns ...string) *Table {
	keep := make(map[string]bool, len(columns))
	for _, c := range columns {
		keep[c] = true
	}

	out := &Table{
		Columns: append([]string(nil), columns...),
		Records: make([]Record, 0, len(t.Records)),
	}

	for _, rec := range t.Records {
		fields := make(map[string]float64, len(columns))
		for name, v := range rec.Fields {
			if keep[name] {
				fields[name] = v
			}
		}
		out.Records = append(out.Records, Record{
			MachineID: rec.MachineID,
			Timestamp: rec.Timestamp,
			Fields:    fields,
		})
	}

	return out
}

// InnerJoin joins two tables on (machine id, timestamp). Rows without a
// match in both tables are dropped; no outer-join fallback exists. When the
// right table has duplicate keys the first occurrence wins. Field names
// present in both sides keep the left table's value.
//
// The output preserves the left table's row order, so repeated joins over
// the same inputs are deterministic.
func (t *Table) InnerJoin(other *Table) *Table {
	right := make(map[joinKey]Record, len(other.Records))
	for _, rec := range other.Records {
		k := rec.key()
		if _, seen := right[k]; !seen {
			right[k] = rec
		}
	}

	columns := append([]string(nil), t.Columns...)
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, c := range other.Columns {
		if !have[c] {
			columns = append(columns, c)
			have[c] = true
		}
	}

	out := &Table{Columns: columns}
	for _, rec := range t.Records {
		match, ok := right[rec.key()]
		if !ok {
			continue
		}

		fields := make(map[string]float64, len(rec.Fields)+len(match.Fields))
		for name, v := range match.Fields {
			fields[name] = v
		}
		for name, v := range rec.Fields {
			fields[name] = v
		}

		out.Records = append(out.Records, Record{
			MachineID: rec.MachineID,
			Timestamp: rec.Timestamp,
			Fields:    fields,
		})
	}

	return out
}

// NullCount reports, per column, how many records are missing the field or
// carry a NaN value. Data-quality issues are measured here, never repaired.
func (t *Table) NullCount() map[string]int {
	counts := make(map[string]int, len(t.Columns))
	for _, c := range t.Columns {
		counts[c] = 0
	}

	for _, rec := range t.Records {
		for _, c := range t.Columns {
			v, ok := rec.Fields[c]
			if !ok || math.IsNaN(v) {
				counts[c]++
			}
		}
	}

	return counts
}

// SortByTime orders records by timestamp, then machine id. Sources that
// read unordered rows call this so downstream previews and splits are stable.
func (t *Table) SortByTime() {
	sort.SliceStable(t.Records, func(i, j int) bool {
		a, b := t.Records[i], t.Records[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.MachineID < b.MachineID
	})
}

// Preview returns up to n rows rendered as strings, header first.
// Used for the interactive run report.
func (t *Table) Preview(n int) [][]string {
	if n > len(t.Records) {
		n = len(t.Records)
	}

	header := append([]string{"machineID", "datetime"}, t.Columns...)
	out := make([][]string, 0, n+1)
	out = append(out, header)

	for _, rec := range t.Records[:n] {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(rec.MachineID), rec.Timestamp.UTC().Format(time.RFC3339))
		for _, c := range t.Columns {
			if v, ok := rec.Fields[c]; ok {
				row = append(row, strconv.FormatFloat(v, 'g', 6, 64))
			} else {
				row = append(row, "null")
			}
		}
		out = append(out, row)
	}

	return out
}
