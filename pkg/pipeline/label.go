// Package pipeline implements the feature-engineering stages of the
// Millwright training run: failure-label derivation, temporal train/test
// splitting, and a fit/transform feature pipeline with frozen parameters.
package pipeline

import (
	"fmt"

	"github.com/HatiCode/millwright/pkg/dataset"
)

// Labeled pairs a table with its derived integer labels, one per record.
type Labeled struct {
	Table  *dataset.Table
	Labels []int

	// MultiIndicatorRows counts rows where more than one failure indicator
	// was set. The pipeline does not reject them; they are surfaced in the
	// run report so upstream data problems stay visible.
	MultiIndicatorRows int
}

// DeriveLabels replaces the binary failure indicator columns with a single
// integer label: 0 means no failure, i+1 means indicator i was set.
//
// Indicators are scanned in the given order and the last set indicator wins,
// so a row with several indicators set gets the highest-indexed component.
// This tie-break is deterministic and matches the upstream data preparation;
// such rows are counted in MultiIndicatorRows rather than rejected.
//
// The returned table shares records with the input but drops the indicator
// columns from its column list.
func DeriveLabels(t *dataset.Table, indicators []string) (*Labeled, error) {
	if len(indicators) == 0 {
		return nil, fmt.Errorf("at least one indicator column required")
	}

	drop := make(map[string]bool, len(indicators))
	for _, c := range indicators {
		drop[c] = true
	}

	columns := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !drop[c] {
			columns = append(columns, c)
		}
	}

	out := &Labeled{
		Table: &dataset.Table{
			Columns: columns,
			Records: t.Records,
		},
		Labels: make([]int, len(t.Records)),
	}

	for i, rec := range t.Records {
		label := 0
		set := 0
		for idx, col := range indicators {
			if rec.Fields[col] >= 0.5 {
				label = idx + 1
				set++
			}
		}
		if set > 1 {
			out.MultiIndicatorRows++
		}
		out.Labels[i] = label
	}

	return out, nil
}
