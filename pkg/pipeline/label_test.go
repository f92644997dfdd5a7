package pipeline

import (
	"testing"
	"time"

	"github.com/HatiCode/millwright/pkg/dataset"
)

var indicatorCols = []string{"y_0", "y_1", "y_2", "y_3"}

func labeledTable(rows ...map[string]float64) *dataset.Table {
	t := &dataset.Table{
		Columns: []string{"volt", "y_0", "y_1", "y_2", "y_3"},
	}
	base := time.Date(2015, 6, 1, 6, 0, 0, 0, time.UTC)
	for i, fields := range rows {
		t.Records = append(t.Records, dataset.Record{
			MachineID: 1,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Fields:    fields,
		})
	}
	return t
}

func TestDeriveLabels(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]float64
		want int
	}{
		{"no indicator", map[string]float64{"volt": 170}, 0},
		{"all zero", map[string]float64{"y_0": 0, "y_1": 0, "y_2": 0, "y_3": 0}, 0},
		{"first", map[string]float64{"y_0": 1}, 1},
		{"second", map[string]float64{"y_1": 1}, 2},
		{"third", map[string]float64{"y_2": 1}, 3},
		{"fourth", map[string]float64{"y_3": 1}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := DeriveLabels(labeledTable(tt.row), indicatorCols)
			if err != nil {
				t.Fatalf("DeriveLabels() error = %v", err)
			}
			if l.Labels[0] != tt.want {
				t.Errorf("label = %d, want %d", l.Labels[0], tt.want)
			}
		})
	}
}

func TestDeriveLabels_MultipleIndicators(t *testing.T) {
	l, err := DeriveLabels(labeledTable(
		map[string]float64{"y_0": 1, "y_2": 1},
		map[string]float64{"y_1": 1},
	), indicatorCols)
	if err != nil {
		t.Fatalf("DeriveLabels() error = %v", err)
	}

	// Highest-indexed indicator wins.
	if l.Labels[0] != 3 {
		t.Errorf("label = %d, want 3", l.Labels[0])
	}
	if l.MultiIndicatorRows != 1 {
		t.Errorf("MultiIndicatorRows = %d, want 1", l.MultiIndicatorRows)
	}
}

func TestDeriveLabels_DropsIndicatorColumns(t *testing.T) {
	l, err := DeriveLabels(labeledTable(map[string]float64{"volt": 170, "y_0": 1}), indicatorCols)
	if err != nil {
		t.Fatalf("DeriveLabels() error = %v", err)
	}

	if len(l.Table.Columns) != 1 || l.Table.Columns[0] != "volt" {
		t.Errorf("Columns = %v, want [volt]", l.Table.Columns)
	}
}

func TestDeriveLabels_NoIndicators(t *testing.T) {
	if _, err := DeriveLabels(labeledTable(), nil); err == nil {
		t.Fatal("expected error for empty indicator list, got nil")
	}
}
