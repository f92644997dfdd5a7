package pipeline

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/millwright/pkg/dataset"
)

func sensorTable(t *testing.T, n int, seed int64) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	table := &dataset.Table{
		Columns: []string{"volt", "rotate", "pressure", "vibration", "diff_1", "age"},
	}
	base := time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		table.Records = append(table.Records, dataset.Record{
			MachineID: 1 + i%5,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Fields: map[string]float64{
				"volt":      170 + rng.NormFloat64()*15,
				"rotate":    450 + rng.NormFloat64()*50,
				"pressure":  100 + rng.NormFloat64()*10,
				"vibration": 40 + rng.NormFloat64()*5,
				"diff_1":    float64(i % 24),
				"age":       float64(5 + i%15),
			},
		})
	}
	return table
}

func testPipeline() *Pipeline {
	return NewPipeline(Config{
		SensorColumns: []string{"volt", "rotate", "pressure", "vibration"},
		TimeColumns:   []string{"diff_1"},
		AgeColumn:     "age",
		Clusters:      3,
		Seed:          42,
	})
}

func TestPipeline_FitTransform(t *testing.T) {
	p := testPipeline()
	train := sensorTable(t, 60, 1)

	if err := p.Fit(context.Background(), train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	X, err := p.Transform(context.Background(), train)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	rows, cols := X.Dims()
	if rows != train.Len() {
		t.Errorf("rows = %d, want %d", rows, train.Len())
	}
	if cols != p.FeatureDim() {
		t.Errorf("cols = %d, want %d", cols, p.FeatureDim())
	}

	for i := 0; i < rows; i++ {
		// diff_1 is min-max scaled into [0, 1].
		if v := X.At(i, 0); v < 0 || v > 1 {
			t.Errorf("row %d: scaled time feature %v outside [0, 1]", i, v)
		}
		// Exactly one cluster bit is set per row.
		set := 0
		for c := 0; c < 3; c++ {
			if X.At(i, 2+c) == 1 {
				set++
			}
		}
		if set != 1 {
			t.Errorf("row %d: %d cluster bits set, want 1", i, set)
		}
	}
}

func TestPipeline_TransformIdempotent(t *testing.T) {
	p := testPipeline()
	train := sensorTable(t, 60, 1)

	if err := p.Fit(context.Background(), train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	a, err := p.Transform(context.Background(), train)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	b, err := p.Transform(context.Background(), train)
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	if !mat.Equal(a, b) {
		t.Error("repeated Transform of the same rows produced different matrices")
	}
}

func TestPipeline_TransformDoesNotRefit(t *testing.T) {
	p := testPipeline()
	train := sensorTable(t, 60, 1)
	test := sensorTable(t, 40, 2)

	if err := p.Fit(context.Background(), train); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	before, err := p.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}

	if _, err := p.Transform(context.Background(), test); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	after, err := p.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}

	if !mat.Equal(before.Rotation, after.Rotation) {
		t.Error("rotation changed after transforming unseen rows")
	}
	for j := range before.Scale {
		if before.Scale[j] != after.Scale[j] {
			t.Errorf("scale[%d] changed after transforming unseen rows", j)
		}
	}
	for c := range before.Centroids {
		for j := range before.Centroids[c] {
			if before.Centroids[c][j] != after.Centroids[c][j] {
				t.Errorf("centroid %d changed after transforming unseen rows", c)
			}
		}
	}
	for j := range before.TimeMin {
		if before.TimeMin[j] != after.TimeMin[j] || before.TimeMax[j] != after.TimeMax[j] {
			t.Errorf("min-max bounds for time column %d changed after transforming unseen rows", j)
		}
	}
}

func TestPipeline_TransformBeforeFit(t *testing.T) {
	p := testPipeline()
	if _, err := p.Transform(context.Background(), sensorTable(t, 10, 1)); err == nil {
		t.Fatal("expected error for Transform before Fit, got nil")
	}
}

func TestPipeline_FitTooFewRows(t *testing.T) {
	p := testPipeline()
	if err := p.Fit(context.Background(), sensorTable(t, 3, 1)); err == nil {
		t.Fatal("expected error for too few training rows, got nil")
	}
}

func TestPipeline_FeatureNames(t *testing.T) {
	p := testPipeline()
	want := []string{"diff_1", "age", "cluster_0", "cluster_1", "cluster_2"}
	got := p.FeatureNames()
	if len(got) != len(want) {
		t.Fatalf("FeatureNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FeatureNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
