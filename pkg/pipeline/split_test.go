package pipeline

import (
	"testing"
	"time"

	"github.com/HatiCode/millwright/pkg/dataset"
)

func timedLabeled(times ...time.Time) *Labeled {
	l := &Labeled{
		Table:  &dataset.Table{Columns: []string{"volt"}},
		Labels: make([]int, len(times)),
	}
	for i, ts := range times {
		l.Table.Records = append(l.Table.Records, dataset.Record{
			MachineID: 1,
			Timestamp: ts,
			Fields:    map[string]float64{"volt": float64(i)},
		})
		l.Labels[i] = i % 5
	}
	return l
}

func TestTimeSplit(t *testing.T) {
	cutoffA := time.Date(2015, 9, 30, 0, 0, 0, 0, time.UTC)
	cutoffB := time.Date(2015, 10, 1, 0, 0, 0, 0, time.UTC)

	l := timedLabeled(
		cutoffA.Add(-time.Hour),  // train
		cutoffA,                  // in the gap, dropped
		cutoffA.Add(time.Hour),   // in the gap, dropped
		cutoffB,                  // in the gap, dropped
		cutoffB.Add(time.Hour),   // test
		cutoffB.Add(2*time.Hour), // test
	)

	s, err := TimeSplit(l, cutoffA, cutoffB)
	if err != nil {
		t.Fatalf("TimeSplit() error = %v", err)
	}

	if got, want := s.Train.Len(), 1; got != want {
		t.Errorf("train rows = %d, want %d", got, want)
	}
	if got, want := s.Test.Len(), 2; got != want {
		t.Errorf("test rows = %d, want %d", got, want)
	}
	if len(s.TrainLabels) != s.Train.Len() || len(s.TestLabels) != s.Test.Len() {
		t.Error("label slices out of step with their tables")
	}

	for _, rec := range s.Train.Records {
		if !rec.Timestamp.Before(cutoffA) {
			t.Errorf("train row at %v is not before the train cutoff", rec.Timestamp)
		}
	}
	for _, rec := range s.Test.Records {
		if !rec.Timestamp.After(cutoffB) {
			t.Errorf("test row at %v is not after the test cutoff", rec.Timestamp)
		}
	}
}

func TestTimeSplit_LabelsFollowRows(t *testing.T) {
	cutoff := time.Date(2015, 9, 30, 0, 0, 0, 0, time.UTC)

	l := timedLabeled(
		cutoff.Add(-2*time.Hour),
		cutoff.Add(-time.Hour),
		cutoff.Add(time.Hour),
	)
	l.Labels = []int{4, 2, 1}

	s, err := TimeSplit(l, cutoff, cutoff)
	if err != nil {
		t.Fatalf("TimeSplit() error = %v", err)
	}

	if s.TrainLabels[0] != 4 || s.TrainLabels[1] != 2 {
		t.Errorf("TrainLabels = %v, want [4 2]", s.TrainLabels)
	}
	if s.TestLabels[0] != 1 {
		t.Errorf("TestLabels = %v, want [1]", s.TestLabels)
	}
}

func TestTimeSplit_ReversedCutoffs(t *testing.T) {
	cutoffA := time.Date(2015, 10, 1, 0, 0, 0, 0, time.UTC)
	cutoffB := cutoffA.Add(-24 * time.Hour)

	if _, err := TimeSplit(timedLabeled(cutoffA), cutoffA, cutoffB); err == nil {
		t.Fatal("expected error for reversed cutoffs, got nil")
	}
}
