package pipeline

import (
	"fmt"
	"time"

	"github.com/HatiCode/millwright/pkg/dataset"
)

// Split holds the temporal train/test partition of a labeled table.
// Rows with timestamps inside [cutoffA, cutoffB] belong to neither set;
// the gap prevents temporal leakage across the boundary.
type Split struct {
	Train       *dataset.Table
	TrainLabels []int
	Test        *dataset.Table
	TestLabels  []int
}

// TimeSplit partitions labeled rows by timestamp: train takes rows strictly
// before cutoffA, test takes rows strictly after cutoffB. cutoffB must not
// precede cutoffA. By construction no row appears in both partitions.
func TimeSplit(l *Labeled, cutoffA, cutoffB time.Time) (*Split, error) {
	if cutoffB.Before(cutoffA) {
		return nil, fmt.Errorf("test cutoff %s precedes train cutoff %s",
			cutoffB.Format(time.RFC3339), cutoffA.Format(time.RFC3339))
	}

	s := &Split{
		Train: &dataset.Table{Columns: l.Table.Columns},
		Test:  &dataset.Table{Columns: l.Table.Columns},
	}

	for i, rec := range l.Table.Records {
		switch {
		case rec.Timestamp.Before(cutoffA):
			s.Train.Records = append(s.Train.Records, rec)
			s.TrainLabels = append(s.TrainLabels, l.Labels[i])
		case rec.Timestamp.After(cutoffB):
			s.Test.Records = append(s.Test.Records, rec)
			s.TestLabels = append(s.TestLabels, l.Labels[i])
		}
	}

	return s, nil
}
