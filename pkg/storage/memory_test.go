package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HatiCode/millwright/pkg/eval"
)

func testReport(dataset string) Report {
	return Report{
		Dataset:     dataset,
		GeneratedAt: time.Now(),
		Model:       "logreg",
		JoinedRows:  1000,
		TrainRows:   700,
		TestRows:    250,
		LabelCounts: map[string]int{"0": 900, "1": 40, "2": 30, "3": 20, "4": 10},
		Evaluation: eval.Summary{
			WeightedPrecision: 0.91,
			WeightedRecall:    0.88,
			Accuracy:          0.93,
			Support:           250,
		},
	}
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if store.Len() != 0 {
		t.Errorf("New store should be empty, got %d reports", store.Len())
	}
}

func TestMemoryStore_Put_Get(t *testing.T) {
	tests := []struct {
		name    string
		report  Report
		wantErr bool
	}{
		{
			name:    "valid report",
			report:  testReport("machines"),
			wantErr: false,
		},
		{
			name: "empty dataset",
			report: Report{
				Model:       "forest",
				GeneratedAt: time.Now(),
			},
			wantErr: true,
		},
		{
			name:    "minimal valid report",
			report:  Report{Dataset: "minimal"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()

			err := store.Put(context.Background(), tt.report)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				return
			}

			got, found, err := store.GetLatest(context.Background(), tt.report.Dataset)
			if err != nil {
				t.Errorf("GetLatest() unexpected error = %v", err)
				return
			}

			if !found {
				t.Errorf("GetLatest() found = false, want true")
				return
			}

			if got.Dataset != tt.report.Dataset {
				t.Errorf("Dataset = %q, want %q", got.Dataset, tt.report.Dataset)
			}
			if got.Model != tt.report.Model {
				t.Errorf("Model = %q, want %q", got.Model, tt.report.Model)
			}
			if got.TrainRows != tt.report.TrainRows {
				t.Errorf("TrainRows = %d, want %d", got.TrainRows, tt.report.TrainRows)
			}
			if got.Evaluation.WeightedRecall != tt.report.Evaluation.WeightedRecall {
				t.Errorf("WeightedRecall = %v, want %v", got.Evaluation.WeightedRecall, tt.report.Evaluation.WeightedRecall)
			}
		})
	}
}

func TestMemoryStore_GetLatest_NotFound(t *testing.T) {
	store := NewMemoryStore()

	report, found, err := store.GetLatest(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("GetLatest() unexpected error = %v", err)
	}
	if found {
		t.Error("GetLatest() found = true for nonexistent dataset, want false")
	}
	if report.Dataset != "" {
		t.Errorf("GetLatest() returned non-zero report for nonexistent dataset")
	}
}

func TestMemoryStore_Put_Update(t *testing.T) {
	store := NewMemoryStore()
	dataset := "update-test"

	first := testReport(dataset)
	first.TestRows = 100
	if err := store.Put(context.Background(), first); err != nil {
		t.Fatalf("Put() first report error = %v", err)
	}

	second := testReport(dataset)
	second.TestRows = 300
	second.GeneratedAt = time.Now().Add(time.Minute)
	if err := store.Put(context.Background(), second); err != nil {
		t.Fatalf("Put() second report error = %v", err)
	}

	got, found, err := store.GetLatest(context.Background(), dataset)
	if err != nil {
		t.Fatalf("GetLatest() error = %v", err)
	}
	if !found {
		t.Fatal("GetLatest() found = false, want true")
	}

	if got.TestRows != 300 {
		t.Errorf("GetLatest() returned old report, want updated one")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d after update, want 1", store.Len())
	}
}

func TestMemoryStore_MultipleDatasets(t *testing.T) {
	store := NewMemoryStore()

	datasets := []string{"site-1", "site-2", "site-3"}
	for _, dataset := range datasets {
		if err := store.Put(context.Background(), testReport(dataset)); err != nil {
			t.Fatalf("Put(%s) error = %v", dataset, err)
		}
	}

	if store.Len() != len(datasets) {
		t.Errorf("Len() = %d, want %d", store.Len(), len(datasets))
	}

	for _, dataset := range datasets {
		got, found, err := store.GetLatest(context.Background(), dataset)
		if err != nil {
			t.Errorf("GetLatest(%s) error = %v", dataset, err)
		}
		if !found {
			t.Errorf("GetLatest(%s) found = false, want true", dataset)
		}
		if got.Dataset != dataset {
			t.Errorf("GetLatest(%s) returned dataset %q", dataset, got.Dataset)
		}
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	dataset := "concurrent-test"

	numGoroutines := 100
	numOperations := 100

	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				report := testReport(dataset)
				report.TrainRows = id
				report.TestRows = j
				if err := store.Put(context.Background(), report); err != nil {
					t.Errorf("Concurrent Put() error = %v", err)
				}
			}
		}(i)
	}

	wg.Add(numGoroutines)
	for g := 0; g < numGoroutines; g++ {
		go func() {
			defer wg.Done()
			for op := 0; op < numOperations; op++ {
				_, _, err := store.GetLatest(context.Background(), dataset)
				if err != nil {
					t.Errorf("Concurrent GetLatest() error = %v", err)
				}
			}
		}()
	}

	wg.Wait()

	report, found, err := store.GetLatest(context.Background(), dataset)
	if err != nil {
		t.Errorf("Final GetLatest() error = %v", err)
	}
	if !found {
		t.Error("Final GetLatest() found = false after concurrent operations")
	}
	if report.Dataset != dataset {
		t.Errorf("Final report has dataset %q, want %q", report.Dataset, dataset)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d after concurrent operations, want 1", store.Len())
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put(context.Background(), testReport("delete-test")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	deleted := store.Delete("delete-test")
	if !deleted {
		t.Error("Delete() returned false, want true for existing dataset")
	}

	_, found, _ := store.GetLatest(context.Background(), "delete-test")
	if found {
		t.Error("GetLatest() found = true after delete, want false")
	}

	if store.Len() != 0 {
		t.Errorf("Len() = %d after delete, want 0", store.Len())
	}

	deleted = store.Delete("nonexistent")
	if deleted {
		t.Error("Delete() returned true for nonexistent dataset, want false")
	}
}

func TestMemoryStoreWithTTL_Expiration(t *testing.T) {
	ttl := 100 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	if err := store.Put(context.Background(), testReport("ttl-test")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	_, found, _ := store.GetLatest(context.Background(), "ttl-test")
	if !found {
		t.Fatal("Report should exist immediately after Put")
	}

	time.Sleep(ttl + cleanupInterval + 50*time.Millisecond)

	_, found, _ = store.GetLatest(context.Background(), "ttl-test")
	if found {
		t.Error("Report should be removed after TTL expiration")
	}

	if store.Len() != 0 {
		t.Errorf("Store should be empty after cleanup, got %d reports", store.Len())
	}
}

func TestMemoryStoreWithTTL_MultipleReports(t *testing.T) {
	ttl := 200 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	old := testReport("old")
	old.GeneratedAt = time.Now().Add(-300 * time.Millisecond) // Already expired
	if err := store.Put(context.Background(), old); err != nil {
		t.Fatalf("Put(old) error = %v", err)
	}

	fresh := testReport("fresh")
	if err := store.Put(context.Background(), fresh); err != nil {
		t.Fatalf("Put(fresh) error = %v", err)
	}

	time.Sleep(cleanupInterval + 50*time.Millisecond)

	_, found, _ := store.GetLatest(context.Background(), "old")
	if found {
		t.Error("Old report should be removed")
	}

	_, found, _ = store.GetLatest(context.Background(), "fresh")
	if !found {
		t.Error("Fresh report should still exist")
	}

	if store.Len() != 1 {
		t.Errorf("Store should have 1 report, got %d", store.Len())
	}
}

func TestMemoryStoreWithTTL_Stop(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Second)

	if err := store.Put(context.Background(), testReport("stop-test")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		store.Stop()
		close(done)
	}()

	select {
	case <-done:
		// Stop completed
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete within timeout")
	}

	// Calling Stop again should be safe
	store.Stop()
}

func TestMemoryStore_StopWithoutTTL(t *testing.T) {
	store := NewMemoryStore()

	store.Stop()

	if err := store.Put(context.Background(), testReport("after-stop")); err != nil {
		t.Errorf("Put() after Stop() error = %v", err)
	}
}

func TestMemoryStoreWithTTL_PanicOnInvalidTTL(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewMemoryStoreWithTTL should panic with zero TTL")
		}
	}()

	NewMemoryStoreWithTTL(0, time.Second)
}

func TestMemoryStoreWithTTL_ConcurrentWithCleanup(t *testing.T) {
	ttl := 200 * time.Millisecond
	cleanupInterval := 30 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	var wg sync.WaitGroup
	numGoroutines := 50

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			dataset := fmt.Sprintf("dataset-%d", id)

			for k := 0; k < 20; k++ {
				if err := store.Put(context.Background(), testReport(dataset)); err != nil {
					t.Errorf("Put(%s) error = %v", dataset, err)
				}

				if _, _, err := store.GetLatest(context.Background(), dataset); err != nil {
					t.Errorf("GetLatest(%s) error = %v", dataset, err)
				}

				time.Sleep(10 * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()

	if store.Len() != numGoroutines {
		t.Logf("Warning: Expected %d reports, got %d (some may have expired during test)", numGoroutines, store.Len())
	}
}

func BenchmarkMemoryStore_ConcurrentAccess(b *testing.B) {
	store := NewMemoryStore()
	datasets := []string{"site-1", "site-2", "site-3"}

	for _, d := range datasets {
		if err := store.Put(context.Background(), testReport(d)); err != nil {
			b.Fatalf("Put() error = %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			dataset := datasets[i%len(datasets)]
			if i%2 == 0 {
				report := testReport(dataset)
				report.TrainRows = i
				if err := store.Put(context.Background(), report); err != nil {
					_ = err
				}
			} else {
				if _, _, err := store.GetLatest(context.Background(), dataset); err != nil {
					_ = err
				}
			}
			i++
		}
	})
}
