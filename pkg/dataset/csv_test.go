package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestCSVSource_Load(t *testing.T) {
	path := writeTempFile(t, "telemetry.csv",
		"datetime,machineID,volt,rotate\n"+
			"2015-06-01 06:00:00,1,170.5,449.2\n"+
			"2015-06-01 07:00:00,1,,451.0\n"+
			"2015-06-01 06:00:00,2,168.1,440.8\n")

	src := &CSVSource{Path: path}
	table, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, want := table.Len(), 3; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}

	wantCols := []string{"volt", "rotate"}
	for i, c := range wantCols {
		if table.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, table.Columns[i], c)
		}
	}

	// Sorted by timestamp then machine id.
	if table.Records[0].MachineID != 1 || table.Records[1].MachineID != 2 {
		t.Errorf("unexpected sort order: %d then %d", table.Records[0].MachineID, table.Records[1].MachineID)
	}

	wantTS := time.Date(2015, 6, 1, 6, 0, 0, 0, time.UTC)
	if !table.Records[0].Timestamp.Equal(wantTS) {
		t.Errorf("Timestamp = %v, want %v", table.Records[0].Timestamp, wantTS)
	}

	// Empty cell becomes a null, not a zero.
	last := table.Records[2]
	if _, ok := last.Fields["volt"]; ok {
		t.Error("empty volt cell should be absent")
	}
	if table.NullCount()["volt"] != 1 {
		t.Errorf("volt nulls = %d, want 1", table.NullCount()["volt"])
	}
}

func TestCSVSource_Load_MissingColumn(t *testing.T) {
	path := writeTempFile(t, "bad.csv", "datetime,volt\n2015-06-01 06:00:00,170.5\n")

	src := &CSVSource{Path: path}
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected error for missing machine id column, got nil")
	}
}

func TestCSVSource_Load_EmptyPath(t *testing.T) {
	src := &CSVSource{}
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected error for empty path, got nil")
	}
}

func TestNDJSONSource_Load(t *testing.T) {
	path := writeTempFile(t, "features.ndjson",
		`{"machineID":1,"datetime":"2015-06-01T06:00:00Z","age":12,"diff_1":4.5}`+"\n"+
			`{"machineID":2,"datetime":"2015-06-01T06:00:00Z","age":7,"diff_1":0.5}`+"\n")

	src := &NDJSONSource{Path: path}
	table, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got, want := table.Len(), 2; got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
	if table.Records[0].Fields["age"] != 12 || table.Records[0].Fields["diff_1"] != 4.5 {
		t.Errorf("Fields = %v", table.Records[0].Fields)
	}
}

func TestNDJSONSource_Load_UnixTimestamps(t *testing.T) {
	path := writeTempFile(t, "features.ndjson",
		`{"machineID":1,"datetime":1433138400,"age":12}`+"\n")

	src := &NDJSONSource{Path: path, TimestampFormat: "unix"}
	table, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := time.Unix(1433138400, 0).UTC()
	if !table.Records[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", table.Records[0].Timestamp, want)
	}
}

func TestNDJSONSource_Load_InvalidJSON(t *testing.T) {
	path := writeTempFile(t, "broken.ndjson", "{not json}\n")

	src := &NDJSONSource{Path: path}
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestFactory_New(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		config   map[string]string
		wantName string
		wantErr  bool
	}{
		{
			name:     "csv source",
			kind:     "csv",
			config:   map[string]string{"path": "telemetry.csv"},
			wantName: "csv",
		},
		{
			name:     "ndjson source",
			kind:     "ndjson",
			config:   map[string]string{"path": "features.ndjson"},
			wantName: "ndjson",
		},
		{
			name:    "csv without path",
			kind:    "csv",
			config:  map[string]string{},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			kind:    "parquet",
			config:  map[string]string{"path": "x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(tt.kind, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if src.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.wantName)
			}
		})
	}
}
