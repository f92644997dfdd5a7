package dataset

import (
	"fmt"
)

// New creates a source based on kind and generic configuration map.
// This is the central extension point for adding new source types.
//
// Supported kinds:
//   - "csv": CSV file with header row
//   - "ndjson": newline-delimited JSON file
//
// Common config keys: "path" (required), "machineColumn", "timeColumn".
// CSV additionally reads "timeLayout"; NDJSON reads "timestampFormat".
//
// Returns error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Source, error) {
	switch kind {
	case "csv":
		return newCSV(config)
	case "ndjson":
		return newNDJSON(config)
	default:
		return nil, fmt.Errorf("unknown source kind: %s (must be csv or ndjson)", kind)
	}
}

// newCSV creates a CSV source from generic config.
func newCSV(config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("csv source requires 'path' config")
	}

	return &CSVSource{
		Path:          path,
		MachineColumn: config["machineColumn"],
		TimeColumn:    config["timeColumn"],
		TimeLayout:    config["timeLayout"],
	}, nil
}

// newNDJSON creates an NDJSON source from generic config.
func newNDJSON(config map[string]string) (Source, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("ndjson source requires 'path' config")
	}

	return &NDJSONSource{
		Path:            path,
		MachinePath:     config["machineColumn"],
		TimestampPath:   config["timeColumn"],
		TimestampFormat: config["timestampFormat"],
	}, nil
}
