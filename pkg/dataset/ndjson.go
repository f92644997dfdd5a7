package dataset

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// NDJSONSource reads newline-delimited JSON and extracts fields using gjson
// path expressions.
//
// Each line must be a JSON object. The machine id and timestamp are pulled
// from configurable paths; every other top-level numeric member becomes a
// field column. Nested exports can address their keys with dotted paths via
// MachinePath/TimestampPath while still keeping flat numeric members.
//
// Example line:
//
//	{"machineID": 12, "datetime": "2015-06-01T06:00:00Z", "volt": 171.2, "rotate": 449.5}
type NDJSONSource struct {
	// Path is the file to read (required).
	Path string

	// MachinePath is the gjson path of the machine id. Defaults to "machineID".
	MachinePath string

	// TimestampPath is the gjson path of the timestamp. Defaults to "datetime".
	TimestampPath string

	// TimestampFormat specifies how to parse timestamps:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "unix"       - Unix seconds (float or int)
	//   "unix_milli" - Unix milliseconds (float or int)
	TimestampFormat string
}

func (s *NDJSONSource) Name() string { return "ndjson" }

// Load implements Source. Lines that are blank are skipped; lines that are
// not valid JSON objects are an error.
func (s *NDJSONSource) Load(ctx context.Context) (*Table, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("ndjson source: path is required")
	}

	machinePath := s.MachinePath
	if machinePath == "" {
		machinePath = "machineID"
	}
	tsPath := s.TimestampPath
	if tsPath == "" {
		tsPath = "datetime"
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("ndjson source: open %s: %w", s.Path, err)
	}
	defer f.Close()

	table := &Table{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("ndjson source: line %d: invalid JSON", line)
		}
		obj := gjson.ParseBytes(raw)
		if !obj.IsObject() {
			return nil, fmt.Errorf("ndjson source: line %d: not a JSON object", line)
		}

		machine := obj.Get(machinePath)
		if !machine.Exists() {
			return nil, fmt.Errorf("ndjson source: line %d: machine path %q not found", line, machinePath)
		}

		tsResult := obj.Get(tsPath)
		if !tsResult.Exists() {
			return nil, fmt.Errorf("ndjson source: line %d: timestamp path %q not found", line, tsPath)
		}
		ts, err := s.parseTimestamp(tsResult)
		if err != nil {
			return nil, fmt.Errorf("ndjson source: line %d: %w", line, err)
		}

		fields := make(map[string]float64)
		obj.ForEach(func(key, value gjson.Result) bool {
			name := key.String()
			if name == machinePath || name == tsPath {
				return true
			}
			if value.Type != gjson.Number {
				return true
			}
			fields[name] = value.Float()
			if !seen[name] {
				seen[name] = true
				table.Columns = append(table.Columns, name)
			}
			return true
		})

		table.Records = append(table.Records, Record{
			MachineID: int(machine.Int()),
			Timestamp: ts,
			Fields:    fields,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ndjson source: scan %s: %w", s.Path, err)
	}

	table.SortByTime()
	return table, nil
}

// parseTimestamp parses a timestamp according to the configured format.
func (s *NDJSONSource) parseTimestamp(value gjson.Result) (time.Time, error) {
	format := s.TimestampFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		return time.Parse(time.RFC3339, value.String())

	case "unix":
		sec := value.Float()
		return time.Unix(int64(sec), 0).UTC(), nil

	case "unix_milli":
		ms := value.Float()
		return time.UnixMilli(int64(ms)).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}
