// Package config provides configuration parsing and management for the trainer.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the trainer including:
//   - Input sources (telemetry and feature tables, formats, paths)
//   - Column mapping (machine id, timestamp, sensors, failure indicators)
//   - Feature pipeline parameters (PCA components, clusters, seeds)
//   - Model selection and hyperparameter grids
//   - Temporal split cutoffs
//   - Storage backend settings (memory or Redis)
//   - Logging and TLS configuration
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/millwright/pkg/tls"
)

// Config holds all trainer configuration.
type Config struct {
	Listen        string
	LogFormat     string
	LogLevel      string
	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	TLS           tls.Config

	Dataset string

	TelemetryFormat string
	TelemetryPath   string
	FeaturesFormat  string
	FeaturesPath    string
	MachineColumn   string
	TimeColumn      string
	TimeLayout      string

	Sensors      []string
	Indicators   []string
	TimeFeatures []string
	AgeColumn    string

	TrainCutoff time.Time
	TestCutoff  time.Time

	PCAComponents int
	Clusters      int
	KMeansSeed    int64
	KMeansMaxIter int

	Model        string
	CVFolds      int
	CVSeed       int64
	ForestDepths []int
	ForestTrees  []int
	LogregL2     []float64
	LogregEpochs []int
	LearnRate    float64

	Interval time.Duration

	// raw list and date flags, resolved during Validate
	sensorsRaw      string
	indicatorsRaw   string
	timeFeaturesRaw string
	trainCutoffRaw  string
	testCutoffRaw   string
	forestDepthsRaw string
	forestTreesRaw  string
	logregL2Raw     string
	logregEpochsRaw string
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
// Exits with a message on stderr when validation fails.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis report TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.StringVar(&cfg.Dataset, "dataset", getEnv("DATASET", ""), "Dataset name (required)")

	flag.StringVar(&cfg.TelemetryFormat, "telemetry-format", getEnv("TELEMETRY_FORMAT", "csv"), "Telemetry table format: csv or ndjson")
	flag.StringVar(&cfg.TelemetryPath, "telemetry-path", getEnv("TELEMETRY_PATH", ""), "Telemetry table path (required)")
	flag.StringVar(&cfg.FeaturesFormat, "features-format", getEnv("FEATURES_FORMAT", "csv"), "Feature table format: csv or ndjson")
	flag.StringVar(&cfg.FeaturesPath, "features-path", getEnv("FEATURES_PATH", ""), "Feature table path (required)")
	flag.StringVar(&cfg.MachineColumn, "machine-column", getEnv("MACHINE_COLUMN", "machineID"), "Machine id column name")
	flag.StringVar(&cfg.TimeColumn, "time-column", getEnv("TIME_COLUMN", "datetime"), "Timestamp column name")
	flag.StringVar(&cfg.TimeLayout, "time-layout", getEnv("TIME_LAYOUT", "2006-01-02 15:04:05"), "Timestamp layout (Go reference time or 'rfc3339')")

	flag.StringVar(&cfg.sensorsRaw, "sensors", getEnv("SENSORS", "volt,rotate,pressure,vibration"), "Comma-separated sensor column names")
	flag.StringVar(&cfg.indicatorsRaw, "indicators", getEnv("INDICATORS", "y_0,y_1,y_2,y_3"), "Comma-separated failure indicator column names, in label order")
	flag.StringVar(&cfg.timeFeaturesRaw, "time-features", getEnv("TIME_FEATURES", ""), "Comma-separated time-since-event column names (empty = columns with the diff_ prefix)")
	flag.StringVar(&cfg.AgeColumn, "age-column", getEnv("AGE_COLUMN", "age"), "Machine age column name")

	flag.StringVar(&cfg.trainCutoffRaw, "train-cutoff", getEnv("TRAIN_CUTOFF", "2015-09-30"), "Train rows end strictly before this date (YYYY-MM-DD or RFC3339)")
	flag.StringVar(&cfg.testCutoffRaw, "test-cutoff", getEnv("TEST_CUTOFF", "2015-10-01"), "Test rows start strictly after this date (YYYY-MM-DD or RFC3339)")

	flag.IntVar(&cfg.PCAComponents, "pca-components", getEnvInt("PCA_COMPONENTS", 0), "PCA output dimensionality (0 = sensor count)")
	flag.IntVar(&cfg.Clusters, "clusters", getEnvInt("CLUSTERS", 4), "k-means cluster count")
	flag.Int64Var(&cfg.KMeansSeed, "kmeans-seed", getEnvInt64("KMEANS_SEED", 42), "k-means random seed")
	flag.IntVar(&cfg.KMeansMaxIter, "kmeans-max-iter", getEnvInt("KMEANS_MAX_ITER", 25), "k-means max Lloyd iterations")

	flag.StringVar(&cfg.Model, "model", getEnv("MODEL", "logreg"), "Classifier: logreg or forest")
	flag.IntVar(&cfg.CVFolds, "cv-folds", getEnvInt("CV_FOLDS", 3), "Cross-validation fold count")
	flag.Int64Var(&cfg.CVSeed, "cv-seed", getEnvInt64("CV_SEED", 7), "Cross-validation shuffle seed")
	flag.StringVar(&cfg.forestDepthsRaw, "forest-depths", getEnv("FOREST_DEPTHS", "5,10,20"), "Comma-separated forest depth grid")
	flag.StringVar(&cfg.forestTreesRaw, "forest-trees", getEnv("FOREST_TREES", "20,50"), "Comma-separated forest size grid")
	flag.StringVar(&cfg.logregL2Raw, "logreg-l2", getEnv("LOGREG_L2", "0.01"), "Comma-separated logistic L2 strength grid (single value = plain fit)")
	flag.StringVar(&cfg.logregEpochsRaw, "logreg-epochs", getEnv("LOGREG_EPOCHS", "200"), "Comma-separated logistic epoch grid (single value = plain fit)")
	flag.Float64Var(&cfg.LearnRate, "learn-rate", getEnvFloat("LEARN_RATE", 0.1), "Logistic gradient step size")

	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 0), "Retraining interval (0 = train once and exit)")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

var datasetNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// Validate resolves the raw list and date flags and checks the configuration.
func (c *Config) Validate() error {
	if c.Dataset == "" {
		return fmt.Errorf("--dataset is required")
	}
	if !datasetNameRegex.MatchString(c.Dataset) {
		return fmt.Errorf("invalid dataset name %q (must be alphanumeric with dash/underscore, 1-253 chars)", c.Dataset)
	}

	if c.TelemetryPath == "" {
		return fmt.Errorf("--telemetry-path is required")
	}
	if c.FeaturesPath == "" {
		return fmt.Errorf("--features-path is required")
	}
	for _, format := range []string{c.TelemetryFormat, c.FeaturesFormat} {
		if format != "csv" && format != "ndjson" {
			return fmt.Errorf("invalid table format %q (must be csv or ndjson)", format)
		}
	}

	c.Sensors = parseStringList(c.sensorsRaw)
	if len(c.Sensors) == 0 {
		return fmt.Errorf("--sensors cannot be empty")
	}
	c.Indicators = parseStringList(c.indicatorsRaw)
	if len(c.Indicators) == 0 {
		return fmt.Errorf("--indicators cannot be empty")
	}
	c.TimeFeatures = parseStringList(c.timeFeaturesRaw)
	if c.AgeColumn == "" {
		return fmt.Errorf("--age-column cannot be empty")
	}

	var err error
	if c.TrainCutoff, err = parseCutoff(c.trainCutoffRaw); err != nil {
		return fmt.Errorf("invalid --train-cutoff: %w", err)
	}
	if c.TestCutoff, err = parseCutoff(c.testCutoffRaw); err != nil {
		return fmt.Errorf("invalid --test-cutoff: %w", err)
	}
	if c.TestCutoff.Before(c.TrainCutoff) {
		return fmt.Errorf("test cutoff %s precedes train cutoff %s", c.testCutoffRaw, c.trainCutoffRaw)
	}

	if c.PCAComponents < 0 || c.PCAComponents > len(c.Sensors) {
		return fmt.Errorf("--pca-components must be 0-%d", len(c.Sensors))
	}
	if c.Clusters <= 0 {
		return fmt.Errorf("--clusters must be > 0")
	}
	if c.KMeansMaxIter <= 0 {
		c.KMeansMaxIter = 25
	}

	if c.Model != "logreg" && c.Model != "forest" {
		return fmt.Errorf("invalid model %q (must be logreg or forest)", c.Model)
	}
	if c.CVFolds < 2 {
		return fmt.Errorf("--cv-folds must be >= 2")
	}

	if c.ForestDepths, err = parseIntList(c.forestDepthsRaw); err != nil {
		return fmt.Errorf("invalid --forest-depths: %w", err)
	}
	if c.ForestTrees, err = parseIntList(c.forestTreesRaw); err != nil {
		return fmt.Errorf("invalid --forest-trees: %w", err)
	}
	if c.LogregL2, err = parseFloatList(c.logregL2Raw); err != nil {
		return fmt.Errorf("invalid --logreg-l2: %w", err)
	}
	if c.LogregEpochs, err = parseIntList(c.logregEpochsRaw); err != nil {
		return fmt.Errorf("invalid --logreg-epochs: %w", err)
	}
	if c.Model == "forest" && (len(c.ForestDepths) == 0 || len(c.ForestTrees) == 0) {
		return fmt.Errorf("forest grid cannot be empty")
	}
	if c.Model == "logreg" && (len(c.LogregL2) == 0 || len(c.LogregEpochs) == 0) {
		return fmt.Errorf("logreg grid cannot be empty")
	}
	if c.LearnRate <= 0 {
		return fmt.Errorf("--learn-rate must be > 0")
	}

	if c.Interval < 0 {
		return fmt.Errorf("--interval cannot be negative")
	}

	return nil
}

// SetRawLists populates the raw list and date fields directly.
// Intended for tests and embedding callers that bypass flag parsing.
func (c *Config) SetRawLists(sensors, indicators, timeFeatures, trainCutoff, testCutoff, depths, trees, l2, epochs string) {
	c.sensorsRaw = sensors
	c.indicatorsRaw = indicators
	c.timeFeaturesRaw = timeFeatures
	c.trainCutoffRaw = trainCutoff
	c.testCutoffRaw = testCutoff
	c.forestDepthsRaw = depths
	c.forestTreesRaw = trees
	c.logregL2Raw = l2
	c.logregEpochsRaw = epochs
}

// parseCutoff accepts a bare date or a full RFC3339 timestamp. Bare dates
// resolve to midnight UTC.
func parseCutoff(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("cutoff cannot be empty")
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t, nil
}

func parseStringList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range parseStringList(s) {
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", part)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%d must be > 0", v)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, part := range parseStringList(s) {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		if v < 0 {
			return nil, fmt.Errorf("%v cannot be negative", v)
		}
		out = append(out, v)
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var i int64
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
