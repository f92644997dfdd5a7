// Package main implements the training run orchestration.
//
// This file contains the Trainer type which orchestrates the pipeline:
//
//	load → join → label → split → fit/transform → train → evaluate → store
//
// The Trainer runs once by default, or continuously via Run() when a
// retraining interval is configured. Each tick performs one complete
// training run, updating the stored report that the HTTP API serves.
//
// The run is instrumented with Prometheus metrics tracking the duration of
// each pipeline stage (load, transform, train, evaluate) and any errors
// encountered during execution.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/millwright/cmd/trainer/config"
	"github.com/HatiCode/millwright/cmd/trainer/metrics"
	"github.com/HatiCode/millwright/pkg/classify"
	"github.com/HatiCode/millwright/pkg/dataset"
	"github.com/HatiCode/millwright/pkg/eval"
	"github.com/HatiCode/millwright/pkg/pipeline"
	"github.com/HatiCode/millwright/pkg/storage"
)

// Trainer orchestrates the training run: load → label → split → transform →
// train → evaluate → store.
type Trainer struct {
	cfg       *config.Config
	telemetry dataset.Source
	features  dataset.Source
	trainer   classify.Trainer
	store     storage.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	out       io.Writer
}

// NewTrainer creates a new Trainer.
func NewTrainer(
	cfg *config.Config,
	telemetry, features dataset.Source,
	trainer classify.Trainer,
	store storage.Store,
	logger *slog.Logger,
	m *metrics.Metrics,
	out io.Writer,
) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Trainer{
		cfg:       cfg,
		telemetry: telemetry,
		features:  features,
		trainer:   trainer,
		store:     store,
		logger:    logger,
		metrics:   m,
		out:       out,
	}
}

// Run executes training runs at the configured interval.
// A zero interval performs a single run and returns its error. Otherwise
// Run blocks until the context is canceled, logging per-run failures.
func (t *Trainer) Run(ctx context.Context, interval time.Duration) error {
	if interval == 0 {
		_, err := t.Tick(ctx)
		return err
	}

	t.logger.Info("starting retraining loop", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := t.Tick(ctx); err != nil {
		t.logger.Error("initial training run failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("retraining loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.Tick(ctx); err != nil {
				t.logger.Error("training run failed", "error", err)
			}
		}
	}
}

// Tick performs one complete training run and returns the stored report.
// Exported for testing purposes.
func (t *Trainer) Tick(ctx context.Context) (storage.Report, error) {
	start := time.Now()
	t.logger.Debug("starting training run")

	labeled, nullCounts, loadDuration, err := t.load(ctx)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("load", "load_failed")
		}
		return storage.Report{}, fmt.Errorf("load: %w", err)
	}

	split, err := pipeline.TimeSplit(labeled, t.cfg.TrainCutoff, t.cfg.TestCutoff)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("split", "split_failed")
		}
		return storage.Report{}, fmt.Errorf("split: %w", err)
	}
	if split.Train.Len() == 0 || split.Test.Len() == 0 {
		if t.metrics != nil {
			t.metrics.RecordError("split", "empty_partition")
		}
		return storage.Report{}, fmt.Errorf("split produced %d train and %d test rows", split.Train.Len(), split.Test.Len())
	}

	trainX, testX, transformDuration, err := t.transform(ctx, split)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("pipeline", "transform_failed")
		}
		return storage.Report{}, fmt.Errorf("transform: %w", err)
	}

	classes := len(t.cfg.Indicators) + 1

	trainStart := time.Now()
	model, grid, err := t.trainer.Train(ctx, trainX, split.TrainLabels, classes)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("model", "train_failed")
		}
		return storage.Report{}, fmt.Errorf("train: %w", err)
	}
	trainDuration := time.Since(trainStart)
	if t.metrics != nil {
		t.metrics.RecordTrain(trainDuration.Seconds())
	}

	evalStart := time.Now()
	summary, err := eval.Evaluate(split.TestLabels, model.Predict(testX), classes)
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("eval", "evaluate_failed")
		}
		return storage.Report{}, fmt.Errorf("evaluate: %w", err)
	}
	evalDuration := time.Since(evalStart)
	if t.metrics != nil {
		t.metrics.RecordEvaluate(evalDuration.Seconds())
	}

	report := storage.Report{
		Dataset:            t.cfg.Dataset,
		GeneratedAt:        time.Now(),
		Model:              model.Name(),
		JoinedRows:         labeled.Table.Len(),
		TrainRows:          split.Train.Len(),
		TestRows:           split.Test.Len(),
		NullCounts:         nullCounts,
		MultiIndicatorRows: labeled.MultiIndicatorRows,
		LabelCounts:        countLabels(labeled.Labels),
		GridResults:        grid,
		Evaluation:         summary,
		DurationMillis:     time.Since(start).Milliseconds(),
	}

	if err := t.store.Put(ctx, report); err != nil {
		if t.metrics != nil {
			t.metrics.RecordError("store", "put_failed")
		}
		return storage.Report{}, fmt.Errorf("store: %w", err)
	}

	if t.metrics != nil {
		t.metrics.SetRows(report.JoinedRows, report.TrainRows, report.TestRows)
		t.metrics.SetEvaluation(summary.WeightedPrecision, summary.WeightedRecall, summary.Accuracy)
		t.metrics.SetReportAge(0) // Just generated
	}

	if t.out != nil {
		t.printPreview(labeled.Table)
		t.printReport(report)
	}

	t.logger.Info("training run complete",
		"dataset", t.cfg.Dataset,
		"model", report.Model,
		"joined_rows", report.JoinedRows,
		"train_rows", report.TrainRows,
		"test_rows", report.TestRows,
		"weighted_precision", summary.WeightedPrecision,
		"weighted_recall", summary.WeightedRecall,
		"accuracy", summary.Accuracy,
		"load_ms", loadDuration.Milliseconds(),
		"transform_ms", transformDuration.Milliseconds(),
		"train_ms", trainDuration.Milliseconds(),
		"evaluate_ms", evalDuration.Milliseconds(),
		"total_ms", report.DurationMillis,
	)

	return report, nil
}

// load reads both sources, joins them on (machine, timestamp) and derives
// the failure labels. Null counts are taken on the joined table before the
// indicator columns are dropped.
func (t *Trainer) load(ctx context.Context) (*pipeline.Labeled, map[string]int, time.Duration, error) {
	start := time.Now()

	telemetry, err := t.telemetry.Load(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load telemetry: %w", err)
	}
	features, err := t.features.Load(ctx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load features: %w", err)
	}

	joined := telemetry.InnerJoin(features)
	if joined.Len() == 0 {
		return nil, nil, 0, fmt.Errorf("join produced no rows: no shared (machine, timestamp) keys")
	}

	if len(t.cfg.TimeFeatures) == 0 {
		t.cfg.TimeFeatures = detectTimeFeatures(joined.Columns)
		t.logger.Info("detected time feature columns", "columns", t.cfg.TimeFeatures)
	}

	nullCounts := joined.NullCount()

	labeled, err := pipeline.DeriveLabels(joined, t.cfg.Indicators)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("derive labels: %w", err)
	}
	if labeled.MultiIndicatorRows > 0 {
		t.logger.Warn("rows with multiple failure indicators set",
			"rows", labeled.MultiIndicatorRows)
	}

	duration := time.Since(start)
	if t.metrics != nil {
		t.metrics.RecordLoad(duration.Seconds())
	}

	t.logger.Info("loaded and joined input tables",
		"telemetry", t.telemetry.Name(),
		"features", t.features.Name(),
		"telemetry_rows", telemetry.Len(),
		"feature_rows", features.Len(),
		"joined_rows", joined.Len(),
		"duration_ms", duration.Milliseconds(),
	)

	return labeled, nullCounts, duration, nil
}

// transform fits the feature pipeline on training rows only and applies the
// frozen parameters to both partitions.
func (t *Trainer) transform(ctx context.Context, split *pipeline.Split) (trainX, testX *mat.Dense, duration time.Duration, err error) {
	start := time.Now()

	p := pipeline.NewPipeline(pipeline.Config{
		SensorColumns: t.cfg.Sensors,
		TimeColumns:   t.cfg.TimeFeatures,
		AgeColumn:     t.cfg.AgeColumn,
		Components:    t.cfg.PCAComponents,
		Clusters:      t.cfg.Clusters,
		Seed:          t.cfg.KMeansSeed,
		MaxIter:       t.cfg.KMeansMaxIter,
	})

	if err := p.Fit(ctx, split.Train); err != nil {
		return nil, nil, 0, fmt.Errorf("fit pipeline: %w", err)
	}

	if trainX, err = p.Transform(ctx, split.Train); err != nil {
		return nil, nil, 0, fmt.Errorf("transform train rows: %w", err)
	}
	if testX, err = p.Transform(ctx, split.Test); err != nil {
		return nil, nil, 0, fmt.Errorf("transform test rows: %w", err)
	}

	duration = time.Since(start)
	if t.metrics != nil {
		t.metrics.RecordTransform(duration.Seconds())
	}

	t.logger.Debug("transformed partitions",
		"feature_dim", p.FeatureDim(),
		"duration_ms", duration.Milliseconds(),
	)

	return trainX, testX, duration, nil
}

// printPreview renders the first joined rows as an aligned table.
func (t *Trainer) printPreview(table *dataset.Table) {
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)

	for _, row := range table.Preview(5) {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	fmt.Fprintln(w)

	if err := w.Flush(); err != nil {
		t.logger.Error("failed to render preview", "error", err)
	}
}

// printReport renders the report as an aligned table on the configured writer.
func (t *Trainer) printReport(r storage.Report) {
	w := tabwriter.NewWriter(t.out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "dataset\t%s\n", r.Dataset)
	fmt.Fprintf(w, "model\t%s\n", r.Model)
	fmt.Fprintf(w, "generated\t%s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "joined rows\t%d\n", r.JoinedRows)
	fmt.Fprintf(w, "train rows\t%d\n", r.TrainRows)
	fmt.Fprintf(w, "test rows\t%d\n", r.TestRows)
	if r.MultiIndicatorRows > 0 {
		fmt.Fprintf(w, "multi-indicator rows\t%d\n", r.MultiIndicatorRows)
	}

	columns := make([]string, 0, len(r.NullCounts))
	for c, n := range r.NullCounts {
		if n > 0 {
			columns = append(columns, c)
		}
	}
	sort.Strings(columns)
	for _, c := range columns {
		fmt.Fprintf(w, "nulls %s\t%d\n", c, r.NullCounts[c])
	}

	labels := make([]string, 0, len(r.LabelCounts))
	for label := range r.LabelCounts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "label %s\t%d\n", label, r.LabelCounts[label])
	}

	for _, point := range r.GridResults {
		fmt.Fprintf(w, "cv %s\t%.4f\n", formatParams(point.Params), point.Score)
	}

	fmt.Fprintf(w, "weighted precision\t%.4f\n", r.Evaluation.WeightedPrecision)
	fmt.Fprintf(w, "weighted recall\t%.4f\n", r.Evaluation.WeightedRecall)
	fmt.Fprintf(w, "accuracy\t%.4f\n", r.Evaluation.Accuracy)
	fmt.Fprintf(w, "duration\t%dms\n", r.DurationMillis)

	if err := w.Flush(); err != nil {
		t.logger.Error("failed to render report", "error", err)
	}
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, strconv.FormatFloat(params[k], 'g', -1, 64)))
	}
	return strings.Join(parts, " ")
}

func countLabels(labels []int) map[string]int {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[strconv.Itoa(l)]++
	}
	return counts
}

// detectTimeFeatures returns the columns carrying the diff_ prefix, in the
// table's column order.
func detectTimeFeatures(columns []string) []string {
	var out []string
	for _, c := range columns {
		if strings.HasPrefix(c, "diff_") {
			out = append(out, c)
		}
	}
	return out
}
