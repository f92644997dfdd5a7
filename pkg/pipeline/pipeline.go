package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/millwright/pkg/dataset"
)

// Config describes the shape of the feature pipeline.
type Config struct {
	// SensorColumns are the raw telemetry columns assembled into the vector
	// fed through PCA and clustering (e.g. volt, rotate, pressure, vibration).
	SensorColumns []string

	// TimeColumns are the time-since-last-event columns that are min-max
	// scaled independently of the sensor branch.
	TimeColumns []string

	// AgeColumn is appended to the final vector unscaled.
	AgeColumn string

	// Components is the PCA output dimensionality. 0 means the sensor input
	// dimensionality, which makes the rotation a pure orthogonalization.
	Components int

	// Clusters is the k-means cluster count; the cluster id is one-hot
	// encoded with no dropped category.
	Clusters int

	// Seed drives k-means initialization so fits are reproducible.
	Seed int64

	// MaxIter bounds the Lloyd iterations (0 = default).
	MaxIter int
}

// Params holds the frozen parameters of a fitted pipeline. They are produced
// once by Fit and never touched by Transform.
type Params struct {
	Rotation  *mat.Dense  // sensor dim × components PCA rotation
	Scale     []float64   // per-component standard deviation divisors
	Centroids [][]float64 // k-means centroids in scaled component space
	TimeMin   []float64   // per time column min over training rows
	TimeMax   []float64   // per time column max over training rows
}

// Pipeline maps joined records into the final feature vector:
//
//	sensors → PCA rotation → scale by stddev → k-means cluster → one-hot
//	time-since columns → min-max scale
//	final vector = [scaled time features, age, one-hot cluster]
//
// Fit learns the frozen parameters from training rows only; Transform
// applies them deterministically to any rows. It is safe to call Transform
// concurrently after a successful Fit.
type Pipeline struct {
	cfg Config

	mu     sync.RWMutex
	fitted bool
	params Params
}

// NewPipeline creates an unfitted feature pipeline.
//
// Panics if no sensor columns are configured or the cluster count is not
// positive; both indicate programmer error rather than bad input data.
func NewPipeline(cfg Config) *Pipeline {
	if len(cfg.SensorColumns) == 0 {
		panic("at least one sensor column required")
	}
	if cfg.Clusters <= 0 {
		panic("cluster count must be > 0")
	}
	if cfg.Components == 0 {
		cfg.Components = len(cfg.SensorColumns)
	}
	if cfg.Components < 0 || cfg.Components > len(cfg.SensorColumns) {
		panic(fmt.Sprintf("components must be in [1, %d]", len(cfg.SensorColumns)))
	}

	return &Pipeline{cfg: cfg}
}

// FeatureDim returns the width of the transformed feature vector.
func (p *Pipeline) FeatureDim() int {
	return len(p.cfg.TimeColumns) + 1 + p.cfg.Clusters
}

// FeatureNames returns the column names of the transformed feature vector,
// in output order. Useful for report rendering.
func (p *Pipeline) FeatureNames() []string {
	names := make([]string, 0, p.FeatureDim())
	names = append(names, p.cfg.TimeColumns...)
	names = append(names, p.cfg.AgeColumn)
	for c := 0; c < p.cfg.Clusters; c++ {
		names = append(names, fmt.Sprintf("cluster_%d", c))
	}
	return names
}

// Fit learns PCA rotation, component scales, k-means centroids and min-max
// bounds from the given training rows. It must only ever see training data;
// the caller enforces the temporal split.
//
// Fitting again replaces all frozen parameters.
func (p *Pipeline) Fit(ctx context.Context, train *dataset.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if train.Len() <= len(p.cfg.SensorColumns) {
		return fmt.Errorf("need more than %d training rows for PCA, got %d",
			len(p.cfg.SensorColumns), train.Len())
	}

	X := p.sensorMatrix(train)

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return errors.New("principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, vc := vecs.Dims()
	if vc < p.cfg.Components {
		return fmt.Errorf("decomposition yielded %d components, need %d", vc, p.cfg.Components)
	}
	rotation := mat.DenseCopyOf(vecs.Slice(0, len(p.cfg.SensorColumns), 0, p.cfg.Components))

	n := train.Len()
	projected := mat.NewDense(n, p.cfg.Components, nil)
	projected.Mul(X, rotation)

	// Unit variance without mean centering: divide each component by its
	// training standard deviation.
	scale := make([]float64, p.cfg.Components)
	col := make([]float64, n)
	for j := range scale {
		mat.Col(col, j, projected)
		sd := stat.StdDev(col, nil)
		if sd == 0 {
			sd = 1
		}
		scale[j] = sd
	}

	scaled := make([][]float64, n)
	for i := range scaled {
		row := make([]float64, p.cfg.Components)
		for j := range row {
			row[j] = projected.At(i, j) / scale[j]
		}
		scaled[i] = row
	}

	centroids, err := fitKMeans(scaled, p.cfg.Clusters, p.cfg.Seed, p.cfg.MaxIter)
	if err != nil {
		return fmt.Errorf("fit k-means: %w", err)
	}

	timeMin := make([]float64, len(p.cfg.TimeColumns))
	timeMax := make([]float64, len(p.cfg.TimeColumns))
	for j, name := range p.cfg.TimeColumns {
		first := true
		for _, rec := range train.Records {
			v := rec.Fields[name]
			if first {
				timeMin[j], timeMax[j] = v, v
				first = false
				continue
			}
			if v < timeMin[j] {
				timeMin[j] = v
			}
			if v > timeMax[j] {
				timeMax[j] = v
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.fitted = true
	p.params = Params{
		Rotation:  rotation,
		Scale:     scale,
		Centroids: centroids,
		TimeMin:   timeMin,
		TimeMax:   timeMax,
	}

	return nil
}

// Transform maps rows into the final feature matrix using the frozen
// parameters. The same rows always produce the same matrix; Transform never
// modifies fitted state, so train and test rows go through identical math.
func (p *Pipeline) Transform(ctx context.Context, t *dataset.Table) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	if !p.fitted {
		p.mu.RUnlock()
		return nil, errors.New("pipeline not fitted, call Fit() first")
	}
	params := p.params
	p.mu.RUnlock()

	n := t.Len()
	if n == 0 {
		return nil, errors.New("cannot transform an empty table")
	}

	X := p.sensorMatrix(t)
	projected := mat.NewDense(n, p.cfg.Components, nil)
	projected.Mul(X, params.Rotation)

	out := mat.NewDense(n, p.FeatureDim(), nil)
	point := make([]float64, p.cfg.Components)

	for i, rec := range t.Records {
		col := 0

		for j, name := range p.cfg.TimeColumns {
			span := params.TimeMax[j] - params.TimeMin[j]
			v := 0.0
			if span != 0 {
				v = (rec.Fields[name] - params.TimeMin[j]) / span
			}
			out.Set(i, col, v)
			col++
		}

		out.Set(i, col, rec.Fields[p.cfg.AgeColumn])
		col++

		for j := range point {
			point[j] = projected.At(i, j) / params.Scale[j]
		}
		cluster, _ := nearestCentroid(point, params.Centroids)
		out.Set(i, col+cluster, 1)
	}

	return out, nil
}

// Params returns a deep copy of the frozen parameters.
// The copy lets callers audit or persist fitted state without being able to
// reach back into the pipeline.
func (p *Pipeline) Params() (Params, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.fitted {
		return Params{}, errors.New("pipeline not fitted, call Fit() first")
	}

	out := Params{
		Rotation: mat.DenseCopyOf(p.params.Rotation),
		Scale:    append([]float64(nil), p.params.Scale...),
		TimeMin:  append([]float64(nil), p.params.TimeMin...),
		TimeMax:  append([]float64(nil), p.params.TimeMax...),
	}
	out.Centroids = make([][]float64, len(p.params.Centroids))
	for i, c := range p.params.Centroids {
		out.Centroids[i] = append([]float64(nil), c...)
	}

	return out, nil
}

// sensorMatrix assembles the configured sensor columns into an n×d matrix.
func (p *Pipeline) sensorMatrix(t *dataset.Table) *mat.Dense {
	d := len(p.cfg.SensorColumns)
	X := mat.NewDense(t.Len(), d, nil)
	for i, rec := range t.Records {
		for j, name := range p.cfg.SensorColumns {
			X.Set(i, j, rec.Fields[name])
		}
	}
	return X
}
