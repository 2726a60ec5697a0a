package infer_test

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/boxnet/internal/autodiff"
	"github.com/born-ml/boxnet/internal/backend/cpu"
	"github.com/born-ml/boxnet/internal/config"
	"github.com/born-ml/boxnet/internal/dataset"
	"github.com/born-ml/boxnet/internal/detector"
	"github.com/born-ml/boxnet/internal/infer"
	"github.com/born-ml/boxnet/internal/tensor"
)

func settings() config.Settings {
	s := config.Default()
	s.Model.InputShape = tensor.Shape{1, 16, 16}
	s.Model.NumClasses = 3
	s.Model.BatchSize = 4
	s.Data.Synthetic = true
	s.Data.TrainSamples = 10
	s.Data.ValidSamples = 10
	return s
}

func newModel[B tensor.Backend](t *testing.T, backend B) *detector.BoxNet[B] {
	t.Helper()
	m, err := detector.New(settings(), backend, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	return m
}

func checkPrediction(t *testing.T, p infer.Prediction, classes int) {
	t.Helper()
	require.Len(t, p.Probabilities, classes)
	var sum float32
	for _, v := range p.Probabilities {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-5)
	assert.GreaterOrEqual(t, p.Class, 0)
	assert.Less(t, p.Class, classes)
	for _, v := range p.Probabilities {
		assert.LessOrEqual(t, v, p.Confidence())
	}
	for _, v := range p.Box {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPredict_PlainBackend(t *testing.T) {
	model := newModel(t, cpu.New())
	p := infer.NewPredictor(model)

	pred, err := p.Predict(make([]float32, 16*16))
	require.NoError(t, err)
	checkPrediction(t, pred, 3)
}

func TestPredict_DoesNotRecord(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	model := newModel(t, backend)
	p := infer.NewPredictor(model)

	pixels := make([]float32, 16*16)
	for i := range pixels {
		pixels[i] = float32(i%7) / 7
	}
	a, err := p.Predict(pixels)
	require.NoError(t, err)
	b, err := p.Predict(pixels)
	require.NoError(t, err)

	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.True(t, backend.Tape().IsRecording())
	assert.Equal(t, a, b)
}

func TestPredict_WrongLength(t *testing.T) {
	p := infer.NewPredictor(newModel(t, cpu.New()))
	_, err := p.Predict(make([]float32, 10))
	assert.ErrorIs(t, err, detector.ErrShapeMismatch)
}

func TestPredictBatch_MatchesSingle(t *testing.T) {
	backend := cpu.New()
	model := newModel(t, backend)
	p := infer.NewPredictor(model)

	ds := dataset.NewSynthetic(3, tensor.Shape{1, 16, 16}, 3, 9)

	var all []float32
	var singles []infer.Prediction
	for i := range ds.Len() {
		s, err := ds.Get(i)
		require.NoError(t, err)
		all = append(all, s.Image...)
		pred, err := p.Predict(s.Image)
		require.NoError(t, err)
		singles = append(singles, pred)
	}

	images, err := tensor.FromSlice(all, tensor.Shape{3, 1, 16, 16}, backend)
	require.NoError(t, err)
	batch, err := p.PredictBatch(images)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i := range batch {
		assert.Equal(t, singles[i].Class, batch[i].Class)
		for j := range 4 {
			assert.InDelta(t, singles[i].Box[j], batch[i].Box[j], 1e-5)
		}
	}
}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestPredictFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	writeImage(t, path, 40, 30)

	p := infer.NewPredictor(newModel(t, cpu.New()))
	pred, img, err := p.PredictFile(path)
	require.NoError(t, err)
	checkPrediction(t, pred, 3)
	assert.Equal(t, 40, img.Bounds().Dx())

	_, _, err = p.PredictFile(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestAnnotate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	writeImage(t, src, 16, 16)

	p := infer.NewPredictor(newModel(t, cpu.New()))
	pred, img, err := p.PredictFile(src)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.png")
	require.NoError(t, infer.Annotate(img, pred, "circle", out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cfg.Width, 256)
	assert.GreaterOrEqual(t, cfg.Height, 256)

	err = infer.Annotate(img, pred, "circle", filepath.Join(dir, "no", "such", "dir.png"))
	assert.Error(t, err)
}

func benchLoader(t *testing.T, n int) *dataset.Loader {
	t.Helper()
	s := settings()
	ds := dataset.NewSynthetic(n, s.Model.InputShape, s.Model.NumClasses, 5)
	l, err := dataset.NewLoaderFor(ds, s, false, logs.NewTestingLog(t))
	require.NoError(t, err)
	return l
}

func TestBenchmark_AllBatches(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model := newModel(t, backend)
	before := model.Parameters()[0].Tensor().Clone().Data()

	res, err := infer.Benchmark(context.Background(), model, benchLoader(t, 10), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 10, res.Samples)
	assert.True(t, res.Elapsed > 0)
	assert.Positive(t, res.FPS)
	assert.Equal(t, before, model.Parameters()[0].Tensor().Data())
	assert.Equal(t, 0, backend.Tape().NumOps())
}

func TestBenchmark_MaxBatches(t *testing.T) {
	model := newModel(t, cpu.New())
	res, err := infer.Benchmark(context.Background(), model, benchLoader(t, 20), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 8, res.Samples)
	assert.Contains(t, res.String(), "8 samples in 2 batches")
}

// countingDataset counts Get calls.
type countingDataset struct {
	*dataset.Synthetic
	gets atomic.Int64
}

func (d *countingDataset) Get(i int) (dataset.Sample, error) {
	d.gets.Add(1)
	return d.Synthetic.Get(i)
}

func TestBenchmark_StopsLoadingAtLimit(t *testing.T) {
	s := settings()
	ds := &countingDataset{Synthetic: dataset.NewSynthetic(20, s.Model.InputShape, s.Model.NumClasses, 5)}
	l, err := dataset.NewLoader(ds, dataset.LoaderConfig{BatchSize: 4, NumClasses: 3}, logs.NewTestingLog(t))
	require.NoError(t, err)

	res, err := infer.Benchmark(context.Background(), newModel(t, cpu.New()), l, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, int64(8), ds.gets.Load())
}

func TestBenchmark_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := infer.Benchmark(ctx, newModel(t, cpu.New()), benchLoader(t, 10), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHostInfo(t *testing.T) {
	h := infer.HostInfo()
	assert.NotEmpty(t, h.CPU)
	assert.Positive(t, h.LogicalCores)
	assert.NotEmpty(t, h.OS)
	assert.Contains(t, h.String(), h.Arch)
}
