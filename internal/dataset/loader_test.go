package dataset

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/boxnet/internal/tensor"
)

// fixedDataset returns samples whose pixels and class derive from the index.
type fixedDataset struct {
	n          int
	shape      tensor.Shape
	numClasses int
	badClass   int // index reporting an out-of-range class, or -1
}

func (d *fixedDataset) Len() int            { return d.n }
func (d *fixedDataset) Shape() tensor.Shape { return d.shape }
func (d *fixedDataset) Get(i int) (Sample, error) {
	img := make([]float32, d.shape.NumElements())
	for j := range img {
		img[j] = float32(i)
	}
	class := i % d.numClasses
	if i == d.badClass {
		class = d.numClasses
	}
	return Sample{Image: img, ClassID: class, Box: [4]float32{float32(i), 0, 0, 0}}, nil
}

func collectIndices(t *testing.T, l *Loader) ([][]int, []Batch) {
	t.Helper()
	var order [][]int
	var batches []Batch
	require.NoError(t, l.Epoch(context.Background(), func(b Batch) error {
		order = append(order, b.Indices)
		batches = append(batches, b)
		return nil
	}))
	return order, batches
}

func TestLoader_FixedOrderBatches(t *testing.T) {
	ds := &fixedDataset{n: 7, shape: tensor.Shape{1, 2, 2}, numClasses: 3, badClass: -1}
	l, err := NewLoader(ds, LoaderConfig{BatchSize: 3, NumClasses: 3}, logs.NewTestingLog(t))
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumBatches())

	order, batches := collectIndices(t, l)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, order)

	last := batches[2]
	assert.Equal(t, 1, last.Size)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, last.ImageShape())
	assert.Equal(t, []float32{6, 6, 6, 6}, last.Images)
	assert.Equal(t, []int32{0}, last.Labels)
	assert.Equal(t, []float32{6, 0, 0, 0}, last.Boxes)

	first := batches[0]
	assert.Equal(t, []int32{0, 1, 2}, first.Labels)
	assert.Equal(t, float32(1), first.Images[4])
}

func TestLoader_ShuffleIsSeededPermutation(t *testing.T) {
	ds := &fixedDataset{n: 20, shape: tensor.Shape{1, 1, 1}, numClasses: 2, badClass: -1}
	cfg := LoaderConfig{BatchSize: 4, NumClasses: 2, Shuffle: true, Seed: 9}

	a, err := NewLoader(ds, cfg, logs.NewTestingLog(t))
	require.NoError(t, err)
	b, err := NewLoader(ds, cfg, logs.NewTestingLog(t))
	require.NoError(t, err)

	epoch1, _ := collectIndices(t, a)
	epoch2, _ := collectIndices(t, a)
	same, _ := collectIndices(t, b)

	assert.Equal(t, epoch1, same)
	assert.NotEqual(t, epoch1, epoch2)

	var flat []int
	for _, idx := range epoch1 {
		flat = append(flat, idx...)
	}
	sort.Ints(flat)
	for i, v := range flat {
		assert.Equal(t, i, v)
	}
}

func TestLoader_PrefetchPreservesOrder(t *testing.T) {
	ds := &fixedDataset{n: 25, shape: tensor.Shape{1, 3, 3}, numClasses: 4, badClass: -1}

	direct, err := NewLoader(ds, LoaderConfig{BatchSize: 4, NumClasses: 4, Shuffle: true, Seed: 3}, logs.NewTestingLog(t))
	require.NoError(t, err)
	pre, err := NewLoader(ds, LoaderConfig{BatchSize: 4, NumClasses: 4, Shuffle: true, Seed: 3, Prefetch: 2, Workers: 3}, logs.NewTestingLog(t))
	require.NoError(t, err)

	_, want := collectIndices(t, direct)
	_, got := collectIndices(t, pre)
	assert.Equal(t, want, got)
}

func TestLoader_ClassOutOfRange(t *testing.T) {
	for _, prefetch := range []int{0, 2} {
		ds := &fixedDataset{n: 10, shape: tensor.Shape{1, 1, 1}, numClasses: 3, badClass: 5}
		l, err := NewLoader(ds, LoaderConfig{BatchSize: 2, NumClasses: 3, Prefetch: prefetch}, logs.NewTestingLog(t))
		require.NoError(t, err)

		seen := 0
		err = l.Epoch(context.Background(), func(Batch) error {
			seen++
			return nil
		})
		assert.ErrorIs(t, err, ErrParse)
		assert.Equal(t, 2, seen)
	}
}

func TestLoader_ConsumerErrorStopsEpoch(t *testing.T) {
	ds := &fixedDataset{n: 50, shape: tensor.Shape{1, 1, 1}, numClasses: 2, badClass: -1}
	l, err := NewLoader(ds, LoaderConfig{BatchSize: 5, NumClasses: 2, Prefetch: 1}, logs.NewTestingLog(t))
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = l.Epoch(context.Background(), func(Batch) error {
		calls++
		if calls == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, calls)
}

func TestNewLoader_RejectsBadConfig(t *testing.T) {
	ds := &fixedDataset{n: 1, shape: tensor.Shape{1, 1, 1}, numClasses: 1, badClass: -1}
	_, err := NewLoader(ds, LoaderConfig{BatchSize: 0, NumClasses: 1}, logs.NewTestingLog(t))
	assert.Error(t, err)
	_, err = NewLoader(ds, LoaderConfig{BatchSize: 1, NumClasses: 1, Prefetch: -1}, logs.NewTestingLog(t))
	assert.Error(t, err)
}

func TestSynthetic_Deterministic(t *testing.T) {
	shape := tensor.Shape{1, 8, 8}
	a := NewSynthetic(10, shape, 3, 42)
	b := NewSynthetic(10, shape, 3, 42)
	require.Equal(t, 10, a.Len())

	for i := 0; i < a.Len(); i++ {
		sa, err := a.Get(i)
		require.NoError(t, err)
		sb, err := b.Get(i)
		require.NoError(t, err)
		assert.Equal(t, sa, sb)

		assert.Len(t, sa.Image, 64)
		assert.GreaterOrEqual(t, sa.ClassID, 0)
		assert.Less(t, sa.ClassID, 3)
		for _, v := range sa.Box {
			assert.GreaterOrEqual(t, v, float32(0))
			assert.Less(t, v, float32(1))
		}
	}

	again, err := a.Get(0)
	require.NoError(t, err)
	first, err := b.Get(0)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = a.Get(10)
	assert.Error(t, err)
}

func TestRandomStream_FreshSamples(t *testing.T) {
	rs := NewRandomStream(5, tensor.Shape{1, 4, 4}, 2, 1)
	assert.Equal(t, 5, rs.Len())
	assert.Equal(t, tensor.Shape{1, 4, 4}, rs.Shape())

	a, err := rs.Get(0)
	require.NoError(t, err)
	b, err := rs.Get(0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Image, b.Image)

	replay := NewRandomStream(5, tensor.Shape{1, 4, 4}, 2, 1)
	c, err := replay.Get(0)
	require.NoError(t, err)
	d, err := replay.Get(0)
	require.NoError(t, err)
	assert.Equal(t, a, c)
	assert.Equal(t, b, d)

	_, err = rs.Get(5)
	assert.Error(t, err)
}

func TestRandomStream_ConcurrentLoaderIsReproducible(t *testing.T) {
	cfg := LoaderConfig{BatchSize: 16, NumClasses: 5, Shuffle: true, Seed: 3, Prefetch: 2, Workers: 8}
	epochs := func() [][]Batch {
		ds := NewRandomStream(64, tensor.Shape{1, 8, 8}, 5, 11)
		l, err := NewLoader(ds, cfg, logs.NewTestingLog(t))
		require.NoError(t, err)
		var out [][]Batch
		for range 2 {
			_, batches := collectIndices(t, l)
			out = append(out, batches)
		}
		return out
	}

	want := epochs()
	for range 5 {
		assert.Equal(t, want, epochs())
	}
	assert.NotEqual(t, want[0][0].Labels, want[1][0].Labels)
}

func TestBatchTensors(t *testing.T) {
	ds := &fixedDataset{n: 3, shape: tensor.Shape{1, 2, 2}, numClasses: 3, badClass: -1}
	l, err := NewLoader(ds, LoaderConfig{BatchSize: 3, NumClasses: 3}, logs.NewTestingLog(t))
	require.NoError(t, err)
	_, batches := collectIndices(t, l)
	require.Len(t, batches, 1)

	images, boxes, labels, err := BatchTensors(batches[0], stubBackend{})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 1, 2, 2}, images.Shape())
	assert.Equal(t, tensor.Shape{3, 4}, boxes.Shape())
	assert.Equal(t, []int32{0, 1, 2}, labels.Data())
}

// stubBackend satisfies tensor.Backend for tests that only create tensors.
type stubBackend struct{ tensor.Backend }

func (stubBackend) Device() tensor.Device { return tensor.CPU }
func (stubBackend) Name() string          { return "stub" }
