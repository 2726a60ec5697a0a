package dataset

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/born-ml/boxnet/internal/tensor"
)

// Synthetic is a fixed, materialized dataset of uniformly random samples.
// The same seed always produces the same samples.
type Synthetic struct {
	samples []Sample
	shape   tensor.Shape
}

// NewSynthetic generates n samples of the given [C, H, W] shape with
// class ids in [0, numClasses) and boxes in [0, 1).
func NewSynthetic(n int, shape tensor.Shape, numClasses int, seed int64) *Synthetic {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = randomSample(rng, shape, numClasses)
	}
	return &Synthetic{samples: samples, shape: shape.Clone()}
}

// Len returns the number of samples.
func (s *Synthetic) Len() int {
	return len(s.samples)
}

// Shape returns the [C, H, W] sample shape.
func (s *Synthetic) Shape() tensor.Shape {
	return s.shape
}

// Get returns the sample at index.
func (s *Synthetic) Get(index int) (Sample, error) {
	if index < 0 || index >= len(s.samples) {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", index, len(s.samples))
	}
	return s.samples[index], nil
}

// RandomStream reports a fixed length but draws a fresh random sample on
// every Get, so repeated reads of one index differ. The k-th read of an
// index is a pure function of (seed, index, k), which keeps concurrent
// collation reproducible.
type RandomStream struct {
	n          int
	shape      tensor.Shape
	numClasses int
	seed       int64

	mu    sync.Mutex
	draws []uint64
}

// NewRandomStream creates a RandomStream of length n.
func NewRandomStream(n int, shape tensor.Shape, numClasses int, seed int64) *RandomStream {
	return &RandomStream{
		n:          n,
		shape:      shape.Clone(),
		numClasses: numClasses,
		seed:       seed,
		draws:      make([]uint64, n),
	}
}

// Len returns the nominal length.
func (r *RandomStream) Len() int {
	return r.n
}

// Shape returns the [C, H, W] sample shape.
func (r *RandomStream) Shape() tensor.Shape {
	return r.shape
}

// Get draws a new random sample.
func (r *RandomStream) Get(index int) (Sample, error) {
	if index < 0 || index >= r.n {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", index, r.n)
	}
	r.mu.Lock()
	draw := r.draws[index]
	r.draws[index]++
	r.mu.Unlock()

	rng := rand.New(rand.NewSource(drawSeed(r.seed, uint64(index), draw)))
	return randomSample(rng, r.shape, r.numClasses), nil
}

// drawSeed mixes the stream seed, sample index and draw count with the
// splitmix64 finalizer.
func drawSeed(seed int64, index, draw uint64) int64 {
	h := uint64(seed)
	for _, v := range [2]uint64{index, draw} {
		h ^= v + 0x9e3779b97f4a7c15 + (h << 6) + (h >> 2)
		h ^= h >> 30
		h *= 0xbf58476d1ce4e5b9
		h ^= h >> 27
		h *= 0x94d049bb133111eb
		h ^= h >> 31
	}
	return int64(h)
}

func randomSample(rng *rand.Rand, shape tensor.Shape, numClasses int) Sample {
	pixels := make([]float32, shape.NumElements())
	for i := range pixels {
		pixels[i] = rng.Float32()
	}
	var box [4]float32
	for i := range box {
		box[i] = rng.Float32()
	}
	return Sample{
		Image:   pixels,
		ClassID: rng.Intn(numClasses),
		Box:     box,
	}
}
