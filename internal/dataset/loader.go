package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/cyclopcam/logs"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/boxnet/internal/tensor"
)

// Batch is a collated group of samples in dataset order.
type Batch struct {
	// Images holds [Size, C, H, W] pixels, row-major.
	Images []float32
	// Labels holds one class id per sample.
	Labels []int32
	// Boxes holds [Size, 4] box targets.
	Boxes []float32
	// Indices are the dataset indices the batch was built from.
	Indices []int
	Size    int
	// Shape is the per-sample [C, H, W].
	Shape tensor.Shape
}

// ImageShape returns [Size, C, H, W].
func (b Batch) ImageShape() tensor.Shape {
	return append(tensor.Shape{b.Size}, b.Shape...)
}

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize  int
	NumClasses int
	// Shuffle draws a new permutation for every epoch. Evaluation loaders
	// leave it off to keep a fixed order.
	Shuffle bool
	Seed    int64
	// Prefetch is how many batches may be assembled ahead of the consumer.
	// 0 loads each batch synchronously.
	Prefetch int
	// Workers bounds concurrent sample loads within a batch. 0 means one
	// per CPU.
	Workers int
}

// Loader groups a Dataset into batches.
type Loader struct {
	ds  Dataset
	cfg LoaderConfig
	log logs.Log
	rng *rand.Rand
}

// NewLoader creates a Loader over ds.
func NewLoader(ds Dataset, cfg LoaderConfig, log logs.Log) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", cfg.BatchSize)
	}
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("num classes must be > 0, got %d", cfg.NumClasses)
	}
	if cfg.Prefetch < 0 {
		return nil, fmt.Errorf("prefetch must be >= 0, got %d", cfg.Prefetch)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Loader{
		ds:  ds,
		cfg: cfg,
		log: log,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() Dataset {
	return l.ds
}

// BatchSize returns the configured batch size.
func (l *Loader) BatchSize() int {
	return l.cfg.BatchSize
}

// NumBatches returns the number of batches per epoch. The last batch may be
// smaller than BatchSize.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Epoch visits every batch once, in order, calling fn for each. The first
// error from loading or from fn stops the epoch and is returned.
//
// With Prefetch > 0 a background worker assembles upcoming batches while fn
// runs; fn still sees batches in order on the calling goroutine.
func (l *Loader) Epoch(ctx context.Context, fn func(Batch) error) error {
	order := l.order()
	numBatches := l.NumBatches()

	if l.cfg.Prefetch == 0 {
		for i := 0; i < numBatches; i++ {
			batch, err := l.collate(ctx, l.batchIndices(order, i))
			if err != nil {
				return err
			}
			if err := fn(batch); err != nil {
				return err
			}
		}
		return nil
	}

	l.log.Debugf("Loader: prefetching %d batches ahead", l.cfg.Prefetch)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan Batch, l.cfg.Prefetch)
	g.Go(func() error {
		defer close(batches)
		for i := 0; i < numBatches; i++ {
			batch, err := l.collate(gctx, l.batchIndices(order, i))
			if err != nil {
				return err
			}
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var consumeErr error
	for batch := range batches {
		if consumeErr != nil {
			continue
		}
		if consumeErr = fn(batch); consumeErr != nil {
			cancel()
		}
	}

	loadErr := g.Wait()
	if consumeErr != nil {
		return consumeErr
	}
	return loadErr
}

// order returns the sample visiting order for one epoch.
func (l *Loader) order() []int {
	n := l.ds.Len()
	if l.cfg.Shuffle {
		return l.rng.Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func (l *Loader) batchIndices(order []int, batch int) []int {
	start := batch * l.cfg.BatchSize
	end := min(start+l.cfg.BatchSize, len(order))
	return order[start:end]
}

// collate loads the samples at indices concurrently and stacks them in
// index order.
func (l *Loader) collate(ctx context.Context, indices []int) (Batch, error) {
	shape := l.ds.Shape()
	sampleSize := shape.NumElements()
	size := len(indices)

	batch := Batch{
		Images:  make([]float32, size*sampleSize),
		Labels:  make([]int32, size),
		Boxes:   make([]float32, size*4),
		Indices: append([]int(nil), indices...),
		Size:    size,
		Shape:   shape,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Workers)
	for slot, index := range indices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sample, err := l.ds.Get(index)
			if err != nil {
				return fmt.Errorf("sample %d: %w", index, err)
			}
			if len(sample.Image) != sampleSize {
				return fmt.Errorf("sample %d: image has %d values, want %d for shape %v", index, len(sample.Image), sampleSize, shape)
			}
			if sample.ClassID < 0 || sample.ClassID >= l.cfg.NumClasses {
				return fmt.Errorf("%w: sample %d: class_id %d outside [0, %d)", ErrParse, index, sample.ClassID, l.cfg.NumClasses)
			}
			copy(batch.Images[slot*sampleSize:], sample.Image)
			batch.Labels[slot] = int32(sample.ClassID)
			copy(batch.Boxes[slot*4:], sample.Box[:])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// BatchTensors converts a batch into images [N, C, H, W], box targets
// [N, 4] and labels [N] on backend.
func BatchTensors[B tensor.Backend](batch Batch, backend B) (images, boxes *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B], err error) {
	images, err = tensor.FromSlice(batch.Images, batch.ImageShape(), backend)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("images: %w", err)
	}
	boxes, err = tensor.FromSlice(batch.Boxes, tensor.Shape{batch.Size, 4}, backend)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("boxes: %w", err)
	}
	labels, err = tensor.FromSlice(batch.Labels, tensor.Shape{batch.Size}, backend)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("labels: %w", err)
	}
	return images, boxes, labels, nil
}
