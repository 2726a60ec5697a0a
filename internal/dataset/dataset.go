// Package dataset turns labeled image folders (or synthetic generators) into
// samples and batches for the detector.
//
// A split directory holds images/ and labels/ side by side; every image
// stem.ext pairs with labels/stem.txt holding one YOLO line
// "class_id x_center y_center width height".
package dataset

import "github.com/born-ml/boxnet/internal/tensor"

// Sample is one preprocessed training example.
type Sample struct {
	// Image holds C*H*W planar pixels in [0, 1].
	Image   []float32
	ClassID int
	Box     [4]float32
}

// Dataset is a fixed-size, randomly indexable collection of samples.
// Get must be safe for concurrent use.
type Dataset interface {
	// Len returns the number of samples.
	Len() int
	// Get returns the sample at index, 0 <= index < Len().
	Get(index int) (Sample, error)
	// Shape returns the per-sample image shape [C, H, W].
	Shape() tensor.Shape
}
