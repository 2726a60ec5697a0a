package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/born-ml/boxnet/internal/config"
	"github.com/born-ml/boxnet/internal/tensor"
)

// Folder is a Dataset backed by an image directory and a parallel label
// directory.
type Folder struct {
	imageDir string
	labelDir string
	files    []string
	shape    tensor.Shape
}

// NewFolder enumerates the images in imageDir in lexicographic order.
// Files without a supported image extension are skipped. Labels are
// resolved lazily by Get.
func NewFolder(imageDir, labelDir string, settings config.Settings, log logs.Log) (*Folder, error) {
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: image directory %s", ErrNotFound, imageDir)
		}
		return nil, fmt.Errorf("failed to list %s: %w", imageDir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	slices.Sort(files)

	log.Infof("Dataset %s: %d images", imageDir, len(files))

	return &Folder{
		imageDir: imageDir,
		labelDir: labelDir,
		files:    files,
		shape:    settings.Model.InputShape.Clone(),
	}, nil
}

// OpenSplit opens root/<split>/images with labels from root/<split>/labels.
func OpenSplit(root, split string, settings config.Settings, log logs.Log) (*Folder, error) {
	dir := filepath.Join(root, split)
	return NewFolder(filepath.Join(dir, "images"), filepath.Join(dir, "labels"), settings, log)
}

// Len returns the number of enumerated image files.
func (f *Folder) Len() int {
	return len(f.files)
}

// Shape returns the configured [C, H, W].
func (f *Folder) Shape() tensor.Shape {
	return f.shape
}

// Files returns the sorted image file names.
func (f *Folder) Files() []string {
	return slices.Clone(f.files)
}

// LabelPath returns the label file expected for the image at index.
func (f *Folder) LabelPath(index int) string {
	name := f.files[index]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(f.labelDir, stem+".txt")
}

// Get loads, preprocesses and labels the image at index.
func (f *Folder) Get(index int) (Sample, error) {
	if index < 0 || index >= len(f.files) {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", index, len(f.files))
	}

	label, err := ReadLabelFile(f.LabelPath(index))
	if err != nil {
		return Sample{}, err
	}

	pixels, err := LoadImage(filepath.Join(f.imageDir, f.files[index]), f.shape)
	if err != nil {
		return Sample{}, err
	}

	return Sample{Image: pixels, ClassID: label.ClassID, Box: label.Box}, nil
}
