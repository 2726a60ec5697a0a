package dataset

import (
	"fmt"

	"github.com/cyclopcam/logs"

	"github.com/born-ml/boxnet/internal/config"
)

// Split names under the data root.
const (
	SplitTrain = "train"
	SplitValid = "valid"
	SplitTest  = "test"
)

// Open returns the dataset for split as selected by settings: a folder
// under settings.Data.Root, or a seeded synthetic dataset of the configured
// variant.
func Open(settings config.Settings, split string, log logs.Log) (Dataset, error) {
	if !settings.Data.Synthetic {
		ds, err := OpenSplit(settings.Data.Root, split, settings, log)
		if err != nil {
			return nil, err
		}
		return ds, nil
	}

	m := settings.Model
	var n int
	var seed int64
	switch split {
	case SplitTrain:
		n, seed = settings.Data.TrainSamples, m.Seed+1
	case SplitValid:
		n, seed = settings.Data.ValidSamples, m.Seed+2
	case SplitTest:
		n, seed = settings.Data.ValidSamples, m.Seed+3
	default:
		return nil, fmt.Errorf("unknown split %q", split)
	}
	log.Infof("Dataset %s: %d %s synthetic samples of %v", split, n, settings.Data.SyntheticMode, m.InputShape)
	if settings.Data.SyntheticMode == config.SyntheticStream {
		return NewRandomStream(n, m.InputShape, m.NumClasses, seed), nil
	}
	return NewSynthetic(n, m.InputShape, m.NumClasses, seed), nil
}

// NewLoaderFor creates a loader over ds using the batch size, seed and
// prefetch depth from settings. Training loaders shuffle every epoch;
// evaluation loaders keep dataset order.
func NewLoaderFor(ds Dataset, settings config.Settings, shuffle bool, log logs.Log) (*Loader, error) {
	return NewLoader(ds, LoaderConfig{
		BatchSize:  settings.Model.BatchSize,
		NumClasses: settings.Model.NumClasses,
		Shuffle:    shuffle,
		Seed:       settings.Model.Seed,
		Prefetch:   settings.Data.Prefetch,
	}, log)
}
