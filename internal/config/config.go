// Package config loads the strongly typed run settings from a YAML document.
//
// Settings are decoded once at process start, validated, and then passed by
// value into every constructor. Nothing reads configuration lazily.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/boxnet/internal/tensor"
)

var (
	// ErrKeyMissing is returned when a required key is absent.
	ErrKeyMissing = errors.New("required config key missing")
	// ErrInvalid is returned when a value is present but out of range.
	ErrInvalid = errors.New("invalid config value")
)

// MinInputSize is the smallest accepted input height and width. The model
// halves both twice with 2x2 pooling.
const MinInputSize = 4

// Synthetic dataset variants.
const (
	// SyntheticFixed materializes every sample once; epochs repeat them.
	SyntheticFixed = "fixed"
	// SyntheticStream draws a fresh sample on every read.
	SyntheticStream = "stream"
)

// Settings is the complete, validated run configuration.
type Settings struct {
	Model   ModelSettings
	Data    DataSettings
	Runtime RuntimeSettings
	// Classes holds optional display names, indexed by class id.
	Classes []string
}

// ModelSettings describes the network input and training hyperparameters.
type ModelSettings struct {
	InputShape   tensor.Shape // [C, H, W]
	NumClasses   int
	BatchSize    int
	Epochs       int
	LearningRate float32
	Seed         int64
}

// DataSettings selects the dataset source.
type DataSettings struct {
	// Root contains {train,valid,test}/{images,labels}.
	Root      string
	Synthetic bool
	// SyntheticMode selects the synthetic variant: SyntheticFixed or
	// SyntheticStream.
	SyntheticMode string
	TrainSamples  int
	ValidSamples  int
	// Prefetch is the number of batches assembled ahead of the consumer.
	Prefetch int
}

// RuntimeSettings holds the execution target, resolved once at load.
type RuntimeSettings struct {
	Device tensor.Device
	// Workers bounds kernel parallelism. 0 means one per CPU.
	Workers int
}

// fileSettings mirrors the YAML document. Pointers distinguish absent keys
// from zero values.
type fileSettings struct {
	Model struct {
		InputShape   []int    `yaml:"input_shape"`
		NumClasses   *int     `yaml:"num_classes"`
		BatchSize    *int     `yaml:"batch_size"`
		Epochs       *int     `yaml:"epochs"`
		LearningRate *float64 `yaml:"learning_rate"`
		Seed         *int64   `yaml:"seed"`
	} `yaml:"model"`
	Data struct {
		Root          *string `yaml:"root"`
		Synthetic     bool    `yaml:"synthetic"`
		SyntheticMode *string `yaml:"synthetic_mode"`
		TrainSamples  *int    `yaml:"train_samples"`
		ValidSamples  *int    `yaml:"valid_samples"`
		Prefetch      *int    `yaml:"prefetch"`
	} `yaml:"data"`
	Runtime struct {
		Device  string `yaml:"device"`
		Workers *int   `yaml:"workers"`
	} `yaml:"runtime"`
	Classes []string `yaml:"classes"`
}

// Default returns settings with every optional field at its default.
// InputShape and NumClasses have no default and are left empty.
func Default() Settings {
	return Settings{
		Model: ModelSettings{
			BatchSize:    32,
			Epochs:       10,
			LearningRate: 0.001,
			Seed:         1,
		},
		Data: DataSettings{
			Root:          "data",
			SyntheticMode: SyntheticFixed,
			TrainSamples:  100,
			ValidSamples:  20,
			Prefetch:      2,
		},
		Runtime: RuntimeSettings{
			Device: tensor.CPU,
		},
	}
}

// Load reads and validates the settings file at path.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML settings document. Unknown keys are
// rejected.
func Parse(data []byte) (Settings, error) {
	var raw fileSettings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}

	s := Default()

	if raw.Model.InputShape == nil {
		return Settings{}, missing("model.input_shape")
	}
	s.Model.InputShape = tensor.Shape(raw.Model.InputShape)
	if raw.Model.NumClasses == nil {
		return Settings{}, missing("model.num_classes")
	}
	s.Model.NumClasses = *raw.Model.NumClasses

	setInt(&s.Model.BatchSize, raw.Model.BatchSize)
	setInt(&s.Model.Epochs, raw.Model.Epochs)
	if raw.Model.LearningRate != nil {
		lr := *raw.Model.LearningRate
		if math.IsNaN(lr) || math.IsInf(lr, 0) || lr <= 0 || lr > math.MaxFloat32 {
			return Settings{}, invalid("model.learning_rate", "must be a positive finite number, got %v", lr)
		}
		s.Model.LearningRate = float32(lr)
	}
	if raw.Model.Seed != nil {
		s.Model.Seed = *raw.Model.Seed
	}

	if raw.Data.Root != nil {
		s.Data.Root = *raw.Data.Root
	}
	s.Data.Synthetic = raw.Data.Synthetic
	if raw.Data.SyntheticMode != nil {
		s.Data.SyntheticMode = *raw.Data.SyntheticMode
	}
	setInt(&s.Data.TrainSamples, raw.Data.TrainSamples)
	setInt(&s.Data.ValidSamples, raw.Data.ValidSamples)
	setInt(&s.Data.Prefetch, raw.Data.Prefetch)

	device, err := tensor.ParseDevice(raw.Runtime.Device)
	if err != nil {
		return Settings{}, fmt.Errorf("%w: runtime.device: %w", ErrInvalid, err)
	}
	s.Runtime.Device = device
	setInt(&s.Runtime.Workers, raw.Runtime.Workers)

	s.Classes = raw.Classes

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks every field range. It is called by Parse and should be
// called on settings built in code.
func (s Settings) Validate() error {
	m := s.Model
	if len(m.InputShape) == 0 {
		return missing("model.input_shape")
	}
	if len(m.InputShape) != 3 {
		return invalid("model.input_shape", "expected [C, H, W], got %v", []int(m.InputShape))
	}
	if err := m.InputShape.Validate(); err != nil {
		return invalid("model.input_shape", "%v", err)
	}
	if c := m.InputShape[0]; c != 1 && c != 3 {
		return invalid("model.input_shape", "channels must be 1 or 3, got %d", c)
	}
	if h, w := m.InputShape[1], m.InputShape[2]; h < MinInputSize || w < MinInputSize {
		return invalid("model.input_shape", "height and width must be >= %d, got %dx%d", MinInputSize, h, w)
	}
	if m.NumClasses <= 0 {
		return invalid("model.num_classes", "must be > 0, got %d", m.NumClasses)
	}
	if m.BatchSize <= 0 {
		return invalid("model.batch_size", "must be > 0, got %d", m.BatchSize)
	}
	if m.Epochs <= 0 {
		return invalid("model.epochs", "must be > 0, got %d", m.Epochs)
	}
	if !(m.LearningRate > 0) || math.IsInf(float64(m.LearningRate), 0) {
		return invalid("model.learning_rate", "must be a positive finite number, got %v", m.LearningRate)
	}

	d := s.Data
	if d.SyntheticMode != SyntheticFixed && d.SyntheticMode != SyntheticStream {
		return invalid("data.synthetic_mode", "must be %q or %q, got %q", SyntheticFixed, SyntheticStream, d.SyntheticMode)
	}
	if d.Synthetic {
		if d.TrainSamples <= 0 {
			return invalid("data.train_samples", "must be > 0, got %d", d.TrainSamples)
		}
		if d.ValidSamples <= 0 {
			return invalid("data.valid_samples", "must be > 0, got %d", d.ValidSamples)
		}
	} else if d.Root == "" {
		return invalid("data.root", "must be set unless data.synthetic is true")
	}
	if d.Prefetch < 0 {
		return invalid("data.prefetch", "must be >= 0, got %d", d.Prefetch)
	}

	if s.Runtime.Workers < 0 {
		return invalid("runtime.workers", "must be >= 0, got %d", s.Runtime.Workers)
	}
	if len(s.Classes) != 0 && len(s.Classes) != m.NumClasses {
		return invalid("classes", "got %d names for %d classes", len(s.Classes), m.NumClasses)
	}
	return nil
}

// Channels returns C from the input shape.
func (m ModelSettings) Channels() int { return m.InputShape[0] }

// Height returns H from the input shape.
func (m ModelSettings) Height() int { return m.InputShape[1] }

// Width returns W from the input shape.
func (m ModelSettings) Width() int { return m.InputShape[2] }

// ClassName returns the display name for id, or "class_<id>" when no names
// were configured.
func (s Settings) ClassName(id int) string {
	if id >= 0 && id < len(s.Classes) {
		return s.Classes[id]
	}
	return fmt.Sprintf("class_%d", id)
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func missing(key string) error {
	return fmt.Errorf("%w: %s", ErrKeyMissing, key)
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, key, fmt.Sprintf(format, args...))
}
