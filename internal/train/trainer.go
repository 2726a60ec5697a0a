// Package train runs the joint classification and box regression training
// loop for a BoxNet.
package train

import (
	"context"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/logs"

	"github.com/born-ml/boxnet/internal/autodiff"
	"github.com/born-ml/boxnet/internal/config"
	"github.com/born-ml/boxnet/internal/dataset"
	"github.com/born-ml/boxnet/internal/detector"
	"github.com/born-ml/boxnet/internal/nn"
	"github.com/born-ml/boxnet/internal/optim"
	"github.com/born-ml/boxnet/internal/tensor"
)

// ErrNonFinite is returned when a training batch produces a NaN or infinite
// loss. The optimizer step for that batch is skipped.
var ErrNonFinite = errors.New("non-finite loss")

// EvalResult summarizes one evaluation epoch.
type EvalResult struct {
	// Loss is the mean combined loss over batches.
	Loss float32
	// Accuracy is 100 * correct / samples.
	Accuracy float32
	Samples  int
}

// EpochResult is the per-epoch report produced by Run.
type EpochResult struct {
	Epoch         int
	TrainLoss     float32
	ValidLoss     float32
	ValidAccuracy float32
}

// Trainer owns the optimizer for one model and drives training and
// evaluation epochs over dataset loaders.
type Trainer[B tensor.Backend] struct {
	model     *detector.BoxNet[*autodiff.AutodiffBackend[B]]
	backend   *autodiff.AutodiffBackend[B]
	objective *Objective[*autodiff.AutodiffBackend[B]]
	optimizer optim.Optimizer
	epochs    int
	log       logs.Log

	// OnEpoch, when set, is called after every epoch of Run.
	OnEpoch func(EpochResult)
}

// NewTrainer creates a Trainer using Adam with the configured learning rate.
func NewTrainer[B tensor.Backend](model *detector.BoxNet[*autodiff.AutodiffBackend[B]], settings config.Settings, log logs.Log) *Trainer[B] {
	backend := model.Backend()
	return &Trainer[B]{
		model:     model,
		backend:   backend,
		objective: NewObjective(backend),
		optimizer: optim.NewAdam(model.Parameters(), optim.AdamConfig{
			LR:    settings.Model.LearningRate,
			Betas: [2]float32{0.9, 0.999},
			Eps:   1e-8,
		}),
		epochs: settings.Model.Epochs,
		log:    log,
	}
}

// Model returns the model being trained.
func (t *Trainer[B]) Model() *detector.BoxNet[*autodiff.AutodiffBackend[B]] {
	return t.model
}

// TrainEpoch runs one pass over loader, updating parameters after every
// batch, and returns the mean loss over batches.
func (t *Trainer[B]) TrainEpoch(ctx context.Context, loader *dataset.Loader) (float32, error) {
	var sum float64
	batches := 0
	err := loader.Epoch(ctx, func(batch dataset.Batch) error {
		loss, err := t.trainStep(batch)
		if err != nil {
			return err
		}
		sum += float64(loss)
		batches++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if batches == 0 {
		return 0, nil
	}
	return float32(sum / float64(batches)), nil
}

func (t *Trainer[B]) trainStep(batch dataset.Batch) (float32, error) {
	images, boxes, labels, err := dataset.BatchTensors(batch, t.backend)
	if err != nil {
		return 0, err
	}

	tape := t.backend.Tape()
	t.optimizer.ZeroGrad()
	tape.Clear()
	tape.StartRecording()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	logits, predBoxes, err := t.model.Forward(detector.ModeTrain, images)
	if err != nil {
		return 0, err
	}
	loss := t.objective.Compute(logits, predBoxes, labels, boxes)

	value := loss.Total.Item()
	if math32.IsNaN(value) || math32.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: batch %v: class=%v box=%v", ErrNonFinite, batch.Indices, loss.Class.Item(), loss.Box.Item())
	}

	grads := t.backend.Backward(loss.Total.Raw())
	t.optimizer.Step(grads)
	return value, nil
}

// EvaluateEpoch runs one pass over loader without gradient tracking or
// parameter updates.
func (t *Trainer[B]) EvaluateEpoch(ctx context.Context, loader *dataset.Loader) (EvalResult, error) {
	var (
		sum     float64
		batches int
		correct int
		samples int
		err     error
	)
	t.backend.NoGrad(func() {
		err = loader.Epoch(ctx, func(batch dataset.Batch) error {
			images, boxes, labels, err := dataset.BatchTensors(batch, t.backend)
			if err != nil {
				return err
			}
			logits, predBoxes, err := t.model.Forward(detector.ModeEval, images)
			if err != nil {
				return err
			}
			loss := t.objective.Compute(logits, predBoxes, labels, boxes)

			sum += float64(loss.Total.Item())
			batches++
			correct += nn.CountCorrect(logits, labels)
			samples += batch.Size
			return nil
		})
	})
	if err != nil {
		return EvalResult{}, err
	}

	res := EvalResult{Samples: samples}
	if batches > 0 {
		res.Loss = float32(sum / float64(batches))
	}
	if samples > 0 {
		res.Accuracy = 100 * float32(correct) / float32(samples)
	}
	return res, nil
}

// Run alternates a training and an evaluation epoch for the configured
// number of epochs. The first error aborts the run.
func (t *Trainer[B]) Run(ctx context.Context, trainLoader, validLoader *dataset.Loader) ([]EpochResult, error) {
	t.log.Infof("Training %d parameters for %d epochs (%d train batches, %d valid batches)",
		t.model.NumParameters(), t.epochs, trainLoader.NumBatches(), validLoader.NumBatches())

	results := make([]EpochResult, 0, t.epochs)
	for epoch := 1; epoch <= t.epochs; epoch++ {
		trainLoss, err := t.TrainEpoch(ctx, trainLoader)
		if err != nil {
			return results, fmt.Errorf("epoch %d: train: %w", epoch, err)
		}
		eval, err := t.EvaluateEpoch(ctx, validLoader)
		if err != nil {
			return results, fmt.Errorf("epoch %d: eval: %w", epoch, err)
		}

		res := EpochResult{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			ValidLoss:     eval.Loss,
			ValidAccuracy: eval.Accuracy,
		}
		results = append(results, res)
		t.log.Infof("Epoch %d/%d: train_loss=%.4f valid_loss=%.4f valid_acc=%.2f%%",
			epoch, t.epochs, res.TrainLoss, res.ValidLoss, res.ValidAccuracy)
		if t.OnEpoch != nil {
			t.OnEpoch(res)
		}
	}
	return results, nil
}
