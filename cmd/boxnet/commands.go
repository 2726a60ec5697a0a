package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/cyclopcam/logs"

	"github.com/born-ml/boxnet/autodiff"
	"github.com/born-ml/boxnet/backend/cpu"
	"github.com/born-ml/boxnet/internal/config"
	"github.com/born-ml/boxnet/internal/dataset"
	"github.com/born-ml/boxnet/internal/detector"
	"github.com/born-ml/boxnet/internal/infer"
	"github.com/born-ml/boxnet/internal/train"
)

type backend = *autodiff.Backend[*cpu.Backend]

// session is everything the subcommands share: settings, a model on the
// configured backend, and a trainer owning the optimizer for that model.
type session struct {
	settings config.Settings
	model    *detector.BoxNet[backend]
	trainer  *train.Trainer[*cpu.Backend]
	log      logs.Log
}

func newSession(log logs.Log, configPath string) (*session, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	b := autodiff.New(cpu.NewWithWorkers(settings.Runtime.Workers))
	model, err := detector.New(settings, b, rand.New(rand.NewSource(settings.Model.Seed)))
	if err != nil {
		return nil, err
	}
	log.Infof("Model on %s: %v", b.Name(), model)

	return &session{
		settings: settings,
		model:    model,
		trainer:  train.NewTrainer(model, settings, log),
		log:      log,
	}, nil
}

func (s *session) loader(split string, shuffle bool) (*dataset.Loader, error) {
	ds, err := dataset.Open(s.settings, split, s.log)
	if err != nil {
		return nil, err
	}
	return dataset.NewLoaderFor(ds, s.settings, shuffle, s.log)
}

func (s *session) train(ctx context.Context) error {
	trainLoader, err := s.loader(dataset.SplitTrain, true)
	if err != nil {
		return err
	}
	validLoader, err := s.loader(dataset.SplitValid, false)
	if err != nil {
		return err
	}
	_, err = s.trainer.Run(ctx, trainLoader, validLoader)
	return err
}

func runTrain(ctx context.Context, log logs.Log, configPath string) error {
	s, err := newSession(log, configPath)
	if err != nil {
		return err
	}
	return s.train(ctx)
}

func runEval(ctx context.Context, log logs.Log, configPath string) error {
	s, err := newSession(log, configPath)
	if err != nil {
		return err
	}
	testLoader, err := s.loader(dataset.SplitTest, false)
	if err != nil {
		return err
	}
	res, err := s.trainer.EvaluateEpoch(ctx, testLoader)
	if err != nil {
		return err
	}
	log.Infof("test: loss=%.4f acc=%.2f%% (%d samples)", res.Loss, res.Accuracy, res.Samples)
	return nil
}

func runPredict(ctx context.Context, log logs.Log, configPath, input, output string, trainFirst bool) error {
	s, err := newSession(log, configPath)
	if err != nil {
		return err
	}
	if trainFirst {
		if err := s.train(ctx); err != nil {
			return err
		}
	}

	pred, img, err := infer.NewPredictor(s.model).PredictFile(input)
	if err != nil {
		return err
	}

	probs := make([]string, len(pred.Probabilities))
	for i, p := range pred.Probabilities {
		probs[i] = fmt.Sprintf("%s=%.4f", s.settings.ClassName(i), p)
	}
	className := s.settings.ClassName(pred.Class)
	log.Infof("%s: class=%d (%s) probs=[%s] box=[%.4f %.4f %.4f %.4f]",
		input, pred.Class, className, strings.Join(probs, " "),
		pred.Box[0], pred.Box[1], pred.Box[2], pred.Box[3])

	if output != "" {
		if err := infer.Annotate(img, pred, className, output); err != nil {
			return err
		}
		log.Infof("Wrote %s", output)
	}
	return nil
}

func runBench(ctx context.Context, log logs.Log, configPath string, maxBatches int) error {
	s, err := newSession(log, configPath)
	if err != nil {
		return err
	}
	validLoader, err := s.loader(dataset.SplitValid, false)
	if err != nil {
		return err
	}

	log.Infof("Host: %v", infer.HostInfo())
	res, err := infer.Benchmark(ctx, s.model, validLoader, maxBatches)
	if err != nil {
		return err
	}
	log.Infof("Benchmark: %v", res)
	return nil
}
