// Package main provides the boxnet CLI: train, evaluate, predict and
// benchmark a single-object classifier with box regression.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
)

const version = "v0.1.0"

const defaultConfig = "config.yaml"

func main() {
	parser := argparse.NewParser("boxnet", "Train and run a small CNN that predicts one class and one bounding box per image")

	trainCmd := parser.NewCommand("train", "Train on the train split, evaluating on the valid split after every epoch")
	trainConfig := trainCmd.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: defaultConfig})

	evalCmd := parser.NewCommand("eval", "Evaluate a freshly initialized model on the test split")
	evalConfig := evalCmd.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: defaultConfig})

	predictCmd := parser.NewCommand("predict", "Predict the class and box of a single image")
	predictConfig := predictCmd.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: defaultConfig})
	predictInput := predictCmd.String("i", "input", &argparse.Options{Help: "Input image file", Required: true})
	predictOutput := predictCmd.String("o", "output", &argparse.Options{Help: "Write a PNG with the predicted box drawn over the input", Default: ""})
	predictTrain := predictCmd.Flag("", "train", &argparse.Options{Help: "Train for the configured epochs before predicting", Default: false})

	benchCmd := parser.NewCommand("bench", "Measure forward-pass throughput on the valid split")
	benchConfig := benchCmd.String("c", "config", &argparse.Options{Help: "YAML configuration file", Default: defaultConfig})
	benchBatches := benchCmd.Int("n", "batches", &argparse.Options{Help: "Maximum number of batches (0 = whole split)", Default: 0})

	versionCmd := parser.NewCommand("version", "Show version")

	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	if versionCmd.Happened() {
		fmt.Printf("boxnet %s\n", version)
		return
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case trainCmd.Happened():
		err = runTrain(ctx, logger, *trainConfig)
	case evalCmd.Happened():
		err = runEval(ctx, logger, *evalConfig)
	case predictCmd.Happened():
		err = runPredict(ctx, logger, *predictConfig, *predictInput, *predictOutput, *predictTrain)
	case benchCmd.Happened():
		err = runBench(ctx, logger, *benchConfig, *benchBatches)
	}
	if err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
