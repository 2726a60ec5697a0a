package infer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/born-ml/boxnet/internal/dataset"
	"github.com/born-ml/boxnet/internal/detector"
	"github.com/born-ml/boxnet/internal/tensor"
)

// BenchResult reports forward-pass throughput.
type BenchResult struct {
	Batches int
	Samples int
	Elapsed time.Duration
	// FPS is samples per second of wall-clock time.
	FPS float64
}

func (r BenchResult) String() string {
	return fmt.Sprintf("%d samples in %d batches, %v, %.1f images/sec", r.Samples, r.Batches, r.Elapsed.Round(time.Millisecond), r.FPS)
}

var errBenchDone = errors.New("benchmark batch limit reached")

// Benchmark times evaluation-mode forward passes over at most maxBatches
// batches from loader (all batches when maxBatches <= 0). Batch loading is
// included in the wall-clock time. Model parameters are not modified.
func Benchmark[B tensor.Backend](ctx context.Context, model *detector.BoxNet[B], loader *dataset.Loader, maxBatches int) (BenchResult, error) {
	var res BenchResult
	backend := model.Backend()

	start := time.Now()
	err := loader.Epoch(ctx, func(batch dataset.Batch) error {
		images, _, _, err := dataset.BatchTensors(batch, backend)
		if err != nil {
			return err
		}
		withoutGrad(backend, func() {
			_, _, err = model.Forward(detector.ModeEval, images)
		})
		if err != nil {
			return err
		}
		res.Batches++
		res.Samples += batch.Size
		if maxBatches > 0 && res.Batches >= maxBatches {
			return errBenchDone
		}
		return nil
	})
	res.Elapsed = time.Since(start)
	if err != nil && !errors.Is(err, errBenchDone) {
		return BenchResult{}, err
	}

	if secs := res.Elapsed.Seconds(); secs > 0 {
		res.FPS = float64(res.Samples) / secs
	}
	return res, nil
}

// Host describes the machine a benchmark ran on.
type Host struct {
	CPU           string
	PhysicalCores int
	LogicalCores  int
	TotalMemory   uint64
	OS            string
	Arch          string
}

func (h Host) String() string {
	return fmt.Sprintf("%s (%d cores, %d threads), %.1f GiB RAM, %s/%s",
		h.CPU, h.PhysicalCores, h.LogicalCores, float64(h.TotalMemory)/(1<<30), h.OS, h.Arch)
}

// HostInfo collects CPU and memory details. Fields that cannot be read are
// left zero.
func HostInfo() Host {
	h := Host{
		CPU:           cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if h.CPU == "" {
		h.CPU = "unknown CPU"
	}
	if h.LogicalCores == 0 {
		h.LogicalCores = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.TotalMemory = vm.Total
	}
	return h
}
