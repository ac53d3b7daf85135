package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/config"
	"github.com/nvr-ai/go-bev/dataset"
	"github.com/nvr-ai/go-bev/evaluation"
	"github.com/nvr-ai/go-bev/metrics"
	"github.com/nvr-ai/go-bev/models"
	"github.com/nvr-ai/go-bev/report"
)

func check(log logs.Log, err error) {
	if err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}
}

func main() {
	parser := argparse.NewParser("bev-eval", "Score a bird's-eye-view model on a labeled dataset")
	configFile := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file", Required: false})
	data := parser.String("d", "data", &argparse.Options{Help: "Dataset root (overrides dataset.root)", Required: false})
	batch := parser.Int("b", "batch", &argparse.Options{Help: "Batch size (overrides dataset.batch_size)", Required: false, Default: 0})
	seed := parser.Int("s", "seed", &argparse.Options{Help: "Batch order seed (overrides dataset.seed)", Required: false, Default: 0})
	out := parser.String("o", "out", &argparse.Options{Help: "Report directory (overrides report.dir)", Required: false})
	modelName := parser.String("m", "model", &argparse.Options{Help: "Model: onnx or background (overrides model.name)", Required: false})
	classIoU := parser.Flag("", "class-iou", &argparse.Options{Help: "Score boxes with per-class IoU instead of the complement IoU"})
	dump := parser.Flag("", "dump-config", &argparse.Options{Help: "Print the effective configuration and exit"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	log, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	cfg := config.Default()
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		check(log, err)
	}
	if *data != "" {
		cfg.Dataset.Root = *data
	}
	if *batch > 0 {
		cfg.Dataset.BatchSize = *batch
	}
	if *seed > 0 {
		cfg.Dataset.Seed = uint64(*seed)
	}
	if *out != "" {
		cfg.Report.Dir = *out
	}
	if *modelName != "" {
		cfg.Model.Name = models.Name(*modelName)
	}
	if *classIoU {
		cfg.Metrics.IoUMode = metrics.ClassIoU
	}
	check(log, cfg.Validate())

	if *dump {
		check(log, cfg.Write(os.Stdout))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	check(log, run(ctx, cfg, log))
}

func run(ctx context.Context, cfg config.Config, log logs.Log) error {
	ds, err := dataset.NewDirDataset(cfg.DatasetOptions(), log)
	if err != nil {
		return err
	}

	var rng *rand.Rand
	if cfg.Dataset.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Dataset.Seed, cfg.Dataset.Seed))
	}
	loader, err := dataset.NewLoader(ds, cfg.Dataset.BatchSize, cfg.Dataset.DropLast, rng, log)
	if err != nil {
		return err
	}
	defer loader.Close()

	model, err := models.NewModel(cfg.ModelArgs(), log)
	if err != nil {
		return err
	}
	if c, ok := model.(io.Closer); ok {
		defer c.Close()
	}

	evaluator, err := evaluation.NewEvaluator(cfg.Evaluation(), log)
	if err != nil {
		return err
	}
	writer, err := report.NewWriter(cfg.Report, log)
	if err != nil {
		return err
	}

	log.Infof("Evaluating %v model on %v samples in %v batches", cfg.Model.Name, ds.Len(), loader.Len())
	res, err := evaluator.Evaluate(ctx, model, loader)
	if err != nil {
		return err
	}

	summary, err := writer.Write(res)
	if err != nil {
		return err
	}
	fmt.Printf("Threat score %.4f (std %.4f, %d undefined), mean IoU %.4f over %d samples\n",
		summary.MeanThreatScore, summary.ThreatScoreStdDev, summary.UndefinedScores, summary.MeanIoU, summary.Samples)
	return nil
}
