package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"agridash/config"
	"agridash/db"
	"agridash/logging"
	"agridash/ml"
	"go.uber.org/zap"
)

func main() {
	defaults := ml.DefaultTrainOptions()

	dataPath := flag.String("data", "fertilizer_recommendation.csv", "training dataset (CSV)")
	outDir := flag.String("out", "artifacts", "artifact bundle output directory")
	modelType := flag.String("model_type", defaults.ModelType, "classifier backend: mlp or decision_tree")
	hidden := flag.String("hidden", joinInts(defaults.MLP.Hidden), "comma separated hidden layer widths")
	epochs := flag.Int("epochs", defaults.MLP.Epochs, "maximum training epochs")
	batchSize := flag.Int("batch_size", defaults.MLP.BatchSize, "mini-batch size")
	learningRate := flag.Float64("learning_rate", defaults.MLP.LearningRate, "Adam learning rate")
	patience := flag.Int("patience", defaults.MLP.Patience, "early stopping patience in epochs")
	maxDepth := flag.Int("max_depth", defaults.MaxDepth, "max tree depth")
	testRatio := flag.Float64("test_ratio", defaults.TestRatio, "share of rows held out for validation")
	seed := flag.Int64("seed", defaults.Seed, "random seed for the split and weight init")
	dbPath := flag.String("db", "", "record the run in this SQLite database")
	logLevel := flag.String("log_level", "info", "log level")
	flag.Parse()

	logCfg := config.Default().Log
	logCfg.Level = *logLevel
	logCfg.Encoding = "console"
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	layers, err := parseInts(*hidden)
	if err != nil {
		logger.Fatal("invalid -hidden", zap.Error(err))
	}

	opts := ml.TrainOptions{
		ModelType: *modelType,
		MLP: ml.MLPConfig{
			Hidden:       layers,
			Epochs:       *epochs,
			BatchSize:    *batchSize,
			LearningRate: *learningRate,
			Patience:     *patience,
			Seed:         *seed,
		},
		MaxDepth:  *maxDepth,
		TestRatio: *testRatio,
		Seed:      *seed,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *dataPath, *outDir, *dbPath, opts); err != nil {
		logger.Fatal("training failed", zap.String("kind", string(ml.Kind(err))), zap.Error(err))
	}
}

func run(ctx context.Context, logger *zap.Logger, dataPath, outDir, dbPath string, opts ml.TrainOptions) error {
	ds, err := ml.LoadDataset(dataPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	logger.Info("dataset loaded", zap.String("path", dataPath), zap.Int("rows", len(ds.Examples)))

	result, err := ml.Train(ctx, ds, opts)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	logger.Info("model trained",
		zap.String("model_type", opts.ModelType),
		zap.Float64("accuracy", result.Accuracy),
		zap.Int("train_rows", result.TrainRows),
		zap.Int("val_rows", result.ValRows),
		zap.Int("classes", result.Bundle.Fertilizer.Size()),
	)

	if err := ml.SaveBundle(result.Bundle, outDir); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	logger.Info("artifact bundle saved", zap.String("dir", outDir), zap.String("bundle_id", result.Bundle.Manifest.BundleID))

	if dbPath == "" {
		return nil
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	if _, err := store.SaveTrainingLog(ctx, db.TrainingLog{
		BundleID:    result.Bundle.Manifest.BundleID,
		ModelName:   result.Bundle.Manifest.ModelType,
		Accuracy:    result.Accuracy,
		TrainRows:   result.TrainRows,
		ValRows:     result.ValRows,
		ArtifactDir: outDir,
	}); err != nil {
		return fmt.Errorf("record training run: %w", err)
	}
	return nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("layer width %q must be a positive integer", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("at least one hidden layer is required")
	}
	return out, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
