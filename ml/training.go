package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
)

type TrainOptions struct {
	ModelType string
	MLP       MLPConfig
	MaxDepth  int
	// TestRatio is the share of rows held out for validation.
	TestRatio float64
	Seed      int64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		ModelType: ModelTypeMLP,
		MLP:       DefaultMLPConfig(),
		MaxDepth:  10,
		TestRatio: 0.2,
		Seed:      42,
	}
}

type TrainResult struct {
	Bundle    *Bundle
	Accuracy  float64
	TrainRows int
	ValRows   int
}

// Train fits vocabularies, scaler and classifier on ds and returns them as one
// bundle. Accuracy is measured on the held-out split, or on the training rows
// when nothing is held out.
func Train(ctx context.Context, ds *Dataset, opts TrainOptions) (*TrainResult, error) {
	if ds == nil || len(ds.Examples) == 0 {
		return nil, errors.New("dataset is empty")
	}
	if opts.TestRatio < 0 || opts.TestRatio >= 1 {
		return nil, fmt.Errorf("test ratio %v must be in [0,1)", opts.TestRatio)
	}
	if opts.ModelType == "" {
		opts.ModelType = ModelTypeMLP
	}

	crops := make([]string, len(ds.Examples))
	regions := make([]string, len(ds.Examples))
	months := make([]string, len(ds.Examples))
	fertilizers := make([]string, len(ds.Examples))
	for i, ex := range ds.Examples {
		crops[i] = ex.Crop
		regions[i] = ex.Region
		months[i] = ex.Month
		fertilizers[i] = ex.Fertilizer
	}
	enc, err := buildEncoders(crops, regions, months)
	if err != nil {
		return nil, err
	}
	target, err := BuildVocabulary(fertilizers)
	if err != nil {
		return nil, fmt.Errorf("fertilizer encoder: %w", err)
	}
	display := displayNames(target, fertilizers)

	features := make([][]float64, len(ds.Examples))
	labels := make([]int, len(ds.Examples))
	for i, ex := range ds.Examples {
		vector, err := AssembleFeatures(ex.Input, enc)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		features[i] = vector
		labels[i], _ = target.Encode(ex.Fertilizer)
	}

	scaler, err := FitScaler(features, FeatureNames())
	if err != nil {
		return nil, err
	}
	scaled, err := scaler.TransformAll(features)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trainX, trainY, valX, valY := splitDataset(scaled, labels, opts.TestRatio, opts.Seed)
	if len(trainX) == 0 {
		return nil, errors.New("no rows left for training after the validation split")
	}

	mlpConfig := opts.MLP
	if mlpConfig.Seed == 0 {
		mlpConfig.Seed = opts.Seed
	}
	model, err := NewTrainable(opts.ModelType, target.Size(), mlpConfig, opts.MaxDepth)
	if err != nil {
		return nil, err
	}
	if vt, ok := model.(ValidatingTrainer); ok {
		err = vt.TrainValidated(trainX, trainY, valX, valY)
	} else {
		err = model.Train(trainX, trainY)
	}
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", opts.ModelType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	evalX, evalY := valX, valY
	if len(evalX) == 0 {
		evalX, evalY = trainX, trainY
	}
	accuracy, err := evaluateAccuracy(model, evalX, evalY)
	if err != nil {
		return nil, err
	}

	return &TrainResult{
		Bundle:    NewBundle(opts.ModelType, enc, target, display, scaler, model),
		Accuracy:  accuracy,
		TrainRows: len(trainX),
		ValRows:   len(valX),
	}, nil
}

func buildEncoders(crops, regions, months []string) (Encoders, error) {
	crop, err := BuildVocabulary(crops)
	if err != nil {
		return Encoders{}, fmt.Errorf("crop encoder: %w", err)
	}
	region, err := BuildVocabulary(regions)
	if err != nil {
		return Encoders{}, fmt.Errorf("region encoder: %w", err)
	}
	month, err := BuildVocabulary(months)
	if err != nil {
		return Encoders{}, fmt.Errorf("month encoder: %w", err)
	}
	return Encoders{Crop: crop, Region: region, Month: month}, nil
}

// displayNames keeps the first spelling seen for every normalized class.
func displayNames(vocab *Vocabulary, raw []string) []string {
	display := vocab.Classes()
	seen := make([]bool, len(display))
	for _, name := range raw {
		idx, ok := vocab.Encode(name)
		if !ok || seen[idx] {
			continue
		}
		display[idx] = strings.TrimSpace(name)
		seen[idx] = true
	}
	return display
}

func splitDataset(features [][]float64, labels []int, testRatio float64, seed int64) ([][]float64, []int, [][]float64, []int) {
	n := len(features)
	valN := int(math.Ceil(float64(n) * testRatio))
	if testRatio == 0 {
		valN = 0
	}
	order := rand.New(rand.NewSource(seed)).Perm(n)

	trainX := make([][]float64, 0, n-valN)
	trainY := make([]int, 0, n-valN)
	valX := make([][]float64, 0, valN)
	valY := make([]int, 0, valN)
	for i, idx := range order {
		if i < valN {
			valX = append(valX, features[idx])
			valY = append(valY, labels[idx])
			continue
		}
		trainX = append(trainX, features[idx])
		trainY = append(trainY, labels[idx])
	}
	return trainX, trainY, valX, valY
}

func evaluateAccuracy(model Classifier, features [][]float64, labels []int) (float64, error) {
	if len(features) == 0 {
		return 0, errors.New("no rows to evaluate")
	}
	correct := 0
	for i, row := range features {
		probs, err := model.PredictProba(row)
		if err != nil {
			return 0, err
		}
		if idx, ok := ArgMax(probs); ok && idx == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features)), nil
}
