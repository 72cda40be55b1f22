package ml

import (
	"errors"
	"fmt"
	"math"
)

// Scaler standardizes feature vectors with per-dimension mean and spread fitted
// once over the training matrix.
type Scaler struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// FitScaler computes the population mean and standard deviation of every
// column. Constant columns get a spread of 1 so they standardize to 0.
func FitScaler(features [][]float64, names []string) (*Scaler, error) {
	if len(features) == 0 {
		return nil, errors.New("features is empty")
	}
	dim := len(features[0])
	if len(names) != dim {
		return nil, fmt.Errorf("feature names/columns length mismatch: %d names, %d columns", len(names), dim)
	}

	mean := make([]float64, dim)
	for i, row := range features {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), dim)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(features))
	for j := range mean {
		mean[j] /= n
	}

	scale := make([]float64, dim)
	for _, row := range features {
		for j, v := range row {
			diff := v - mean[j]
			scale[j] += diff * diff
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / n)
		if scale[j] == 0 {
			scale[j] = 1
		}
	}

	return &Scaler{
		FeatureNames: append([]string(nil), names...),
		Mean:         mean,
		Scale:        scale,
	}, nil
}

func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Validate checks the scaler is internally consistent and matches the
// expected feature order.
func (s *Scaler) Validate(names []string) error {
	if len(s.Mean) != len(s.Scale) || len(s.Mean) != len(s.FeatureNames) {
		return mismatch("scaler", "mean/scale/feature_names lengths differ: %d/%d/%d",
			len(s.Mean), len(s.Scale), len(s.FeatureNames))
	}
	if len(names) != len(s.FeatureNames) {
		return mismatch("scaler", "scaler has %d dimensions, expected %d", len(s.FeatureNames), len(names))
	}
	for i, name := range names {
		if s.FeatureNames[i] != name {
			return mismatch("scaler", "dimension %d is %q, expected %q", i, s.FeatureNames[i], name)
		}
	}
	for i, v := range s.Scale {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return mismatch("scaler", "dimension %d has invalid spread %v", i, v)
		}
	}
	return nil
}

// Transform returns a standardized copy of vector.
func (s *Scaler) Transform(vector []float64) ([]float64, error) {
	if len(vector) != len(s.Mean) {
		return nil, mismatch("scaler", "input has %d dimensions, scaler has %d", len(vector), len(s.Mean))
	}
	scaled := make([]float64, len(vector))
	for i, v := range vector {
		scaled[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return scaled, nil
}

func (s *Scaler) TransformAll(features [][]float64) ([][]float64, error) {
	scaled := make([][]float64, len(features))
	for i, row := range features {
		v, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		scaled[i] = v
	}
	return scaled, nil
}
