package ml

import (
	"fmt"
	"math"
)

const (
	FieldNitrogen    = "N"
	FieldPhosphorus  = "P"
	FieldPotassium   = "K"
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
	FieldPH          = "ph"
	FieldMoisture    = "moisture"
	FieldCrop        = "crop"
	FieldRegion      = "region"
	FieldMonth       = "month"
)

// NumFeatures is the dimensionality every classifier in a bundle is trained on.
const NumFeatures = 10

// Measurements holds the continuous inputs of one example.
type Measurements struct {
	Nitrogen    float64
	Phosphorus  float64
	Potassium   float64
	Temperature float64
	Humidity    float64
	PH          float64
	Moisture    float64
}

// Categories holds the raw categorical inputs of one example.
type Categories struct {
	Crop   string
	Region string
	Month  string
}

// Input is one fully typed inference or training example.
type Input struct {
	Measurements
	Categories
}

// Encoders bundles the three frozen input vocabularies.
type Encoders struct {
	Crop   *Vocabulary
	Region *Vocabulary
	Month  *Vocabulary
}

// FeatureNames lists the feature vector dimensions in order: seven
// measurements followed by the crop, region and month indices.
func FeatureNames() []string {
	return []string{
		FieldNitrogen,
		FieldPhosphorus,
		FieldPotassium,
		FieldTemperature,
		FieldHumidity,
		FieldPH,
		FieldMoisture,
		FieldCrop,
		FieldRegion,
		FieldMonth,
	}
}

type namedValue struct {
	name  string
	value float64
}

func (m Measurements) named() []namedValue {
	return []namedValue{
		{FieldNitrogen, m.Nitrogen},
		{FieldPhosphorus, m.Phosphorus},
		{FieldPotassium, m.Potassium},
		{FieldTemperature, m.Temperature},
		{FieldHumidity, m.Humidity},
		{FieldPH, m.PH},
		{FieldMoisture, m.Moisture},
	}
}

// AssembleFeatures builds the unscaled feature vector for in. Every
// categorical value must exist in its vocabulary.
func AssembleFeatures(in Input, enc Encoders) ([]float64, error) {
	if enc.Crop == nil || enc.Region == nil || enc.Month == nil {
		return nil, mismatch("encoders", "categorical vocabularies not loaded")
	}

	vector := make([]float64, 0, NumFeatures)
	for _, m := range in.Measurements.named() {
		if math.IsNaN(m.value) || math.IsInf(m.value, 0) {
			return nil, &InvalidInputError{Field: m.name, Reason: "must be a finite number"}
		}
		vector = append(vector, m.value)
	}

	categorical := []struct {
		name  string
		value string
		vocab *Vocabulary
	}{
		{FieldCrop, in.Crop, enc.Crop},
		{FieldRegion, in.Region, enc.Region},
		{FieldMonth, in.Month, enc.Month},
	}
	for _, c := range categorical {
		if Normalize(c.value) == "" {
			return nil, &InvalidInputError{Field: c.name, Reason: "is required"}
		}
		idx, ok := c.vocab.Encode(c.value)
		if !ok {
			return nil, &UnknownCategoryError{Field: c.name, Value: c.value}
		}
		vector = append(vector, float64(idx))
	}

	if len(vector) != NumFeatures {
		return nil, fmt.Errorf("assembled %d features, want %d", len(vector), NumFeatures)
	}
	return vector, nil
}
