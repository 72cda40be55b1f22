package ml

// Bounds is a closed interval of physically plausible values.
type Bounds struct {
	Min float64
	Max float64
}

func (b Bounds) Contains(v float64) bool {
	return b.Min <= v && v <= b.Max
}

// MeasurementBounds returns the accepted interval for each continuous field.
func MeasurementBounds() map[string]Bounds {
	return map[string]Bounds{
		FieldNitrogen:    {0, 300},
		FieldPhosphorus:  {0, 200},
		FieldPotassium:   {0, 250},
		FieldTemperature: {10, 50},
		FieldHumidity:    {0, 100},
		FieldPH:          {4.0, 9.0},
		FieldMoisture:    {0, 100},
	}
}

// ValidateRanges checks fields in feature order and fails on the first value
// outside its bounds. NaN never satisfies a bound and is reported as out of range.
func ValidateRanges(m Measurements) error {
	bounds := MeasurementBounds()
	for _, f := range m.named() {
		b := bounds[f.name]
		if !b.Contains(f.value) {
			return &OutOfRangeError{Field: f.name, Value: f.value, Min: b.Min, Max: b.Max}
		}
	}
	return nil
}
