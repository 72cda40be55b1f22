package ml

import (
	"errors"
	"math"
	"testing"
)

func sampleEncoders(t *testing.T) Encoders {
	t.Helper()
	crop, err := BuildVocabulary([]string{"Wheat", " rice ", "Maize", "RICE"})
	if err != nil {
		t.Fatalf("crop vocabulary: %v", err)
	}
	region, err := BuildVocabulary([]string{"Punjab", "Kerala"})
	if err != nil {
		t.Fatalf("region vocabulary: %v", err)
	}
	month, err := BuildVocabulary([]string{"June", "July"})
	if err != nil {
		t.Fatalf("month vocabulary: %v", err)
	}
	return Encoders{Crop: crop, Region: region, Month: month}
}

func TestVocabularyRoundTrip(t *testing.T) {
	vocab, err := BuildVocabulary([]string{"Wheat", " rice ", "Maize", "RICE", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"maize", "rice", "wheat"}
	if got := vocab.Classes(); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for _, raw := range []string{"Maize", "  RICE", "wheat "} {
		idx, ok := vocab.Encode(raw)
		if !ok {
			t.Fatalf("expected %q to encode", raw)
		}
		decoded, ok := vocab.Decode(idx)
		if !ok || decoded != Normalize(raw) {
			t.Fatalf("round trip of %q gave %q", raw, decoded)
		}
	}
	if _, ok := vocab.Encode("barley"); ok {
		t.Fatalf("expected unseen value to miss")
	}
	if _, ok := vocab.Decode(3); ok {
		t.Fatalf("expected out of range index to miss")
	}
}

func TestVocabularyIndependentOfInputOrder(t *testing.T) {
	a, err := BuildVocabulary([]string{"b", "c", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := BuildVocabulary([]string{"A", "c", "B", "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected equal vocabularies, got %v and %v", a.Classes(), b.Classes())
	}
}

func TestNewVocabularyRejectsUnnormalized(t *testing.T) {
	if _, err := NewVocabulary([]string{"Rice"}); err == nil {
		t.Fatalf("expected error for unnormalized class")
	}
	if _, err := NewVocabulary([]string{"rice", "rice"}); err == nil {
		t.Fatalf("expected error for duplicate class")
	}
}

func TestAssembleFeaturesDeterministic(t *testing.T) {
	enc := sampleEncoders(t)
	in := Input{
		Measurements: Measurements{Nitrogen: 50, Phosphorus: 30, Potassium: 40, Temperature: 25, Humidity: 65, PH: 6.5, Moisture: 50},
		Categories:   Categories{Crop: " Rice", Region: "PUNJAB", Month: "june"},
	}
	first, err := AssembleFeatures(in, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := AssembleFeatures(in, enc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != NumFeatures {
		t.Fatalf("expected %d features, got %d", NumFeatures, len(first))
	}
	for i := range first {
		if math.Float64bits(first[i]) != math.Float64bits(second[i]) {
			t.Fatalf("feature %d differs between runs", i)
		}
	}
	want := []float64{50, 30, 40, 25, 65, 6.5, 50, 1, 1, 1}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("feature %d: expected %v, got %v", i, want[i], first[i])
		}
	}
}

func TestAssembleFeaturesUnknownCategory(t *testing.T) {
	in := riceInput()
	in.Crop = "Unobtainium"
	_, err := AssembleFeatures(in, sampleEncoders(t))
	var unknown *UnknownCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected unknown category error, got %v", err)
	}
	if unknown.Field != FieldCrop || unknown.Value != "Unobtainium" {
		t.Fatalf("unexpected error detail: %+v", unknown)
	}
}

func TestAssembleFeaturesMissingCategory(t *testing.T) {
	in := riceInput()
	in.Month = "  "
	_, err := AssembleFeatures(in, sampleEncoders(t))
	if Kind(err) != KindInvalidInput || Field(err) != FieldMonth {
		t.Fatalf("expected invalid month, got %v", err)
	}
}

func TestValidateRangesBoundaries(t *testing.T) {
	for _, ph := range []float64{4.0, 9.0} {
		m := riceInput().Measurements
		m.PH = ph
		if err := ValidateRanges(m); err != nil {
			t.Fatalf("ph %v should be accepted: %v", ph, err)
		}
	}
	for _, ph := range []float64{3.9, 9.1} {
		m := riceInput().Measurements
		m.PH = ph
		err := ValidateRanges(m)
		var outOfRange *OutOfRangeError
		if !errors.As(err, &outOfRange) {
			t.Fatalf("ph %v should be rejected, got %v", ph, err)
		}
		if outOfRange.Field != FieldPH || outOfRange.Min != 4.0 || outOfRange.Max != 9.0 {
			t.Fatalf("unexpected error detail: %+v", outOfRange)
		}
	}
}

func TestValidateRangesEveryField(t *testing.T) {
	cases := []struct {
		field string
		set   func(*Measurements, float64)
	}{
		{FieldNitrogen, func(m *Measurements, v float64) { m.Nitrogen = v }},
		{FieldPhosphorus, func(m *Measurements, v float64) { m.Phosphorus = v }},
		{FieldPotassium, func(m *Measurements, v float64) { m.Potassium = v }},
		{FieldTemperature, func(m *Measurements, v float64) { m.Temperature = v }},
		{FieldHumidity, func(m *Measurements, v float64) { m.Humidity = v }},
		{FieldPH, func(m *Measurements, v float64) { m.PH = v }},
		{FieldMoisture, func(m *Measurements, v float64) { m.Moisture = v }},
	}
	bounds := MeasurementBounds()
	for _, tc := range cases {
		b := bounds[tc.field]
		for _, v := range []float64{b.Min, b.Max} {
			m := riceInput().Measurements
			tc.set(&m, v)
			if err := ValidateRanges(m); err != nil {
				t.Fatalf("%s=%v should be accepted: %v", tc.field, v, err)
			}
		}
		for _, v := range []float64{b.Min - 1, b.Max + 1, math.NaN()} {
			m := riceInput().Measurements
			tc.set(&m, v)
			err := ValidateRanges(m)
			if Kind(err) != KindOutOfRange || Field(err) != tc.field {
				t.Fatalf("%s=%v: expected out of range on %s, got %v", tc.field, v, tc.field, err)
			}
		}
	}
}

func TestArgMax(t *testing.T) {
	cases := []struct {
		probs []float64
		want  int
		ok    bool
	}{
		{[]float64{0.1, 0.7, 0.2}, 1, true},
		{[]float64{0.4, 0.4, 0.2}, 0, true},
		{[]float64{0.2, 0.4, 0.4}, 1, true},
		{[]float64{math.NaN(), 0.3, 0.3}, 1, true},
		{[]float64{math.NaN()}, -1, false},
		{nil, -1, false},
	}
	for _, tc := range cases {
		got, ok := ArgMax(tc.probs)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ArgMax(%v) = %d,%v; expected %d,%v", tc.probs, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCategorize(t *testing.T) {
	cases := map[string]string{
		"NPK 10:26:26":           CategoryComplex,
		"DAP":                    CategoryComplex,
		"Urea":                   CategoryNitrogen,
		"Ammonium Sulphate":      CategoryNitrogen,
		"Single Super Phosphate": CategoryPhosphatic,
		"Muriate of Potash":      CategoryPotassic,
		"Zinc Sulphate":          CategoryMicronutrient,
		"Vermicompost":           CategoryOrganic,
		"Farm Yard Manure":       CategoryOrganic,
		"Gypsum":                 CategorySpecial,
		"urea":                   CategoryNitrogen,
		"zinc sulphate":          CategoryMicronutrient,
	}
	for name, want := range cases {
		if got := Categorize(name); got != want {
			t.Fatalf("Categorize(%q) = %q, expected %q", name, got, want)
		}
	}
}
