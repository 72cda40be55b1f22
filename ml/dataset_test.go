package ml

import (
	"errors"
	"strings"
	"testing"
)

func TestReadDataset(t *testing.T) {
	csv := datasetCSV(
		"50,30,40,25,65,6.5,50, Rice ,Punjab,June,Urea",
		"120,60,80,30,70,7.2,40,Wheat,Kerala,July,DAP",
	)
	ds, err := ReadDataset(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Examples) != 2 {
		t.Fatalf("expected 2 examples, got %d", len(ds.Examples))
	}
	first := ds.Examples[0]
	if first.Nitrogen != 50 || first.PH != 6.5 || first.Crop != "Rice" || first.Fertilizer != "Urea" {
		t.Fatalf("unexpected first example %+v", first)
	}
}

func TestReadDatasetStripsBOM(t *testing.T) {
	csv := "\ufeff" + datasetCSV("50,30,40,25,65,6.5,50,Rice,Punjab,June,Urea")
	if _, err := ReadDataset(strings.NewReader(csv)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadDatasetMissingColumns(t *testing.T) {
	csv := "N,P,K,Crop,Region,Month,Fertilizer,Extra\n1,2,3,Rice,Punjab,June,Urea,x\n"
	_, err := ReadDataset(strings.NewReader(csv))
	var schema *DatasetSchemaError
	if !errors.As(err, &schema) {
		t.Fatalf("expected dataset schema error, got %v", err)
	}
	want := []string{ColumnTemperature, ColumnHumidity, ColumnPH, ColumnMoisture}
	if !equalStrings(schema.Missing, want) {
		t.Fatalf("expected missing %v, got %v", want, schema.Missing)
	}
	if len(schema.Present) != 8 || schema.Present[7] != "Extra" {
		t.Fatalf("expected present columns to be listed, got %v", schema.Present)
	}
	if !strings.Contains(err.Error(), "Soil_pH") {
		t.Fatalf("error should name the missing column: %v", err)
	}
}

func TestReadDatasetBadNumber(t *testing.T) {
	csv := datasetCSV(
		"50,30,40,25,65,6.5,50,Rice,Punjab,June,Urea",
		"abc,30,40,25,65,6.5,50,Rice,Punjab,June,Urea",
	)
	_, err := ReadDataset(strings.NewReader(csv))
	if err == nil || !strings.Contains(err.Error(), "row 3") || !strings.Contains(err.Error(), "column N") {
		t.Fatalf("expected error naming row 3 column N, got %v", err)
	}
}

func TestReadDatasetEmpty(t *testing.T) {
	_, err := ReadDataset(strings.NewReader(""))
	if Kind(err) != KindDatasetSchema {
		t.Fatalf("expected dataset schema error, got %v", err)
	}
	if _, err := ReadDataset(strings.NewReader(datasetCSV())); err == nil {
		t.Fatalf("expected error for header-only dataset")
	}
}
