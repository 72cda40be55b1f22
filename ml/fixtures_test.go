package ml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// fertilizerFor is the rule the synthetic data follows, so small models can
// learn it exactly.
func fertilizerFor(n, p float64) string {
	switch {
	case n < 80:
		return "Urea"
	case p < 60:
		return "DAP"
	default:
		return "NPK 10:26:26"
	}
}

func sampleDataset() *Dataset {
	crops := []string{"Rice", "Wheat", "Maize"}
	regions := []string{"Punjab", "Kerala"}
	months := []string{"June", "July", "October"}
	ds := &Dataset{Columns: RequiredColumns()}
	i := 0
	for n := 20.0; n <= 180; n += 20 {
		for p := 20.0; p <= 140; p += 40 {
			ex := Example{
				Input: Input{
					Measurements: Measurements{
						Nitrogen:    n,
						Phosphorus:  p,
						Potassium:   40 + float64(i%5)*10,
						Temperature: 20 + float64(i%4)*3,
						Humidity:    50 + float64(i%6)*5,
						PH:          5.5 + float64(i%5)*0.4,
						Moisture:    30 + float64(i%7)*5,
					},
					Categories: Categories{
						Crop:   crops[i%len(crops)],
						Region: regions[i%len(regions)],
						Month:  months[i%len(months)],
					},
				},
				Fertilizer: fertilizerFor(n, p),
			}
			ds.Examples = append(ds.Examples, ex)
			i++
		}
	}
	return ds
}

func riceInput() Input {
	return Input{
		Measurements: Measurements{
			Nitrogen:    50,
			Phosphorus:  30,
			Potassium:   40,
			Temperature: 25,
			Humidity:    65,
			PH:          6.5,
			Moisture:    50,
		},
		Categories: Categories{Crop: "Rice", Region: "Punjab", Month: "June"},
	}
}

func trainTree(t *testing.T) *TrainResult {
	t.Helper()
	opts := DefaultTrainOptions()
	opts.ModelType = ModelTypeDecisionTree
	opts.TestRatio = 0
	result, err := Train(context.Background(), sampleDataset(), opts)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return result
}

func savedBundle(t *testing.T) (*TrainResult, string) {
	t.Helper()
	result := trainTree(t)
	dir := filepath.Join(t.TempDir(), "artifacts")
	if err := SaveBundle(result.Bundle, dir); err != nil {
		t.Fatalf("save bundle: %v", err)
	}
	return result, dir
}

// rewriteArtifact replaces an artifact and records its new checksum, so only
// the content-level checks can catch the change.
func rewriteArtifact(t *testing.T, dir, name string, payload []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	var manifest Manifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	sum, err := fileChecksum(path)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	manifest.Checksums[name] = sum
	if err := writeJSON(filepath.Join(dir, ManifestFile), manifest); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func datasetCSV(rows ...string) string {
	header := strings.Join(RequiredColumns(), ",")
	return fmt.Sprintf("%s\n%s\n", header, strings.Join(rows, "\n"))
}
