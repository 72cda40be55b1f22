package ml

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadBundle(t *testing.T) {
	result, dir := savedBundle(t)

	loaded, err := LoadBundle(dir)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	if loaded.Manifest.BundleID != result.Bundle.Manifest.BundleID {
		t.Fatalf("bundle id changed: %s vs %s", loaded.Manifest.BundleID, result.Bundle.Manifest.BundleID)
	}
	if !loaded.Fertilizer.Equal(result.Bundle.Fertilizer) || !loaded.Encoders.Crop.Equal(result.Bundle.Encoders.Crop) {
		t.Fatalf("vocabularies changed across save/load")
	}
	if len(loaded.Manifest.Checksums) != 3 {
		t.Fatalf("expected 3 checksums, got %v", loaded.Manifest.Checksums)
	}

	want, err := NewPredictor(result.Bundle).Predict(riceInput())
	if err != nil {
		t.Fatalf("predict with trained bundle: %v", err)
	}
	got, err := NewPredictor(loaded).Predict(riceInput())
	if err != nil {
		t.Fatalf("predict with loaded bundle: %v", err)
	}
	if want != got {
		t.Fatalf("loaded bundle predicts %+v, trained bundle %+v", got, want)
	}
}

func TestSaveBundleReplacesPrevious(t *testing.T) {
	_, dir := savedBundle(t)
	second := trainTree(t)
	if err := SaveBundle(second.Bundle, dir); err != nil {
		t.Fatalf("second save: %v", err)
	}
	manifest, err := InspectBundle(dir)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if manifest.BundleID != second.Bundle.Manifest.BundleID {
		t.Fatalf("expected new bundle id %s, got %s", second.Bundle.Manifest.BundleID, manifest.BundleID)
	}
	entries, err := os.ReadDir(filepath.Dir(dir))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the bundle directory to remain, got %d entries", len(entries))
	}
}

func TestLoadBundlePartialPresence(t *testing.T) {
	for _, name := range []string{ManifestFile, EncodersFile, ScalerFile, "model.json"} {
		t.Run(name, func(t *testing.T) {
			_, dir := savedBundle(t)
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				t.Fatalf("remove: %v", err)
			}
			_, err := LoadBundle(dir)
			var mismatchErr *ArtifactMismatchError
			if !errors.As(err, &mismatchErr) {
				t.Fatalf("expected artifact mismatch without %s, got %v", name, err)
			}
		})
	}
}

func TestLoadBundleChecksumMismatch(t *testing.T) {
	_, dir := savedBundle(t)
	path := filepath.Join(dir, EncodersFile)
	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadBundle(dir); Kind(err) != KindArtifactMismatch {
		t.Fatalf("expected artifact mismatch, got %v", err)
	}
}

func TestLoadBundleScalerDimensionMismatch(t *testing.T) {
	result, dir := savedBundle(t)
	scaler := *result.Bundle.Scaler
	scaler.FeatureNames = scaler.FeatureNames[:NumFeatures-1]
	scaler.Mean = scaler.Mean[:NumFeatures-1]
	scaler.Scale = scaler.Scale[:NumFeatures-1]
	rewriteArtifact(t, dir, ScalerFile, mustJSON(t, scaler))

	_, err := LoadBundle(dir)
	var mismatchErr *ArtifactMismatchError
	if !errors.As(err, &mismatchErr) || mismatchErr.Artifact != "scaler" {
		t.Fatalf("expected scaler mismatch, got %v", err)
	}
}

func TestLoadBundleClassCountMismatch(t *testing.T) {
	_, dir := savedBundle(t)
	var enc encodersFile
	if err := readJSON(filepath.Join(dir, EncodersFile), &enc); err != nil {
		t.Fatalf("read encoders: %v", err)
	}
	enc.FertilizerEncoder = append(enc.FertilizerEncoder, "zzz extra")
	enc.FertilizerDisplay = append(enc.FertilizerDisplay, "zzz extra")
	rewriteArtifact(t, dir, EncodersFile, mustJSON(t, enc))

	if _, err := LoadBundle(dir); Kind(err) != KindArtifactMismatch {
		t.Fatalf("expected artifact mismatch, got %v", err)
	}
}
