package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	ManifestFile = "manifest.json"
	EncodersFile = "encoders.json"
	ScalerFile   = "scaler.json"
)

// Manifest describes one bundle produced by a single training run.
type Manifest struct {
	BundleID     string            `json:"bundle_id"`
	CreatedAt    time.Time         `json:"created_at"`
	ModelType    string            `json:"model_type"`
	ModelFile    string            `json:"model_file"`
	FeatureNames []string          `json:"feature_names"`
	NumFeatures  int               `json:"num_features"`
	NumClasses   int               `json:"num_classes"`
	Checksums    map[string]string `json:"checksums"`
}

// Dropdowns lists the accepted categorical values, sorted for display.
type Dropdowns struct {
	Crop   []string `json:"crop"`
	Region []string `json:"region"`
	Month  []string `json:"month"`
}

type encodersFile struct {
	LabelEncoders struct {
		Crop   []string `json:"crop"`
		Region []string `json:"region"`
		Month  []string `json:"month"`
	} `json:"label_encoders"`
	FertilizerEncoder []string  `json:"fertilizer_encoder"`
	FertilizerDisplay []string  `json:"fertilizer_display"`
	Dropdowns         Dropdowns `json:"dropdowns"`
}

// Bundle is the immutable set of artifacts a predictor serves from. Its parts
// are only meaningful together.
type Bundle struct {
	Manifest   Manifest
	Encoders   Encoders
	Fertilizer *Vocabulary
	// Display holds the human-readable spelling of each fertilizer class.
	Display    []string
	Dropdowns  Dropdowns
	Scaler     *Scaler
	Classifier Classifier
}

// NewBundle assembles freshly trained artifacts under a new bundle id.
func NewBundle(modelType string, enc Encoders, fertilizer *Vocabulary, display []string, scaler *Scaler, clf Classifier) *Bundle {
	if len(display) != fertilizer.Size() {
		display = fertilizer.Classes()
	}
	return &Bundle{
		Manifest: Manifest{
			BundleID:     uuid.NewString(),
			CreatedAt:    time.Now().UTC(),
			ModelType:    modelType,
			ModelFile:    modelFileName(modelType),
			FeatureNames: FeatureNames(),
			NumFeatures:  NumFeatures,
			NumClasses:   fertilizer.Size(),
		},
		Encoders:   enc,
		Fertilizer: fertilizer,
		Display:    append([]string(nil), display...),
		Dropdowns: Dropdowns{
			Crop:   enc.Crop.Sorted(),
			Region: enc.Region.Sorted(),
			Month:  enc.Month.Sorted(),
		},
		Scaler:     scaler,
		Classifier: clf,
	}
}

// DisplayName returns the display spelling of fertilizer class idx.
func (b *Bundle) DisplayName(idx int) (string, bool) {
	if idx >= 0 && idx < len(b.Display) {
		return b.Display[idx], true
	}
	return b.Fertilizer.Decode(idx)
}

func (b *Bundle) Close() error {
	if closer, ok := b.Classifier.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// SaveBundle writes every artifact into a sibling temp directory and renames
// it over dir, so readers see either the previous bundle or the new one.
func SaveBundle(b *Bundle, dir string) error {
	model, ok := b.Classifier.(TrainableClassifier)
	if !ok {
		return fmt.Errorf("classifier of type %q cannot be saved", b.Manifest.ModelType)
	}

	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+"-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	var enc encodersFile
	enc.LabelEncoders.Crop = b.Encoders.Crop.Classes()
	enc.LabelEncoders.Region = b.Encoders.Region.Classes()
	enc.LabelEncoders.Month = b.Encoders.Month.Classes()
	enc.FertilizerEncoder = b.Fertilizer.Classes()
	enc.FertilizerDisplay = b.Display
	enc.Dropdowns = b.Dropdowns

	if err := writeJSON(filepath.Join(tmp, EncodersFile), enc); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, ScalerFile), b.Scaler); err != nil {
		return err
	}
	if err := model.Save(filepath.Join(tmp, b.Manifest.ModelFile)); err != nil {
		return fmt.Errorf("save classifier: %w", err)
	}

	manifest := b.Manifest
	manifest.Checksums = make(map[string]string, 3)
	for _, name := range []string{EncodersFile, ScalerFile, manifest.ModelFile} {
		sum, err := fileChecksum(filepath.Join(tmp, name))
		if err != nil {
			return err
		}
		manifest.Checksums[name] = sum
	}
	if err := writeJSON(filepath.Join(tmp, ManifestFile), manifest); err != nil {
		return err
	}

	backup := ""
	if _, err := os.Stat(dir); err == nil {
		backup = fmt.Sprintf("%s.old-%d", dir, time.Now().UnixNano())
		if err := os.Rename(dir, backup); err != nil {
			return fmt.Errorf("move previous bundle aside: %w", err)
		}
	}
	if err := os.Rename(tmp, dir); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dir)
		}
		return fmt.Errorf("install bundle: %w", err)
	}
	if backup != "" {
		_ = os.RemoveAll(backup)
	}
	b.Manifest = manifest
	return nil
}

// LoadBundle reads and cross-checks every artifact in dir. Any missing file,
// checksum failure or dimension disagreement is an ArtifactMismatchError.
func LoadBundle(dir string) (*Bundle, error) {
	manifest, err := InspectBundle(dir)
	if err != nil {
		return nil, err
	}

	names := FeatureNames()
	if manifest.NumFeatures != NumFeatures || !equalStrings(manifest.FeatureNames, names) {
		return nil, mismatch("manifest", "feature layout %v does not match %v", manifest.FeatureNames, names)
	}

	var enc encodersFile
	if err := readJSON(filepath.Join(dir, EncodersFile), &enc); err != nil {
		return nil, mismatch("encoders", "%v", err)
	}
	crop, err := loadVocabulary(FieldCrop, enc.LabelEncoders.Crop)
	if err != nil {
		return nil, err
	}
	region, err := loadVocabulary(FieldRegion, enc.LabelEncoders.Region)
	if err != nil {
		return nil, err
	}
	month, err := loadVocabulary(FieldMonth, enc.LabelEncoders.Month)
	if err != nil {
		return nil, err
	}
	fertilizer, err := loadVocabulary("fertilizer", enc.FertilizerEncoder)
	if err != nil {
		return nil, err
	}
	display := enc.FertilizerDisplay
	if len(display) == 0 {
		display = fertilizer.Classes()
	}
	if len(display) != fertilizer.Size() {
		return nil, mismatch("encoders", "%d display names for %d fertilizer classes", len(display), fertilizer.Size())
	}
	if manifest.NumClasses != fertilizer.Size() {
		return nil, mismatch("manifest", "manifest declares %d classes, fertilizer encoder has %d", manifest.NumClasses, fertilizer.Size())
	}

	var scaler Scaler
	if err := readJSON(filepath.Join(dir, ScalerFile), &scaler); err != nil {
		return nil, mismatch("scaler", "%v", err)
	}
	if err := scaler.Validate(names); err != nil {
		return nil, err
	}

	clf, err := LoadModel(manifest.ModelType, filepath.Join(dir, manifest.ModelFile))
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	if clf.InputDim() != NumFeatures || clf.NumClasses() != fertilizer.Size() {
		if closer, ok := clf.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, mismatch("classifier", "classifier maps %d features to %d classes, expected %d to %d",
			clf.InputDim(), clf.NumClasses(), NumFeatures, fertilizer.Size())
	}

	encoders := Encoders{Crop: crop, Region: region, Month: month}
	dropdowns := enc.Dropdowns
	if len(dropdowns.Crop) == 0 || len(dropdowns.Region) == 0 || len(dropdowns.Month) == 0 {
		dropdowns = Dropdowns{Crop: crop.Sorted(), Region: region.Sorted(), Month: month.Sorted()}
	}

	return &Bundle{
		Manifest:   *manifest,
		Encoders:   encoders,
		Fertilizer: fertilizer,
		Display:    display,
		Dropdowns:  dropdowns,
		Scaler:     &scaler,
		Classifier: clf,
	}, nil
}

// InspectBundle reads the manifest in dir and verifies that every artifact it
// names is present and matches its recorded checksum.
func InspectBundle(dir string) (*Manifest, error) {
	var manifest Manifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, mismatch("manifest", "%s is missing from %s", ManifestFile, dir)
		}
		return nil, mismatch("manifest", "%v", err)
	}
	if manifest.ModelFile == "" || manifest.ModelFile != filepath.Base(manifest.ModelFile) || strings.HasPrefix(manifest.ModelFile, ".") {
		return nil, mismatch("manifest", "invalid model file name %q", manifest.ModelFile)
	}

	for _, name := range []string{EncodersFile, ScalerFile, manifest.ModelFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return nil, mismatch(name, "%s is missing from %s", name, dir)
		}
		want, ok := manifest.Checksums[name]
		if !ok {
			return nil, mismatch(name, "no checksum recorded for %s", name)
		}
		got, err := fileChecksum(path)
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, mismatch(name, "checksum mismatch for %s", name)
		}
	}
	return &manifest, nil
}

func loadVocabulary(name string, classes []string) (*Vocabulary, error) {
	vocab, err := NewVocabulary(classes)
	if err != nil {
		return nil, mismatch("encoders", "%s encoder: %v", name, err)
	}
	return vocab, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeJSON(path string, v interface{}) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func readJSON(path string, v interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
