package ml

// Prediction is the decoded outcome of one inference.
type Prediction struct {
	Fertilizer string
	Category   string
	Confidence float64
}

// Service is what the HTTP layer serves predictions through.
type Service interface {
	Available() bool
	Predict(in Input) (Prediction, error)
	Options() (Dropdowns, error)
	Manifest() (Manifest, error)
}

// Predictor runs validation, encoding, scaling and classification against one
// loaded bundle. A Predictor without a bundle is unavailable and fails every
// call with ErrModelUnavailable.
type Predictor struct {
	bundle  *Bundle
	loadErr error
}

func NewPredictor(b *Bundle) *Predictor {
	return &Predictor{bundle: b}
}

// LoadPredictor loads the bundle in dir. It always returns a Predictor; when
// loading fails the error is kept and the predictor stays unavailable.
func LoadPredictor(dir string) *Predictor {
	b, err := LoadBundle(dir)
	if err != nil {
		return &Predictor{loadErr: err}
	}
	return &Predictor{bundle: b}
}

func (p *Predictor) Available() bool {
	return p != nil && p.bundle != nil
}

// LoadError returns why the bundle failed to load, if it did.
func (p *Predictor) LoadError() error {
	return p.loadErr
}

func (p *Predictor) Bundle() *Bundle {
	return p.bundle
}

func (p *Predictor) Predict(in Input) (Prediction, error) {
	if !p.Available() {
		return Prediction{}, ErrModelUnavailable
	}
	b := p.bundle

	if err := ValidateRanges(in.Measurements); err != nil {
		return Prediction{}, err
	}
	raw, err := AssembleFeatures(in, b.Encoders)
	if err != nil {
		return Prediction{}, err
	}
	scaled, err := b.Scaler.Transform(raw)
	if err != nil {
		return Prediction{}, err
	}
	probs, err := b.Classifier.PredictProba(scaled)
	if err != nil {
		return Prediction{}, err
	}
	if len(probs) != b.Fertilizer.Size() {
		return Prediction{}, mismatch("classifier", "classifier returned %d probabilities for %d classes", len(probs), b.Fertilizer.Size())
	}
	idx, ok := ArgMax(probs)
	if !ok {
		return Prediction{}, mismatch("classifier", "classifier returned no usable probability")
	}
	name, ok := b.DisplayName(idx)
	if !ok {
		return Prediction{}, mismatch("encoders", "class index %d has no fertilizer name", idx)
	}

	return Prediction{
		Fertilizer: name,
		Category:   Categorize(name),
		Confidence: probs[idx],
	}, nil
}

func (p *Predictor) Options() (Dropdowns, error) {
	if !p.Available() {
		return Dropdowns{}, ErrModelUnavailable
	}
	return p.bundle.Dropdowns, nil
}

func (p *Predictor) Manifest() (Manifest, error) {
	if !p.Available() {
		return Manifest{}, ErrModelUnavailable
	}
	return p.bundle.Manifest, nil
}

func (p *Predictor) Close() error {
	if !p.Available() {
		return nil
	}
	return p.bundle.Close()
}
