package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"agridash/ml"
	"github.com/goccy/go-json"
)

var (
	numericFields = []string{
		ml.FieldNitrogen,
		ml.FieldPhosphorus,
		ml.FieldPotassium,
		ml.FieldTemperature,
		ml.FieldHumidity,
		ml.FieldPH,
		ml.FieldMoisture,
	}
	categoricalFields = []string{ml.FieldCrop, ml.FieldRegion, ml.FieldMonth}
)

// decodePredictRequest reads an inference request from a JSON or form body.
// Every field is required and unknown fields are rejected. Numbers may be sent
// as JSON numbers or numeric strings.
func decodePredictRequest(r *http.Request) (ml.Input, error) {
	raw, err := readPredictFields(r)
	if err != nil {
		return ml.Input{}, err
	}

	known := make(map[string]bool, len(numericFields)+len(categoricalFields))
	for _, f := range numericFields {
		known[f] = true
	}
	for _, f := range categoricalFields {
		known[f] = true
	}
	unknown := make([]string, 0)
	for name := range raw {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return ml.Input{}, &ml.InvalidInputError{Field: unknown[0], Reason: "unknown field"}
	}

	values := make(map[string]float64, len(numericFields))
	for _, name := range numericFields {
		v, ok := raw[name]
		if !ok {
			return ml.Input{}, &ml.InvalidInputError{Field: name, Reason: "is required"}
		}
		f, err := parseNumber(v)
		if err != nil {
			return ml.Input{}, &ml.InvalidInputError{Field: name, Reason: err.Error()}
		}
		values[name] = f
	}
	texts := make(map[string]string, len(categoricalFields))
	for _, name := range categoricalFields {
		v, ok := raw[name]
		if !ok {
			return ml.Input{}, &ml.InvalidInputError{Field: name, Reason: "is required"}
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ml.Input{}, &ml.InvalidInputError{Field: name, Reason: "must be a string"}
		}
		texts[name] = s
	}

	return ml.Input{
		Measurements: ml.Measurements{
			Nitrogen:    values[ml.FieldNitrogen],
			Phosphorus:  values[ml.FieldPhosphorus],
			Potassium:   values[ml.FieldPotassium],
			Temperature: values[ml.FieldTemperature],
			Humidity:    values[ml.FieldHumidity],
			PH:          values[ml.FieldPH],
			Moisture:    values[ml.FieldMoisture],
		},
		Categories: ml.Categories{
			Crop:   texts[ml.FieldCrop],
			Region: texts[ml.FieldRegion],
			Month:  texts[ml.FieldMonth],
		},
	}, nil
}

// readPredictFields returns the raw value of every submitted field. Form
// values are re-encoded as JSON strings.
func readPredictFields(r *http.Request) (map[string]json.RawMessage, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, err
			}
			return nil, &ml.InvalidInputError{Field: "body", Reason: err.Error()}
		}
		raw := make(map[string]json.RawMessage, len(r.PostForm))
		for name, vals := range r.PostForm {
			if len(vals) != 1 {
				return nil, &ml.InvalidInputError{Field: name, Reason: "must be given exactly once"}
			}
			encoded, err := json.Marshal(vals[0])
			if err != nil {
				return nil, err
			}
			raw[name] = encoded
		}
		return raw, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, &ml.InvalidInputError{Field: "body", Reason: err.Error()}
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ml.InvalidInputError{Field: "body", Reason: "must be a JSON object"}
	}
	if raw == nil {
		return nil, &ml.InvalidInputError{Field: "body", Reason: "must be a JSON object"}
	}
	return raw, nil
}

func parseNumber(v json.RawMessage) (float64, error) {
	v = bytes.TrimSpace(v)
	var f float64
	if len(v) > 0 && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, errors.New("must be a number")
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", s)
		}
		f = parsed
	} else if err := json.Unmarshal(v, &f); err != nil || bytes.Equal(v, []byte("null")) {
		return 0, errors.New("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("must be a finite number")
	}
	return f, nil
}
