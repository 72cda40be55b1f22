package soil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	LevelVeryLow  = "Very Low"
	LevelLow      = "Low"
	LevelMedium   = "Medium"
	LevelHigh     = "High"
	LevelVeryHigh = "Very High"
)

const (
	StatusGood            = "Good"
	StatusNeedsAdjustment = "Needs Adjustment"
	StatusWarning         = "Warning"
)

// DateLayout is the format of Test.TestDate.
const DateLayout = "2006-01-02"

const (
	MinPH = 4.0
	MaxPH = 9.0
)

// Test is one laboratory soil analysis for a farm.
type Test struct {
	ID              int64     `json:"id"`
	FarmID          string    `json:"farm_id"`
	TestDate        string    `json:"test_date"`
	NitrogenLevel   string    `json:"nitrogen_level"`
	PhosphorusLevel string    `json:"phosphorus_level"`
	PotassiumLevel  string    `json:"potassium_level"`
	PH              float64   `json:"ph_level"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type Recommendation struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	Recommendation string `json:"recommendation"`
}

func Levels() []string {
	return []string{LevelVeryLow, LevelLow, LevelMedium, LevelHigh, LevelVeryHigh}
}

// NormalizeLevel maps a level to its canonical spelling, ignoring case and
// surrounding space.
func NormalizeLevel(level string) (string, bool) {
	for _, l := range Levels() {
		if strings.EqualFold(strings.TrimSpace(level), l) {
			return l, true
		}
	}
	return "", false
}

// Validate canonicalizes the levels of t in place and checks its fields.
func (t *Test) Validate() error {
	t.FarmID = strings.TrimSpace(t.FarmID)
	if t.FarmID == "" {
		return errors.New("farm_id is required")
	}
	if _, err := time.Parse(DateLayout, t.TestDate); err != nil {
		return fmt.Errorf("test_date %q must be formatted as YYYY-MM-DD", t.TestDate)
	}
	levels := []struct {
		name  string
		value *string
	}{
		{"nitrogen_level", &t.NitrogenLevel},
		{"phosphorus_level", &t.PhosphorusLevel},
		{"potassium_level", &t.PotassiumLevel},
	}
	for _, l := range levels {
		canonical, ok := NormalizeLevel(*l.value)
		if !ok {
			return fmt.Errorf("%s %q must be one of %s", l.name, *l.value, strings.Join(Levels(), ", "))
		}
		*l.value = canonical
	}
	if t.PH < MinPH || t.PH > MaxPH || t.PH != t.PH {
		return fmt.Errorf("ph_level %v must be between %g and %g", t.PH, MinPH, MaxPH)
	}
	return nil
}

func isLow(level string) bool {
	return level == LevelLow || level == LevelVeryLow
}

const baseline = "Maintain current regimen. "

// Recommend derives advice from the most recent test. tests must be ordered
// newest first.
func Recommend(tests []Test, crop string) Recommendation {
	if len(tests) == 0 {
		return Recommendation{
			Status:         StatusWarning,
			Message:        "No recent soil test found. Cannot provide a tailored recommendation. Please perform a soil test.",
			Recommendation: "General NPK (15-15-15) as a starting point, but not recommended without data.",
		}
	}
	recent := tests[0]

	var b strings.Builder
	b.WriteString(baseline)
	if isLow(recent.NitrogenLevel) {
		b.WriteString("Increase Nitrogen (N) application (e.g., Urea). ")
	}
	if isLow(recent.PhosphorusLevel) {
		b.WriteString("Increase Phosphorus (P) application (e.g., DAP). ")
	}
	if isLow(recent.PotassiumLevel) {
		b.WriteString("Increase Potassium (K) application (e.g., Muriate of Potash). ")
	}
	switch {
	case recent.PH < 6.0:
		b.WriteString("Soil pH is low (acidic). Consider liming (Calcium Carbonate). ")
	case recent.PH > 7.5:
		b.WriteString("Soil pH is high (alkaline). Consider Sulphur application. ")
	}

	status := StatusNeedsAdjustment
	if b.Len() == len(baseline) {
		b.WriteString("Soil levels are balanced.")
		status = StatusGood
	}

	return Recommendation{
		Status:         status,
		Message:        fmt.Sprintf("Recommendation for %s based on soil test from %s.", titleCase(crop), recent.TestDate),
		Recommendation: b.String(),
	}
}

func titleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// StatusClass maps a nutrient level to the CSS class used to colour it.
func StatusClass(level string) string {
	switch level {
	case LevelHigh, LevelVeryHigh:
		return "soil-status-excellent"
	case LevelMedium:
		return "soil-status-good"
	case LevelLow:
		return "soil-status-fair"
	default:
		return "soil-status-poor"
	}
}
