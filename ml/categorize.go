package ml

import "strings"

const (
	CategoryComplex       = "Complex Fertilizer"
	CategoryNitrogen      = "Nitrogen Fertilizer"
	CategoryPhosphatic    = "Phosphatic Fertilizer"
	CategoryPotassic      = "Potassic Fertilizer"
	CategoryMicronutrient = "Micronutrient Fertilizer"
	CategoryOrganic       = "Organic Fertilizer"
	CategorySpecial       = "Special Fertilizer"
)

type categoryRule struct {
	category string
	markers  []string
}

// First match wins.
var categoryRules = []categoryRule{
	{CategoryComplex, []string{"npk", "dap", "map"}},
	{CategoryNitrogen, []string{"urea", "ammonium"}},
	{CategoryPhosphatic, []string{"super", "phosphate"}},
	{CategoryPotassic, []string{"potash", "potassium"}},
	{CategoryMicronutrient, []string{"zinc", "iron", "boron", "manganese"}},
	{CategoryOrganic, []string{"compost", "manure", "biofertilizer"}},
}

// FertilizerCategories lists every value Categorize can return.
func FertilizerCategories() []string {
	return []string{
		CategoryComplex,
		CategoryNitrogen,
		CategoryPhosphatic,
		CategoryPotassic,
		CategoryMicronutrient,
		CategoryOrganic,
		CategorySpecial,
	}
}

// Categorize groups a fertilizer name for display. Matching ignores case
// because decoded names come out of a lowercased vocabulary.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, marker := range rule.markers {
			if strings.Contains(lower, marker) {
				return rule.category
			}
		}
	}
	return CategorySpecial
}
