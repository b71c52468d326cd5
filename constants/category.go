package constants

import (
	"strings"
)

type Category string

const (
	Construction   Category = "Construction"
	Education      Category = "Education"
	Food           Category = "Food"
	Healthcare     Category = "Healthcare"
	Logistics      Category = "Logistics"
	Sanitation     Category = "Sanitation"
	Shelter        Category = "Shelter"
	WaterSupply    Category = "WaterSupply"
	Equipment      Category = "Equipment"
	Administration Category = "Administration"
)

var allCategories = []Category{
	Construction,
	Education,
	Food,
	Healthcare,
	Logistics,
	Sanitation,
	Shelter,
	WaterSupply,
	Equipment,
	Administration,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a free-text label to a known category. Unknown labels
// come back trimmed with ok=false; an empty label is never valid.
func Canonicalize(input string) (Category, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	normalized := strings.ToLower(trimmed)

	// synonyms map
	synonyms := map[string]Category{
		"building":     Construction,
		"school":       Education,
		"books":        Education,
		"rations":      Food,
		"meals":        Food,
		"medical":      Healthcare,
		"medicine":     Healthcare,
		"transport":    Logistics,
		"shipping":     Logistics,
		"toilets":      Sanitation,
		"housing":      Shelter,
		"water":        WaterSupply,
		"borewell":     WaterSupply,
		"tools":        Equipment,
		"machinery":    Equipment,
		"overhead":     Administration,
		"office":       Administration,
		"construction": Construction,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Category(trimmed), false
}
