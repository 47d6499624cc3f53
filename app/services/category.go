package services

import (
	"strings"

	"github.com/opsipintar/catalog/app/models"
)

// categoryRules are tried in order; the first keyword hit wins.
var categoryRules = []struct {
	keywords []string
	category models.Category
}{
	{[]string{"gadget", "elektronik"}, models.CategoryGadget},
	{[]string{"fashion", "pakaian"}, models.CategoryFashion},
	{[]string{"rumah", "home", "living"}, models.CategoryRumah},
}

// MapCategory folds a free-text upstream label into the closed taxonomy.
// An empty label is Opsi Viral; an unrecognised one is Opsi Lainnya.
func MapCategory(raw string) models.Category {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return models.CategoryViral
	}
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return models.CategoryLainnya
}
