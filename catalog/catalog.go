// Package catalog defines the recipe catalog collections: recipes, and the
// categories and cuisines they reference.
package catalog

import (
	"strings"

	"github.com/arthur-debert/cookbook/odm"
)

// Collection names
const (
	Recipes    = "recipes"
	Categories = "categories"
	Cuisines   = "cuisines"
)

// Catalog holds the registered models
type Catalog struct {
	Recipes    *odm.Model
	Categories *odm.Model
	Cuisines   *odm.Model
}

// Register registers the catalog collections on reg
func Register(reg *odm.Registry) *Catalog {
	return &Catalog{
		Categories: reg.Model(Categories, NameSchema()),
		Cuisines:   reg.Model(Cuisines, NameSchema()),
		Recipes:    reg.Model(Recipes, RecipeSchema()),
	}
}

// NameSchema is the schema of the named lookup collections
func NameSchema() *odm.Schema {
	return odm.NewSchema(odm.Fields{
		"name": {Type: odm.String, Searchable: true, Set: trimString, Validate: nonEmptyString},
	})
}

// RecipeSchema is the schema of the recipes collection
func RecipeSchema() *odm.Schema {
	return odm.NewSchema(odm.Fields{
		"title":       {Type: odm.String, Searchable: true, Set: trimString, Validate: nonEmptyString},
		"description": {Type: odm.String},
		"category":    {Type: odm.ID, Ref: Categories},
		"cuisine":     {Type: odm.ID, Ref: Cuisines},
		"ingredients": {Type: odm.Array, Default: []interface{}{}, Validate: stringList},
		"steps":       {Type: odm.Array, Default: []interface{}{}, Validate: stringList},
		"servings":    {Type: odm.Number, Default: 1, Validate: positive},
		"prepMinutes": {Type: odm.Number, Validate: optionalNonNegative},
		"tags":        {Type: odm.Array, Default: []interface{}{}, Set: normalizeTags, Validate: stringList},
		"favorite":    {Type: odm.Bool, Default: false},
	}).Timestamps()
}

func trimString(v interface{}) interface{} {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return v
}

func nonEmptyString(v interface{}) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func stringList(v interface{}) bool {
	list, ok := v.([]interface{})
	if !ok {
		return v == nil
	}
	for _, el := range list {
		if _, ok := el.(string); !ok {
			return false
		}
	}
	return true
}

func positive(v interface{}) bool {
	n, ok := v.(float64)
	return ok && n > 0
}

func optionalNonNegative(v interface{}) bool {
	if v == nil {
		return true
	}
	n, ok := v.(float64)
	return ok && n >= 0
}

// normalizeTags lowercases, trims and de-duplicates tags, keeping order
func normalizeTags(v interface{}) interface{} {
	var in []string
	switch list := v.(type) {
	case []string:
		in = list
	case []interface{}:
		for _, el := range list {
			s, ok := el.(string)
			if !ok {
				return v
			}
			in = append(in, s)
		}
	default:
		return v
	}

	seen := make(map[string]bool, len(in))
	out := make([]interface{}, 0, len(in))
	for _, tag := range in {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
