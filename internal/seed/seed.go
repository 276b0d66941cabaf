// Package seed applies the embedded starter catalog to an empty
// database so a first run has meals to plan with.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

//go:embed starter_meals.yaml
var starterMeals []byte

type catalog struct {
	Meals []mealEntry `yaml:"meals"`
}

type mealEntry struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	MealType    string            `yaml:"mealType"`
	Servings    int               `yaml:"servings"`
	Labels      []string          `yaml:"labels"`
	Ingredients []ingredientEntry `yaml:"ingredients"`
	Nutrition   nutritionEntry    `yaml:"nutrition"`
}

type ingredientEntry struct {
	Name     string  `yaml:"name"`
	Quantity float64 `yaml:"quantity"`
	Unit     string  `yaml:"unit"`
	Category string  `yaml:"category"`
}

type nutritionEntry struct {
	Calories float64            `yaml:"calories"`
	Protein  float64            `yaml:"protein"`
	Carbs    float64            `yaml:"carbs"`
	Fat      float64            `yaml:"fat"`
	Micros   map[string]float64 `yaml:"micros"`
}

// Load parses the embedded starter catalog into meal records.
func Load() ([]*schema.Meal, error) {
	var c catalog
	if err := yaml.Unmarshal(starterMeals, &c); err != nil {
		return nil, fmt.Errorf("failed to parse starter catalog: %w", err)
	}

	meals := make([]*schema.Meal, 0, len(c.Meals))
	for _, entry := range c.Meals {
		m := &schema.Meal{
			Name:        entry.Name,
			Description: entry.Description,
			MealType:    schema.MealType(entry.MealType),
			Servings:    entry.Servings,
			Labels:      entry.Labels,
			Nutrition: schema.NutritionFacts{
				Calories: entry.Nutrition.Calories,
				Protein:  entry.Nutrition.Protein,
				Carbs:    entry.Nutrition.Carbs,
				Fat:      entry.Nutrition.Fat,
				Micros:   entry.Nutrition.Micros,
			},
		}
		for _, ing := range entry.Ingredients {
			m.Ingredients = append(m.Ingredients, schema.Ingredient{
				Name:     ing.Name,
				Quantity: ing.Quantity,
				Unit:     ing.Unit,
				Category: ing.Category,
			})
		}
		m.SetDefaults()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("starter meal %q: %w", entry.Name, err)
		}
		meals = append(meals, m)
	}
	return meals, nil
}

// Apply inserts the starter catalog if the database has no meals yet.
// A non-empty catalog is left untouched. Returns the number of meals
// inserted.
func Apply(ctx context.Context, st *store.Store, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[seed] ", log.LstdFlags)
	}

	total, _, err := st.CountMeals(ctx)
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return 0, nil
	}

	meals, err := Load()
	if err != nil {
		return 0, err
	}
	inserted := 0
	for _, m := range meals {
		if err := st.InsertMeal(ctx, m); err != nil {
			return inserted, fmt.Errorf("failed to insert starter meal %q: %w", m.Name, err)
		}
		inserted++
	}
	logger.Printf("Seeded %d starter meals", inserted)
	return inserted, nil
}
