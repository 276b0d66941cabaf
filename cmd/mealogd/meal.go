package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

var mealCmd = &cobra.Command{
	Use:   "meal",
	Short: "Manage the meal catalog",
}

var mealAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a meal to the catalog",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mealType, _ := cmd.Flags().GetString("type")
		servings, _ := cmd.Flags().GetInt("servings")
		labels, _ := cmd.Flags().GetStringSlice("label")
		description, _ := cmd.Flags().GetString("description")

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		m := &schema.Meal{
			Name:        args[0],
			Description: description,
			MealType:    schema.MealType(mealType),
			Servings:    servings,
			Labels:      labels,
		}
		if err := st.InsertMeal(context.Background(), m); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Added meal %d: %s\n", renderPass("✓"), m.ID, m.Name)
	},
}

var mealListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog meals",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		mealType, _ := cmd.Flags().GetString("type")
		label, _ := cmd.Flags().GetString("label")
		dirtyOnly, _ := cmd.Flags().GetBool("dirty")

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		filter := store.MealFilter{
			MealType:    schema.MealType(mealType),
			Label:       label,
			HouseholdID: activeHousehold(ctx, st),
		}
		if dirtyOnly {
			dirty := true
			filter.Dirty = &dirty
		}

		meals, err := st.ListMeals(ctx, filter)
		if err != nil {
			fatal("%v", err)
		}
		printMeals(meals)
	},
}

var mealSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search meals by name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		meals, err := st.SearchMeals(ctx, args[0], activeHousehold(ctx, st))
		if err != nil {
			fatal("%v", err)
		}
		printMeals(meals)
	},
}

var mealRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a meal from the catalog",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fatal("invalid meal id %q", args[0])
		}

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		if err := st.DeleteMeal(context.Background(), id); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Deleted meal %d\n", renderPass("✓"), id)
	},
}

func printMeals(meals []*schema.Meal) {
	if len(meals) == 0 {
		fmt.Println(renderDim("No meals found"))
		return
	}
	for _, m := range meals {
		mark := " "
		if m.Dirty {
			mark = renderWarn("*")
		}
		line := fmt.Sprintf("%s %4d  %-10s %s", mark, m.ID, m.MealType, m.Name)
		if len(m.Labels) > 0 {
			line += "  " + renderDim("["+strings.Join(m.Labels, ", ")+"]")
		}
		fmt.Println(line)
	}
	fmt.Println(renderDim(fmt.Sprintf("%d meals (* = not yet pushed)", len(meals))))
}

// activeHousehold resolves the household scoping list queries: the
// cached profile's household when signed in, the local placeholder
// otherwise. Queries always include the local placeholder as well.
func activeHousehold(ctx context.Context, st *store.Store) string {
	uid := viper.GetString("user.uid")
	if uid == "" {
		return schema.LocalHousehold
	}
	if profile, err := st.GetProfile(ctx, uid); err == nil && profile != nil {
		return profile.CurrentHouseholdID
	}
	return uid
}

func init() {
	mealAddCmd.Flags().String("type", "dinner", "meal type (breakfast, lunch, dinner, snack)")
	mealAddCmd.Flags().Int("servings", 1, "number of servings")
	mealAddCmd.Flags().StringSlice("label", nil, "labels (repeatable)")
	mealAddCmd.Flags().String("description", "", "short description")

	mealListCmd.Flags().String("type", "", "filter by meal type")
	mealListCmd.Flags().String("label", "", "filter by label")
	mealListCmd.Flags().Bool("dirty", false, "only records waiting for push")

	mealCmd.AddCommand(mealAddCmd, mealListCmd, mealSearchCmd, mealRmCmd)
	rootCmd.AddCommand(mealCmd)
}
