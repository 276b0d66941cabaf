package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mealog/mealog/internal/planner"
	"github.com/mealog/mealog/internal/schema"
	"github.com/mealog/mealog/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage weekly meal plans",
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the plan for a week",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		day := flagDate(cmd, "date")

		st, w := openPlanner()
		defer func() { _ = st.Close() }()

		plan, err := w.PlanFor(ctx, day)
		if err != nil {
			fatal("%v", err)
		}

		fmt.Println()
		fmt.Println(renderHeader("Week of " + schema.WeekStart(day).Format("Mon 2 Jan 2006")))
		for _, d := range plan.Days {
			date := schema.FromMillis(d.Date)
			fmt.Printf("  %s\n", renderAccent(date.Format("Mon 2 Jan")))
			if len(d.Meals) == 0 {
				fmt.Println(renderDim("    nothing planned"))
				continue
			}
			ids := make([]int64, len(d.Meals))
			for i, sm := range d.Meals {
				ids[i] = sm.MealID
			}
			meals, err := st.GetMeals(ctx, ids)
			if err != nil {
				fatal("%v", err)
			}
			for i, sm := range d.Meals {
				name := fmt.Sprintf("meal %d (deleted)", sm.MealID)
				if meals[i] != nil {
					name = meals[i].Name
				}
				mark := " "
				if sm.Completed {
					mark = renderPass("✓")
				}
				fmt.Printf("    %s %s\n", mark, name)
			}
		}

		n := planner.NewNutritionSummary(st)
		week, err := n.WeekTotals(ctx, plan)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("\n  %s %.0f kcal, %.0fg protein, %.0fg carbs, %.0fg fat\n\n",
			renderDim("Week totals:"), week.Calories, week.Protein, week.Carbs, week.Fat)
	},
}

var planAddCmd = &cobra.Command{
	Use:   "add <meal-id>",
	Short: "Schedule a meal on a day",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mealID := parseMealID(args[0])
		day := flagDate(cmd, "date")

		st, w := openPlanner()
		defer func() { _ = st.Close() }()

		if err := w.AddMeal(context.Background(), day, mealID); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Scheduled meal %d on %s\n", renderPass("✓"), mealID, day.Format("Mon 2 Jan"))
	},
}

var planRmCmd = &cobra.Command{
	Use:   "rm <meal-id>",
	Short: "Unschedule a meal from a day",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mealID := parseMealID(args[0])
		day := flagDate(cmd, "date")

		st, w := openPlanner()
		defer func() { _ = st.Close() }()

		if err := w.RemoveMeal(context.Background(), day, mealID); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Unscheduled meal %d from %s\n", renderPass("✓"), mealID, day.Format("Mon 2 Jan"))
	},
}

var planDoneCmd = &cobra.Command{
	Use:   "done <meal-id>",
	Short: "Mark a scheduled meal as eaten",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mealID := parseMealID(args[0])
		day := flagDate(cmd, "date")
		undo, _ := cmd.Flags().GetBool("undo")

		st, w := openPlanner()
		defer func() { _ = st.Close() }()

		if err := w.SetCompleted(context.Background(), day, mealID, !undo); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Updated meal %d on %s\n", renderPass("✓"), mealID, day.Format("Mon 2 Jan"))
	},
}

func openPlanner() (*store.Store, *planner.WeekPlanner) {
	st, err := openStore()
	if err != nil {
		fatal("%v", err)
	}
	w := planner.NewWeekPlanner(st, func() string {
		return activeHousehold(context.Background(), st)
	}, newLogger("planner"))
	return st, w
}

// flagDate reads a --date flag (YYYY-MM-DD), defaulting to today.
func flagDate(cmd *cobra.Command, name string) time.Time {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return time.Now()
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		fatal("invalid date %q (want YYYY-MM-DD)", value)
	}
	return t
}

func parseMealID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		fatal("invalid meal id %q", arg)
	}
	return id
}

func init() {
	for _, c := range []*cobra.Command{planShowCmd, planAddCmd, planRmCmd, planDoneCmd} {
		c.Flags().String("date", "", "day to operate on (YYYY-MM-DD, default today)")
	}
	planDoneCmd.Flags().Bool("undo", false, "mark as not eaten")

	planCmd.AddCommand(planShowCmd, planAddCmd, planRmCmd, planDoneCmd)
	rootCmd.AddCommand(planCmd)
}
