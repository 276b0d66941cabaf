package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local database and sync status",
	Long: `Display the current state of the local Mealog database.

Shows:
  - Database location and size
  - Catalog and plan counts
  - The dirty backlog waiting for the next push
  - The configured identity and household`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		meals, dirtyMeals, err := st.CountMeals(ctx)
		if err != nil {
			fatal("failed to count meals: %v", err)
		}
		plans, dirtyPlans, err := st.CountPlans(ctx)
		if err != nil {
			fatal("failed to count plans: %v", err)
		}

		fmt.Println()
		fmt.Println(renderHeader("Mealog status"))

		size := "?"
		if info, err := os.Stat(st.Path()); err == nil {
			size = fmt.Sprintf("%.1f KiB", float64(info.Size())/1024)
		}
		fmt.Printf("  Database:  %s %s\n", st.Path(), renderDim("("+size+")"))
		fmt.Printf("  Meals:     %d\n", meals)
		fmt.Printf("  Plans:     %d\n", plans)

		backlog := dirtyMeals + dirtyPlans
		if backlog == 0 {
			fmt.Printf("  Backlog:   %s everything pushed\n", renderPass("✓"))
		} else {
			fmt.Printf("  Backlog:   %s %d records waiting for push (%d meals, %d plans)\n",
				renderWarn("⚠"), backlog, dirtyMeals, dirtyPlans)
		}

		uid := viper.GetString("user.uid")
		if uid == "" {
			fmt.Printf("  Identity:  %s\n", renderDim("not configured (local-only mode)"))
			fmt.Println()
			return
		}

		fmt.Printf("  Identity:  %s\n", uid)
		profile, err := st.GetProfile(ctx, uid)
		if err != nil {
			fatal("failed to read profile: %v", err)
		}
		switch {
		case profile == nil:
			fmt.Printf("  Household: %s\n", renderDim("unknown until first sign-in"))
		case profile.CurrentHouseholdID == profile.UID:
			fmt.Printf("  Household: %s %s\n", profile.CurrentHouseholdID, renderDim("(personal)"))
		default:
			fmt.Printf("  Household: %s\n", renderAccent(profile.CurrentHouseholdID))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
