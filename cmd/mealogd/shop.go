package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mealog/mealog/internal/planner"
	"github.com/mealog/mealog/internal/schema"
)

var shopCmd = &cobra.Command{
	Use:   "shop",
	Short: "Manage the weekly shopping list",
	Long: `Generate and check off the shopping list derived from a week's plan.

The list aggregates ingredients across the week's planned meals; each
meal counts once no matter how often it is scheduled, and the same
ingredient in the same unit merges into one line. Regenerating after a
plan change keeps the purchase marks of unchanged lines.`,
}

var shopGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate the shopping list for a week",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		day := flagDate(cmd, "date")

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		b := planner.NewShoppingBuilder(st)
		list, err := b.Generate(ctx, day, activeHousehold(ctx, st))
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Generated %d lines for the week of %s\n",
			renderPass("✓"), len(list.Items), schema.WeekStart(day).Format("2 Jan 2006"))
		printShoppingList(list)
	},
}

var shopShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the shopping list for a week",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		day := flagDate(cmd, "date")

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		list, err := planner.NewShoppingBuilder(st).ListFor(ctx, day)
		if err != nil {
			fatal("%v", err)
		}
		if list == nil {
			fmt.Println(renderDim("No shopping list yet; run 'mealogd shop gen'"))
			return
		}
		printShoppingList(list)
	},
}

var shopToggleCmd = &cobra.Command{
	Use:   "toggle <item-id>",
	Short: "Toggle the purchased mark on a line",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		day := flagDate(cmd, "date")

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		b := planner.NewShoppingBuilder(st)
		list, err := b.ListFor(ctx, day)
		if err != nil {
			fatal("%v", err)
		}
		if list == nil {
			fatal("no shopping list for that week")
		}

		// Accept any unambiguous id prefix.
		var match string
		for _, item := range list.Items {
			if strings.HasPrefix(item.ID, args[0]) {
				if match != "" {
					fatal("item id %q is ambiguous", args[0])
				}
				match = item.ID
			}
		}
		if match == "" {
			fatal("no item with id %q", args[0])
		}

		if err := b.ToggleItem(ctx, day, match); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Toggled %s\n", renderPass("✓"), match[:8])
	},
}

var shopClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop purchased lines from the list",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		day := flagDate(cmd, "date")

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		if err := planner.NewShoppingBuilder(st).ClearPurchased(ctx, day); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Cleared purchased lines\n", renderPass("✓"))
	},
}

func printShoppingList(list *schema.ShoppingList) {
	if len(list.Items) == 0 {
		fmt.Println(renderDim("Nothing to buy"))
		return
	}

	category := ""
	for _, item := range list.Items {
		if item.Category != category {
			category = item.Category
			fmt.Printf("\n  %s\n", renderHeader(category))
		}
		mark := "☐"
		if item.Purchased {
			mark = renderPass("☑")
		}
		fmt.Printf("    %s %g %s %s  %s\n", mark, item.TotalQuantity, item.Unit,
			item.IngredientName, renderDim(item.ID[:8]))
	}
	fmt.Println()
}

func init() {
	for _, c := range []*cobra.Command{shopGenCmd, shopShowCmd, shopToggleCmd, shopClearCmd} {
		c.Flags().String("date", "", "any day in the target week (YYYY-MM-DD, default today)")
	}
	shopCmd.AddCommand(shopGenCmd, shopShowCmd, shopToggleCmd, shopClearCmd)
	rootCmd.AddCommand(shopCmd)
}
