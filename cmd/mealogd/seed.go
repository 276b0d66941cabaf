package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mealog/mealog/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply the starter catalog to an empty database",
	Long: `Insert the built-in starter meals into the local database.

This only runs against an empty catalog; an existing catalog is never
modified. The daemon does this automatically on first run.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		inserted, err := seed.Apply(context.Background(), st, newLogger("seed"))
		if err != nil {
			fatal("%v", err)
		}
		if inserted == 0 {
			fmt.Printf("%s Catalog is not empty, nothing to do\n", renderPass("✓"))
			return
		}
		fmt.Printf("%s Seeded %d starter meals\n", renderPass("✓"), inserted)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
