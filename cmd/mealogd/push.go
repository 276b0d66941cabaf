package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mealog/mealog/internal/netstate"
	"github.com/mealog/mealog/internal/schema"
	meallogsync "github.com/mealog/mealog/internal/sync"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push dirty records to the household now",
	Long: `Push every locally modified meal and weekly plan to the remote store
immediately, without waiting for the daemon's debounce.

Records are stamped with the configured household. Without an identity
they stay queued; run 'mealogd run' with user.uid configured first.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		rs, cleanup, err := newRemote(ctx)
		if err != nil {
			fatal("failed to connect remote store: %v", err)
		}
		defer cleanup()

		household := schema.LocalHousehold
		if uid := viper.GetString("user.uid"); uid != "" {
			if profile, err := st.GetProfile(ctx, uid); err == nil && profile != nil {
				household = profile.CurrentHouseholdID
			} else {
				household = uid
			}
		}

		pusher := meallogsync.NewPusher(st, rs, netstate.NewFlag(true),
			func() string { return household }, newLogger("upsync"))

		start := time.Now()
		stats, err := pusher.Push(ctx)
		if errors.Is(err, meallogsync.ErrOffline) {
			fatal("device is offline")
		}
		if err != nil {
			fatal("push failed: %v", err)
		}

		if stats.Pushed == 0 && stats.Failed == 0 {
			fmt.Printf("%s Nothing to push\n", renderPass("✓"))
			return
		}
		fmt.Printf("%s Pushed %d records to household %s in %v\n",
			renderPass("✓"), stats.Pushed, renderAccent(household),
			time.Since(start).Round(time.Millisecond))
		if stats.Failed > 0 {
			fmt.Printf("%s %d records failed and stay queued\n", renderWarn("⚠"), stats.Failed)
		}
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
