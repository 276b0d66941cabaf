package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mealog/mealog/internal/netstate"
	"github.com/mealog/mealog/internal/session"
	meallogsync "github.com/mealog/mealog/internal/sync"
)

var householdCmd = &cobra.Command{
	Use:   "household",
	Short: "Manage household membership",
	Long: `Join or leave a shared household.

A household is the unit of sharing: every member sees the same meals
and weekly plans. Each user also owns a personal household (same id as
their uid) that they fall back to after leaving a shared one.`,
}

var householdJoinCmd = &cobra.Command{
	Use:   "join <household-id>",
	Short: "Join an existing shared household",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withSession(func(ctx context.Context, c *session.Controller) {
			err := c.JoinHousehold(ctx, args[0])
			switch {
			case errors.Is(err, session.ErrHouseholdNotFound):
				fatal("household %s does not exist", args[0])
			case errors.Is(err, session.ErrAlreadyInHousehold):
				fmt.Printf("%s Already a member of %s\n", renderPass("✓"), args[0])
				return
			case err != nil:
				fatal("%v", err)
			}
			fmt.Printf("%s Joined household %s\n", renderPass("✓"), renderAccent(args[0]))
			fmt.Println(renderDim("The daemon will adopt local records into the household on its next push."))
		})
	},
}

var householdLeaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Leave the shared household and return to the personal one",
	Run: func(cmd *cobra.Command, args []string) {
		withSession(func(ctx context.Context, c *session.Controller) {
			err := c.LeaveHousehold(ctx)
			if errors.Is(err, session.ErrAlreadyInHousehold) {
				fmt.Printf("%s Already on the personal household\n", renderPass("✓"))
				return
			}
			if err != nil {
				fatal("%v", err)
			}
			fmt.Printf("%s Left the shared household\n", renderPass("✓"))
		})
	},
}

// withSession signs in with the configured identity, runs fn, and
// signs out. Household changes are remote-first so they need a live
// session even outside the daemon.
func withSession(fn func(ctx context.Context, c *session.Controller)) {
	ctx := context.Background()

	uid := viper.GetString("user.uid")
	if uid == "" {
		fatal("no identity configured (set user.uid)")
	}

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

	network := netstate.NewFlag(true)
	listener := meallogsync.NewListener(st, rs, newLogger("downsync"))
	defer listener.Stop()

	var controller *session.Controller
	pusher := meallogsync.NewPusher(st, rs, network, func() string {
		return controller.HouseholdID()
	}, newLogger("upsync"))
	controller = session.NewController(st, rs, listener, pusher, network, newLogger("session"))

	if _, err := controller.SignIn(ctx, session.Identity{
		UID:         uid,
		Email:       viper.GetString("user.email"),
		DisplayName: viper.GetString("user.name"),
	}); err != nil {
		fatal("sign-in failed: %v", err)
	}
	defer controller.SignOut()

	fn(ctx, controller)
}

func init() {
	householdCmd.AddCommand(householdJoinCmd)
	householdCmd.AddCommand(householdLeaveCmd)
	rootCmd.AddCommand(householdCmd)
}
