package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mealog/mealog/internal/dashboard"
	"github.com/mealog/mealog/internal/netstate"
	"github.com/mealog/mealog/internal/seed"
	"github.com/mealog/mealog/internal/session"
	"github.com/mealog/mealog/internal/store"
	meallogsync "github.com/mealog/mealog/internal/sync"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon",
	Long: `Run the Mealog sync daemon.

The daemon:
  1. Opens the local database (seeding the starter catalog on first run)
  2. Signs in with the configured identity and joins its household feed
  3. Mirrors remote changes into the local database (last write wins)
  4. Pushes local changes to the household after a debounce period
  5. Serves a WebSocket dashboard with live record and sync events

Without a configured identity (user.uid) the daemon runs in local-only
mode: the database works normally and changes queue up for the first
sign-in.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore()
		if err != nil {
			fatal("%v", err)
		}
		defer func() { _ = st.Close() }()

		if _, err := seed.Apply(ctx, st, newLogger("seed")); err != nil {
			fatal("failed to seed starter catalog: %v", err)
		}

		rs, cleanup, err := newRemote(ctx)
		if err != nil {
			fatal("failed to connect remote store: %v", err)
		}
		defer cleanup()

		network := netstate.NewProbe(
			viper.GetString("sync.probe_addr"),
			viper.GetDuration("sync.probe_interval"),
			newLogger("netstate"),
		)
		defer network.Stop()

		listener := meallogsync.NewListener(st, rs, newLogger("downsync"))
		defer listener.Stop()

		var controller *session.Controller
		pusher := meallogsync.NewPusher(st, rs, network, func() string {
			return controller.HouseholdID()
		}, newLogger("upsync"))
		pusher.SetDebounce(viper.GetDuration("sync.debounce"))
		controller = session.NewController(st, rs, listener, pusher, network, newLogger("session"))

		if uid := viper.GetString("user.uid"); uid != "" {
			profile, err := controller.SignIn(ctx, session.Identity{
				UID:         uid,
				Email:       viper.GetString("user.email"),
				DisplayName: viper.GetString("user.name"),
			})
			if err != nil {
				fatal("sign-in failed: %v", err)
			}
			fmt.Printf("%s Signed in as %s (household %s)\n",
				renderPass("✓"), profile.UID, renderAccent(profile.CurrentHouseholdID))
			defer controller.SignOut()
		} else {
			fmt.Printf("%s No identity configured, running in local-only mode\n", renderWarn("⚠"))
		}

		srv := dashboard.NewServer(&dashboard.Config{
			Addr:   viper.GetString("dashboard.addr"),
			Stats:  statsFunc(st),
			Logger: newLogger("dashboard"),
		})
		if err := srv.Start(); err != nil {
			fatal("failed to start dashboard: %v", err)
		}
		defer func() { _ = srv.Stop() }()
		detach := srv.Attach(st)
		defer detach()

		pusher.SetOnPush(func(stats meallogsync.PushStats) {
			srv.BroadcastSyncComplete(dashboard.SyncCompleteData{
				Pushed: stats.Pushed,
				Failed: stats.Failed,
			})
		})
		if profile := controller.Profile(); profile != nil {
			srv.BroadcastSession(dashboard.SessionData{
				UID:         profile.UID,
				HouseholdID: profile.CurrentHouseholdID,
			})
		}

		// Config edits take effect without a restart.
		viper.OnConfigChange(func(e fsnotify.Event) {
			pusher.SetDebounce(viper.GetDuration("sync.debounce"))
		})
		viper.WatchConfig()

		fmt.Printf("%s Dashboard on http://localhost%s (db: %s)\n",
			renderPass("✓"), viper.GetString("dashboard.addr"), renderDim(st.Path()))
		fmt.Println("Press Ctrl+C to stop")

		pusher.Trigger()
		pusher.Run(ctx)

		fmt.Println("\nShutting down")
	},
}

// statsFunc adapts store counters to the dashboard's stats payload.
func statsFunc(st *store.Store) dashboard.StatsFunc {
	return func(ctx context.Context) (dashboard.StatsData, error) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		meals, dirtyMeals, err := st.CountMeals(ctx)
		if err != nil {
			return dashboard.StatsData{}, err
		}
		plans, dirtyPlans, err := st.CountPlans(ctx)
		if err != nil {
			return dashboard.StatsData{}, err
		}
		return dashboard.StatsData{
			Meals:      meals,
			DirtyMeals: dirtyMeals,
			Plans:      plans,
			DirtyPlans: dirtyPlans,
		}, nil
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("dashboard-addr", "", "dashboard listen address")
	_ = viper.BindPFlag("dashboard.addr", runCmd.Flags().Lookup("dashboard-addr"))
}
