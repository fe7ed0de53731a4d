package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choreplan/internal/calendar"
	"github.com/dukerupert/choreplan/internal/cascade"
	"github.com/dukerupert/choreplan/internal/schedule"
	"github.com/dukerupert/choreplan/internal/store"
)

func (a *app) scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduling passes by hand",
	}
	cmd.AddCommand(a.ensureCmd(), a.paceCmd())
	return cmd
}

func (a *app) engine() (*cascade.Engine, *schedule.Service) {
	chores := store.NewChoreStore(a.db)
	schedules := store.NewScheduleStore(a.db)
	engine := cascade.NewEngine(chores, schedules)
	return engine, schedule.NewService(chores, schedules, store.NewCompletionStore(a.db), engine, a.logger)
}

func (a *app) ensureCmd() *cobra.Command {
	var through string
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create missing daily schedules from today up to --through",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			end := now.AddDate(0, 0, a.cfg.Schedule.HorizonDays)
			if through != "" {
				t, err := calendar.ParseDate(through)
				if err != nil {
					return err
				}
				end = t
			}

			_, svc := a.engine()
			created, err := svc.EnsureDaily(cmd.Context(), now, &end)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %d daily schedules through %s\n", created, calendar.DayKey(end))
			return nil
		},
	}
	cmd.Flags().StringVar(&through, "through", "", "last day, exclusive (YYYY-MM-DD); defaults to the configured horizon")
	return cmd
}

func (a *app) paceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pace",
		Short: "Report tiers that are behind for their current cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _ := a.engine()
			warnings, err := engine.CheckPace(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			if len(warnings) == 0 {
				fmt.Fprintln(a.out, "all tiers on pace")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tREMAINING\tSLOTS\tCYCLE")
			for _, w := range warnings {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s..%s\n", w.SourceTier, w.RemainingChores, w.RemainingSlots,
					calendar.DayKey(w.Cycle.Start), calendar.DayKey(w.Cycle.End))
			}
			return tw.Flush()
		},
	}
}
