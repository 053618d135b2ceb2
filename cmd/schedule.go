package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/schedule"
)

var scheduleDate string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List the day's races",
	Long:  "Prints the race schedule for a date with each race's capture wake time. Schedules are cached in the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("schedule"); err != nil {
			return err
		}
		date, err := parseDate(scheduleDate, time.Now())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if n, err := st.DeleteExpired(ctx); err == nil && n > 0 {
			fmt.Fprintf(os.Stderr, "Pruned %d expired cache entries.\n", n)
		}

		loader, err := newScheduleLoader(cfg, st)
		if err != nil {
			return err
		}
		events, err := loader.EventsFor(ctx, date)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No races scheduled.")
			return nil
		}
		formatSchedule(os.Stdout, events, cfg.Capture.LeadInterval)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleDate, "date", "", "race date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(scheduleCmd)
}

// formatSchedule writes a table of events to out.
func formatSchedule(out io.Writer, events []model.Event, lead time.Duration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVENUE\tR\tSTART\tWAKE\tDIST\tCLASS\tSURFACE\tNAME")
	for _, ev := range events {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			ev.ID,
			ev.Venue,
			ev.RaceNumber,
			ev.StartTime.Local().Format("15:04"),
			schedule.WakeTime(ev.StartTime, lead).Local().Format("15:04"),
			ev.Distance,
			ev.Class,
			ev.Surface,
			ev.Name,
		)
	}
	_ = w.Flush()
}
