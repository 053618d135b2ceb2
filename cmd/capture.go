package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/pipeline"
	"github.com/sells-group/prerace-cli/internal/source"
)

var (
	captureEvent  string
	captureDate   string
	captureNoWait bool
	captureAll    bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture, score and grade a race",
	Long:  "Waits until the lead interval before a race starts, collects the three sources, integrates them, scores the field and grades the prediction. With --all every remaining race of the day is captured in start order.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if (captureEvent == "") == !captureAll {
			return eris.New("exactly one of --event or --all is required")
		}
		if err := cfg.Validate("capture"); err != nil {
			return err
		}
		date, err := parseDate(captureDate, time.Now())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCapture(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := pipeline.Options{NoWait: captureNoWait}

		if captureEvent != "" {
			event, err := env.Schedule.Event(ctx, date, captureEvent)
			if err != nil {
				return err
			}
			run, err := env.Runner.Run(ctx, event, opts)
			if run != nil {
				formatCapture(os.Stdout, run)
			}
			return err
		}

		events, err := env.Schedule.Upcoming(ctx, date, time.Now())
		if err != nil {
			return err
		}
		if len(events) == 0 {
			zap.L().Info("no remaining races", zap.String("date", date.Format(source.DateLayout)))
			return nil
		}
		zap.L().Info("capturing remaining races", zap.Int("events", len(events)))

		runs, err := env.Runner.RunAll(ctx, events, opts)
		for _, run := range runs {
			formatCapture(os.Stdout, run)
		}
		return err
	},
}

func init() {
	captureCmd.Flags().StringVar(&captureEvent, "event", "", "event id to capture")
	captureCmd.Flags().StringVar(&captureDate, "date", "", "race date (YYYY-MM-DD, default today)")
	captureCmd.Flags().BoolVar(&captureNoWait, "no-wait", false, "start collecting immediately")
	captureCmd.Flags().BoolVar(&captureAll, "all", false, "capture every remaining race of the day")
	rootCmd.AddCommand(captureCmd)
}

// parseDate parses a YYYY-MM-DD flag value in the local zone. Empty means
// the date of now.
func parseDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	}
	t, err := time.ParseInLocation(source.DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --date %q", s)
	}
	return t, nil
}

// formatCapture writes a run's outcome and ranking to out.
func formatCapture(out io.Writer, run *model.Run) {
	_, _ = fmt.Fprintf(out, "%s  %s R%d  %s\n", run.Event.ID, run.Event.Venue, run.Event.RaceNumber, run.Status)
	if run.Error != "" {
		_, _ = fmt.Fprintf(out, "  error: %s\n", run.Error)
	}
	if run.Result == nil || run.Result.Confidence == nil {
		return
	}
	g := run.Result.Confidence
	featured := ""
	if g.Featured {
		featured = "  FEATURED"
	}
	_, _ = fmt.Fprintf(out, "  grade: %s  separation: %.3f%s\n", g.Grade, g.Separation, featured)
	if g.Reason != "" {
		_, _ = fmt.Fprintf(out, "  reason: %s\n", g.Reason)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  RANK\tNO\tHORSE\tSCORE\tODDS")
	for _, e := range g.Ranking {
		odds := "-"
		if e.Odds != nil {
			odds = fmt.Sprintf("%.1f", *e.Odds)
		}
		_, _ = fmt.Fprintf(w, "  %d\t%d\t%s\t%.4f\t%s\n", e.Rank, e.ProgramNumber, e.HorseName, e.Score, odds)
	}
	_ = w.Flush()
}
