package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/pipeline"
	"github.com/spf13/cobra"
)

// backfillStart and backfillEnd bound the historical window loaded by backfill.
const (
	backfillStart = "2024-02-22"
	backfillEnd   = "2024-08-22"
)

func newIngestCmd(c *cli) *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:       "ingest [flares|storms|all]",
		Short:     "Fetch a DONKI window and write it to the database",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"flares", "storms", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "all"
			if len(args) == 1 {
				which = args[0]
			}
			window, err := resolveWindow(start, end, time.Now().UTC(), c.cfg.IngestWindowDays)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), c, which, window, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day to ingest (YYYY-MM-DD); defaults to INGEST_WINDOW_DAYS before --end")
	cmd.Flags().StringVar(&end, "end", "", "last day to ingest (YYYY-MM-DD); defaults to today")
	return cmd
}

func newBackfillCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Ingest both feeds for the fixed historical window " + backfillStart + ".." + backfillEnd,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := pipeline.ParseWindow(backfillStart, backfillEnd)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), c, "all", window, cmd.OutOrStdout())
		},
	}
}

// resolveWindow fills in whichever of start and end is missing.
func resolveWindow(start, end string, now time.Time, days int) (pipeline.Window, error) {
	if end == "" {
		end = now.Format(pipeline.DateLayout)
	}
	if start == "" {
		e, err := time.Parse(pipeline.DateLayout, end)
		if err != nil {
			return pipeline.Window{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		start = e.AddDate(0, 0, -days).Format(pipeline.DateLayout)
	}
	return pipeline.ParseWindow(start, end)
}

// selectFeeds returns the feeds named by which, in flare-then-storm order.
func selectFeeds(feeds map[string]pipeline.Feed, which string) ([]pipeline.Feed, error) {
	switch which {
	case "all":
		return []pipeline.Feed{feeds["flares"], feeds["storms"]}, nil
	case "flares", "storms":
		return []pipeline.Feed{feeds[which]}, nil
	default:
		return nil, fmt.Errorf("unknown feed %q", which)
	}
}

func runIngest(ctx context.Context, c *cli, which string, window pipeline.Window, out io.Writer) error {
	a, err := newApp(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.close()

	feeds, err := selectFeeds(a.feeds(), which)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, feed := range feeds {
		report, err := a.ingester.Run(ctx, feed, window)
		if encErr := enc.Encode(report); encErr != nil {
			return fmt.Errorf("write report: %w", encErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
