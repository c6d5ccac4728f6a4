// Command genmock reads saved DONKI FLR and GST responses and writes the rows
// and ingestion notices the pipeline would produce for them. It runs the real
// feed decomposition so fixtures match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -flr testdata/flr_2024-05.json \
//	  -gst testdata/gst_2024-05.json \
//	  -out testdata/rows_2024-05.json
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/domain"
	"github.com/couchcryptid/space-weather-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// fixtureRunID stamps every generated notice so output is reproducible.
const fixtureRunID = "00000000-0000-0000-0000-000000000000"

// fixture is the generated output.
type fixture struct {
	Rows     []domain.Row         `json:"rows"`
	Notices  []domain.EventNotice `json:"notices"`
	Rejected []string             `json:"rejected,omitempty"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flrPath := flag.String("flr", "", "saved DONKI FLR response (JSON array)")
	gstPath := flag.String("gst", "", "saved DONKI GST response (JSON array)")
	out := flag.String("out", "", "output path for the rows fixture")
	flag.Parse()

	if (*flrPath == "" && *gstPath == "") || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out and at least one of -flr, -gst")
	}

	// Set a fixed clock for reproducible IngestedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.August, 23, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	var fx fixture
	inputs := []struct {
		path string
		feed pipeline.Feed
	}{
		{*flrPath, pipeline.FlareFeed()},
		{*gstPath, pipeline.StormFeed(pipeline.KpSkip)},
	}
	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		body, err := os.ReadFile(in.path)
		if err != nil {
			return fmt.Errorf("read %s: %w", in.path, err)
		}
		if err := fx.add(in.feed, body); err != nil {
			return fmt.Errorf("processing %s: %w", in.path, err)
		}
		log.Printf("%s: %s", in.feed.Name, in.path)
	}

	if err := writeJSON(*out, fx); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote fixture: %s", *out)

	printStats(fx)
	return nil
}

// add decomposes every record of a feed response into fx.
func (fx *fixture) add(feed pipeline.Feed, body []byte) error {
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return fmt.Errorf("decode %s array: %w", feed.Name, err)
	}
	for i, raw := range records {
		d, err := feed.Decompose(raw)
		if err != nil {
			if errors.Is(err, pipeline.ErrAbortRun) {
				return err
			}
			fx.Rejected = append(fx.Rejected, fmt.Sprintf("%s[%d]: %v", feed.Name, i, err))
			continue
		}
		rows := d.Rows()
		fx.Rows = append(fx.Rows, rows...)
		fx.Notices = append(fx.Notices, domain.NewEventNotice(fixtureRunID, d, len(rows), 0))
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(fx fixture) {
	tables := map[string]int{}
	for _, r := range fx.Rows {
		tables[r.Table]++
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	severities := map[float64]int{}
	unscored := 0
	for _, n := range fx.Notices {
		if n.Severity == nil {
			unscored++
			continue
		}
		severities[*n.Severity]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Events: %d (rejected %d)\n", len(fx.Notices), len(fx.Rejected))
	for _, name := range names {
		fmt.Printf("  %-22s %d\n", name, tables[name])
	}
	fmt.Printf("Unscored: %d\n", unscored)
	for sev := 0.0; sev <= 9; sev++ {
		if n := severities[sev]; n > 0 {
			fmt.Printf("  severity %.0f: %d\n", sev, n)
		}
	}
}
