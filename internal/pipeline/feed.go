package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/space-weather-etl/internal/adapter/donki"
	"github.com/couchcryptid/space-weather-etl/internal/domain"
)

// ErrAbortRun marks a decomposition error that must stop the whole run rather
// than reject a single record.
var ErrAbortRun = errors.New("ingestion run aborted")

// MissingKpPolicy decides what happens to a storm record without allKpIndex.
type MissingKpPolicy string

const (
	// KpSkip rejects the record and continues with the rest of the batch.
	KpSkip MissingKpPolicy = "skip"
	// KpFail stops the run at the offending record.
	KpFail MissingKpPolicy = "fail"
)

// ParseMissingKpPolicy validates a policy name.
func ParseMissingKpPolicy(s string) (MissingKpPolicy, error) {
	switch p := MissingKpPolicy(s); p {
	case KpSkip, KpFail:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing kp policy %q", s)
	}
}

// Feed describes one DONKI feed: where to fetch it and how to break each
// element of the response array into rows.
type Feed struct {
	Name      string
	Path      string
	Decompose func(raw json.RawMessage) (domain.Decomposition, error)
}

// FlareFeed returns the solar flare (FLR) feed.
func FlareFeed() Feed {
	return Feed{
		Name: "FLR",
		Path: donki.PathFlares,
		Decompose: func(raw json.RawMessage) (domain.Decomposition, error) {
			var rec domain.FlareRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return domain.Decomposition{}, fmt.Errorf("decode flare record: %w", err)
			}
			if rec.FlrID == "" {
				return domain.Decomposition{}, fmt.Errorf("decode flare record: %w", domain.ErrMissingEventID)
			}
			return domain.DecomposeFlare(rec), nil
		},
	}
}

// StormFeed returns the geomagnetic storm (GST) feed. policy controls records
// that carry no Kp readings.
func StormFeed(policy MissingKpPolicy) Feed {
	return Feed{
		Name: "GST",
		Path: donki.PathStorms,
		Decompose: func(raw json.RawMessage) (domain.Decomposition, error) {
			var rec domain.StormRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return domain.Decomposition{}, fmt.Errorf("decode storm record: %w", err)
			}
			if rec.GstID == "" {
				return domain.Decomposition{}, fmt.Errorf("decode storm record: %w", domain.ErrMissingEventID)
			}
			d, err := domain.DecomposeStorm(rec)
			if err != nil {
				if policy == KpFail {
					return d, fmt.Errorf("%w: storm %s: %w", ErrAbortRun, rec.GstID, err)
				}
				return d, fmt.Errorf("storm %s: %w", rec.GstID, err)
			}
			return d, nil
		},
	}
}
