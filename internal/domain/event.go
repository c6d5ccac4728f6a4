package domain

import "time"

// FlareRecord is one element of the DONKI FLR response.
type FlareRecord struct {
	FlrID           string        `json:"flrID"`
	BeginTime       string        `json:"beginTime"`
	PeakTime        string        `json:"peakTime"`
	EndTime         string        `json:"endTime"`
	ClassType       string        `json:"classType"`
	SourceLocation  string        `json:"sourceLocation"`
	ActiveRegionNum *int          `json:"activeRegionNum"`
	Instruments     []Instrument  `json:"instruments"`
	LinkedEvents    []LinkedEvent `json:"linkedEvents"`
}

// StormRecord is one element of the DONKI GST response.
// AllKpIndex is nil when the key is absent or null, and an empty slice when
// upstream sent an explicit empty list.
type StormRecord struct {
	GstID        string        `json:"gstID"`
	StartTime    string        `json:"startTime"`
	Source       string        `json:"source"`
	AllKpIndex   []KpReading   `json:"allKpIndex"`
	LinkedEvents []LinkedEvent `json:"linkedEvents"`
}

// Instrument names a detector that observed a flare.
type Instrument struct {
	DisplayName string `json:"displayName"`
}

// LinkedEvent references another DONKI activity (CME, SEP, ...) related to an event.
type LinkedEvent struct {
	ActivityID string `json:"activityID"`
}

// KpReading is a single three-hourly Kp observation within a storm.
// KpIndex is nil when upstream sent no value.
type KpReading struct {
	ObservedTime string   `json:"observedTime"`
	KpIndex      *float64 `json:"kpIndex"`
	Source       string   `json:"source"`
}

// Kind identifies the event feed a record came from.
type Kind string

const (
	KindFlare Kind = "flare"
	KindStorm Kind = "storm"
)

// EventNotice summarizes one ingested envelope for downstream consumers.
type EventNotice struct {
	RunID       string    `json:"run_id"`
	Kind        Kind      `json:"kind"`
	EventID     string    `json:"event_id"`
	EventTime   *string   `json:"event_time"`
	Class       string    `json:"class,omitempty"`
	Severity    *float64  `json:"severity"`
	RowsWritten int       `json:"rows_written"`
	RowsFailed  int       `json:"rows_failed"`
	IngestedAt  time.Time `json:"ingested_at"`
}
