package domain

import "errors"

// Relational tables written by the ingestion pipelines.
const (
	TableSolarFlares       = "solar_flares"
	TableFlareInstruments  = "flare_instruments"
	TableFlareLinkedEvents = "flare_linked_events"
	TableStorms            = "geomagnetic_storms"
	TableStormKpIndices    = "storm_kp_indices"
	TableStormLinkedEvents = "storm_linked_events"
	TableAPIRequests       = "api_requests"
)

// FlareDataSource tags every solar_flares row.
const FlareDataSource = "NASA"

// ErrMissingKpIndex reports a storm record without an allKpIndex list.
var ErrMissingKpIndex = errors.New("storm record has no allKpIndex list")

// ErrMissingEventID reports a record without its upstream identifier
// (flrID or gstID), including a JSON null array element.
var ErrMissingEventID = errors.New("record has no event identifier")

// Row is one relational fact: a table and its column values.
// A nil value is written as NULL.
type Row struct {
	Table  string         `json:"table"`
	Fields map[string]any `json:"fields"`
}

// Decomposition is an envelope broken into a parent row and the child rows
// that reference it. Children must only be written after the parent insert
// has been attempted.
type Decomposition struct {
	Kind      Kind
	EventID   string
	EventTime *string
	Class     string
	Severity  *float64
	Parent    Row
	Children  []Row
}

// Rows returns the parent followed by its children, in write order.
func (d Decomposition) Rows() []Row {
	rows := make([]Row, 0, 1+len(d.Children))
	rows = append(rows, d.Parent)
	return append(rows, d.Children...)
}

// DecomposeFlare turns one FLR envelope into a solar_flares row followed by
// its instrument and linked-event rows.
func DecomposeFlare(rec FlareRecord) Decomposition {
	var activeRegion any
	if rec.ActiveRegionNum != nil {
		activeRegion = *rec.ActiveRegionNum
	}

	d := Decomposition{
		Kind:      KindFlare,
		EventID:   rec.FlrID,
		EventTime: optionalTimestamp(rec.PeakTime),
		Class:     rec.ClassType,
		Parent: Row{
			Table: TableSolarFlares,
			Fields: map[string]any{
				"flr_id":            rec.FlrID,
				"begin_time":        nullableTimestamp(rec.BeginTime),
				"peak_time":         nullableTimestamp(rec.PeakTime),
				"end_time":          nullableTimestamp(rec.EndTime),
				"class_type":        rec.ClassType,
				"source_location":   rec.SourceLocation,
				"active_region_num": activeRegion,
				"data_source":       FlareDataSource,
			},
		},
	}
	if sev, ok := FlareSeverity(rec.ClassType); ok {
		d.Severity = &sev
	}

	for _, inst := range rec.Instruments {
		d.Children = append(d.Children, Row{
			Table: TableFlareInstruments,
			Fields: map[string]any{
				"flr_id":       rec.FlrID,
				"display_name": inst.DisplayName,
			},
		})
	}
	for _, ev := range rec.LinkedEvents {
		d.Children = append(d.Children, Row{
			Table: TableFlareLinkedEvents,
			Fields: map[string]any{
				"flr_id":      rec.FlrID,
				"activity_id": ev.ActivityID,
			},
		})
	}
	return d
}

// DecomposeStorm turns one GST envelope into a geomagnetic_storms row followed
// by one storm_kp_indices row per reading and its linked-event rows. It returns
// ErrMissingKpIndex, and no rows, when the record carries no allKpIndex list.
func DecomposeStorm(rec StormRecord) (Decomposition, error) {
	if rec.AllKpIndex == nil {
		return Decomposition{}, ErrMissingKpIndex
	}

	d := Decomposition{
		Kind:      KindStorm,
		EventID:   rec.GstID,
		EventTime: optionalTimestamp(rec.StartTime),
		Parent: Row{
			Table: TableStorms,
			Fields: map[string]any{
				"gst_id":      rec.GstID,
				"start_time":  nullableTimestamp(rec.StartTime),
				"data_source": rec.Source,
			},
		},
	}

	for _, kp := range rec.AllKpIndex {
		var kpIndex any
		if kp.KpIndex != nil {
			kpIndex = *kp.KpIndex
			if sev := StormSeverity(*kp.KpIndex); d.Severity == nil || sev > *d.Severity {
				d.Severity = &sev
			}
		}
		d.Children = append(d.Children, Row{
			Table: TableStormKpIndices,
			Fields: map[string]any{
				"gst_id":        rec.GstID,
				"observed_time": nullableTimestamp(kp.ObservedTime),
				"kp_index":      kpIndex,
				"source":        kp.Source,
			},
		})
	}
	for _, ev := range rec.LinkedEvents {
		d.Children = append(d.Children, Row{
			Table: TableStormLinkedEvents,
			Fields: map[string]any{
				"gst_id":      rec.GstID,
				"activity_id": ev.ActivityID,
			},
		})
	}
	return d, nil
}
