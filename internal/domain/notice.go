package domain

// NewEventNotice summarizes a written decomposition. written and failed count
// the rows whose insert succeeded or failed for this envelope.
func NewEventNotice(runID string, d Decomposition, written, failed int) EventNotice {
	return EventNotice{
		RunID:       runID,
		Kind:        d.Kind,
		EventID:     d.EventID,
		EventTime:   d.EventTime,
		Class:       d.Class,
		Severity:    d.Severity,
		RowsWritten: written,
		RowsFailed:  failed,
		IngestedAt:  clock.Now().UTC(),
	}
}
