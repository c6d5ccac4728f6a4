package domain

import "time"

const (
	// donkiTimeLayout is the upstream minute-precision UTC format. The trailing
	// Z is a literal, not a zone directive.
	donkiTimeLayout = "2006-01-02T15:04Z"

	// StorageTimeLayout is the format written to timestamp columns.
	StorageTimeLayout = "2006-01-02 15:04:05"
)

// NormalizeTimestamp converts a DONKI timestamp ("2024-02-22T10:30Z") into the
// storage format ("2024-02-22 10:30:00"). It reports false for any input that
// does not match the upstream pattern exactly.
func NormalizeTimestamp(s string) (string, bool) {
	// time.Parse accepts a single-digit hour, so pin the width first.
	if len(s) != len(donkiTimeLayout) {
		return "", false
	}
	t, err := time.Parse(donkiTimeLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(StorageTimeLayout), true
}

// nullableTimestamp normalizes s for a row field: the storage string, or nil
// so the column is written as NULL.
func nullableTimestamp(s string) any {
	if v, ok := NormalizeTimestamp(s); ok {
		return v
	}
	return nil
}

func optionalTimestamp(s string) *string {
	if v, ok := NormalizeTimestamp(s); ok {
		return &v
	}
	return nil
}
