// Package domain models NASA DONKI space-weather event data and its relational
// decomposition.
//
// # Data Source
//
// Events come from the Space Weather Database Of Notifications, Knowledge,
// Information (DONKI), https://api.nasa.gov/DONKI. Two feeds are ingested:
//
//	FLR  solar flares             GET /FLR?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD&api_key=...
//	GST  geomagnetic storms       GET /GST?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD&api_key=...
//
// Both return a JSON array of nested records (an envelope per event). An empty
// window may return an empty array or an empty body.
//
// # DONKI Data Conventions
//
// Time format:
//
//	"YYYY-MM-DDTHH:MMZ" in UTC, minute precision, e.g. "2024-02-22T10:30Z".
//	Stored as "YYYY-MM-DD HH:MM:SS". Anything else (null, seconds present, a
//	missing "Z") is stored as NULL rather than failing the record. See
//	[NormalizeTimestamp].
//
// Flare class:
//
//	A letter A, B, C, M or X followed by a sub-level, e.g. "M2.5" or "X1.1".
//	Each letter is a tenfold step in peak X-ray flux.
//
// Kp index:
//
//	Planetary K-index readings on a 0–9 scale, reported every three hours in
//	a storm's "allKpIndex" list. Values may be fractional (e.g. 6.67).
//
// # Severity Scale
//
// Flares and storms are projected onto one 0–9 ordinal axis so both can be
// plotted together:
//
//	Flares:  A 3 | B 4 | C 5 | M0–M2 6 | M3–M5 7 | M6–M9 8 | X 9
//	Storms:  the Kp index as reported
//
// Only the first digit after "M" is consulted, so "M9.9" lands on 8 and "M10"
// on 6. See [FlareSeverity].
//
// # Relational Decomposition
//
// One envelope becomes one parent row plus child rows that reference the
// parent's upstream identifier (flrID or gstID). Parents are always listed
// before children so the parent insert is attempted first. See [DecomposeFlare]
// and [DecomposeStorm].
package domain
