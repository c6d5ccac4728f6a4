package domain

// flareFamilySeverity maps single-severity flare families to the unified scale.
// M is absent because it splits into three sub-levels.
var flareFamilySeverity = map[byte]float64{
	'A': 3,
	'B': 4,
	'C': 5,
	'X': 9,
}

// FlareSeverity maps a flare class such as "M2.5" onto the 0–9 severity scale.
// The first character selects the family; for M flares the single digit right
// after the letter picks the sub-level (<3 → 6, <6 → 7, otherwise 8). Further
// digits and decimals are ignored.
//
// It reports false for an empty class, an unknown family, or an M class with
// no digit after the letter.
func FlareSeverity(classType string) (float64, bool) {
	if classType == "" {
		return 0, false
	}

	family := classType[0]
	if family != 'M' {
		sev, ok := flareFamilySeverity[family]
		return sev, ok
	}

	if len(classType) < 2 || classType[1] < '0' || classType[1] > '9' {
		return 0, false
	}
	switch sub := classType[1] - '0'; {
	case sub < 3:
		return 6, true
	case sub < 6:
		return 7, true
	default:
		return 8, true
	}
}

// StormSeverity returns the severity of a Kp reading, which is already on the
// 0–9 scale.
func StormSeverity(kpIndex float64) float64 {
	return kpIndex
}
