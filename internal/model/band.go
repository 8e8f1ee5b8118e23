package model

type Band string

const (
	BandNone     Band = "none"
	BandPending  Band = "pending"
	BandElevated Band = "elevated"
	BandCritical Band = "critical"
)

func (b Band) String() string { return string(b) }

func (b Band) Valid() bool {
	return b == BandNone || b == BandPending || b == BandElevated || b == BandCritical
}

// BandThresholds are the upper bounds of each band. Each bound is
// exclusive on the lower side and inclusive on the upper side.
type BandThresholds struct {
	Pending  int64 // balances <= Pending classify as none
	Elevated int64
	Critical int64
}

// ClassifyBand maps a balance onto its severity band:
// (Pending, Elevated] => pending, (Elevated, Critical] => elevated,
// above Critical => critical, everything at or below Pending => none.
func ClassifyBand(balance int64, t BandThresholds) Band {
	switch {
	case balance <= t.Pending:
		return BandNone
	case balance <= t.Elevated:
		return BandPending
	case balance <= t.Critical:
		return BandElevated
	default:
		return BandCritical
	}
}
