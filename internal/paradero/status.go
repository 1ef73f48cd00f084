package paradero

// Status is the congestion tier of a paradero, derived from its person count.
type Status string

const (
	StatusLow      Status = "low"
	StatusMedium   Status = "medium"
	StatusHigh     Status = "high"
	StatusCritical Status = "critical"
)

// Statuses lists every tier from least to most congested.
var Statuses = []Status{StatusLow, StatusMedium, StatusHigh, StatusCritical}

// Classify maps a person count to its tier. Thresholds are strict: 21, 51
// and 76 already belong to the higher tier.
func Classify(personCount int) Status {
	switch {
	case personCount > 75:
		return StatusCritical
	case personCount > 50:
		return StatusHigh
	case personCount > 20:
		return StatusMedium
	default:
		return StatusLow
	}
}

// Severity orders tiers: low=0 through critical=3. Unknown values return -1.
func (s Status) Severity() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the four tiers.
func (s Status) Valid() bool {
	return s.Severity() >= 0
}

// Label returns the Spanish display label used by the dashboard charts.
func (s Status) Label() string {
	switch s {
	case StatusLow:
		return "Bajo"
	case StatusMedium:
		return "Medio"
	case StatusHigh:
		return "Alto"
	case StatusCritical:
		return "Crítico"
	default:
		return string(s)
	}
}

// Color returns the marker/chart color for the tier.
func (s Status) Color() string {
	switch s {
	case StatusLow:
		return "#4ade80" // green-400
	case StatusMedium:
		return "#facc15" // yellow-400
	case StatusHigh:
		return "#fb923c" // orange-400
	case StatusCritical:
		return "#f87171" // red-400
	default:
		return "#9ca3af"
	}
}
