package models

type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// ParseSeverity matches the exact enum labels a detector emits.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s), true
	default:
		return "", false
	}
}

// Rank orders the labels from Low (1) to High (3).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Classification is the visual treatment for a severity label.
type Classification struct {
	Severity  Severity
	Color     string
	TextColor string
	Icon      string
	Alarm     bool
}

var classifications = map[Severity]Classification{
	SeverityHigh:   {Severity: SeverityHigh, Color: "#ff4d4d", TextColor: "#fff", Icon: "🔴", Alarm: true},
	SeverityMedium: {Severity: SeverityMedium, Color: "#ffcc00", TextColor: "#000", Icon: "🟠"},
	SeverityLow:    {Severity: SeverityLow, Color: "#32cd32", TextColor: "#000", Icon: "🟢"},
}

// Classify is total: anything outside the enum, including an empty label,
// gets the Low treatment.
func Classify(raw string) Classification {
	sev, ok := ParseSeverity(raw)
	if !ok {
		return classifications[SeverityLow]
	}
	return classifications[sev]
}

func (a Alert) Classification() Classification {
	return Classify(a.Severity())
}

func (a Alert) IsHigh() bool {
	return a.Classification().Alarm
}
