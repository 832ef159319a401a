package profile

import "time"

// Deterministic local statistics computed from raw records. These are
// embedded verbatim into the synthesis prompts so that generated output is
// anchored to measurable behavior.

// wimtsOptions is the fixed option set offered per WIMTS round.
var wimtsOptions = []string{"A", "B", "C"}

// SelectionPatterns summarizes which variants a user tends to pick.
type SelectionPatterns struct {
	OptionPreferences map[string]int `json:"option_preferences"`
	TotalSelections   int            `json:"total_selections"`
	ConsistencyScore  float64        `json:"consistency_score"`
}

// AnalyzeSelections counts selections per option and derives a consistency
// score: max option count over total, 0 when there are no selections.
func AnalyzeSelections(selections []WimtsSelection) SelectionPatterns {
	p := SelectionPatterns{
		OptionPreferences: map[string]int{},
		TotalSelections:   len(selections),
	}
	for _, opt := range wimtsOptions {
		p.OptionPreferences[opt] = 0
	}

	for _, sel := range selections {
		opt := sel.OptionID
		if opt == "" {
			opt = "A"
		}
		if _, known := p.OptionPreferences[opt]; known {
			p.OptionPreferences[opt]++
		}
	}

	if p.TotalSelections == 0 {
		return p
	}
	maxCount := 0
	for _, n := range p.OptionPreferences {
		if n > maxCount {
			maxCount = n
		}
	}
	p.ConsistencyScore = float64(maxCount) / float64(p.TotalSelections)
	return p
}

// CompletionRate is completed sessions over total sessions, 0 when empty.
func CompletionRate(sessions []WimtsSession) float64 {
	if len(sessions) == 0 {
		return 0
	}
	completed := 0
	for _, s := range sessions {
		if s.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(sessions))
}

// FearIndicators are the signals grounding the fear-distribution prompt.
type FearIndicators struct {
	TotalDataPoints       int     `json:"total_data_points"`
	WimtsCompletionRate   float64 `json:"wimts_completion_rate"`
	ProfileEvolutionCount int     `json:"profile_evolution_count"`
}

// ExtractFearIndicators computes fear-prompt grounding from all three sources.
func ExtractFearIndicators(reflections []Reflection, sessions []IntakeSession, wimts []WimtsSession) FearIndicators {
	evolutions := 0
	for _, s := range wimts {
		if len(s.ProfileSnapshot) > 0 {
			evolutions++
		}
	}
	return FearIndicators{
		TotalDataPoints:       len(reflections) + len(sessions) + len(wimts),
		WimtsCompletionRate:   CompletionRate(wimts),
		ProfileEvolutionCount: evolutions,
	}
}

// InsightIndicators ground the insight-feed prompt.
type InsightIndicators struct {
	TotalSessions   int       `json:"total_sessions"`
	TotalSelections int       `json:"total_selections"`
	CompletionRate  float64   `json:"completion_rate"`
	RecentActivity  time.Time `json:"recent_activity"`
}

// ExtractInsightIndicators computes insight-prompt grounding. RecentActivity
// is the zero time when there are no sessions.
func ExtractInsightIndicators(wimts []WimtsSession, selections []WimtsSelection) InsightIndicators {
	ind := InsightIndicators{
		TotalSessions:   len(wimts),
		TotalSelections: len(selections),
		CompletionRate:  CompletionRate(wimts),
	}
	if len(wimts) > 0 {
		ind.RecentActivity = wimts[0].CreatedAt
	}
	return ind
}
