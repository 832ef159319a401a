package profile

import (
	"encoding/json"
	"time"
)

// Reflection is one captured communication moment: what the user first wrote
// and the phrasing they ultimately chose.
type Reflection struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	BaseIntakeText  string    `json:"base_intake_text"`
	TranslationText string    `json:"translation_text"`
	CreatedAt       time.Time `json:"created_at"`
}

// IntakeSession is a completed onboarding questionnaire.
type IntakeSession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	ProfileSnapshot json.RawMessage `json:"profile_snapshot,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WimtsSession is one "What I Meant To Say" generation round.
type WimtsSession struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	IntakeText      string          `json:"intake_text"`
	ProfileSnapshot json.RawMessage `json:"profile_snapshot,omitempty"`
	Completed       bool            `json:"completed"`
	CreatedAt       time.Time       `json:"created_at"`
}

// WimtsSelection records which variant (A, B or C) the user picked.
type WimtsSelection struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	OptionID   string    `json:"option_id"`
	SelectedAt time.Time `json:"selected_at"`
}

// LensWeights holds the four processing-axis weights, each in [0,1].
type LensWeights struct {
	N float64 `json:"N"`
	S float64 `json:"S"`
	T float64 `json:"T"`
	F float64 `json:"F"`
}

// CommunicationLens always carries both directions; a flat lens returned by
// the generator is promoted to incoming with a derived outgoing.
type CommunicationLens struct {
	Incoming LensWeights `json:"incoming"`
	Outgoing LensWeights `json:"outgoing"`
}

// CognitiveSnapshot summarizes inferred information-processing tendencies.
type CognitiveSnapshot struct {
	DominantStreams         []string          `json:"dominant_streams"`
	ShadowStreams           []string          `json:"shadow_streams"`
	ProcessingTendencies    []string          `json:"processing_tendencies"`
	BlindSpots              []string          `json:"blind_spots"`
	TriggerProbabilityIndex float64           `json:"trigger_probability_index"`
	CommunicationLens       CommunicationLens `json:"communication_lens"`
}

// FearEntry is one inferred fear theme with its share of the distribution.
type FearEntry struct {
	Key string  `json:"key"`
	Pct float64 `json:"pct"`
}

// CubeGeometry is the 3D coordinate summary used by the visualization layer.
type CubeGeometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	D float64 `json:"d"`
}

// FearSnapshot is the inferred emotional-fear distribution.
type FearSnapshot struct {
	Fears    []FearEntry `json:"fears"`
	HeatMap  [][]float64 `json:"heat_map"`
	Geometry struct {
		Cube CubeGeometry `json:"cube"`
	} `json:"geometry"`
	Top3 []string `json:"top3"`
}

// GeneratedInsight is a feed item as emitted by the synthesizer, before the
// store has assigned it a stable identity.
type GeneratedInsight struct {
	Type    string   `json:"type"` // trigger | pattern | breakthrough | mirror
	Icon    string   `json:"icon"`
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Tags    []string `json:"tags"`
}

// InsightItem is a reconciled feed item carrying its store identity and the
// user's persisted liked state.
type InsightItem struct {
	InsightID string    `json:"insight_id"`
	Type      string    `json:"type"`
	Icon      string    `json:"icon"`
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	Tags      []string  `json:"tags"`
	Liked     bool      `json:"liked"`
	TS        time.Time `json:"ts"`
}

// DialogueReplay is one inner-dialogue script with its reframe.
type DialogueReplay struct {
	Script  string `json:"script"`
	Reframe string `json:"reframe"`
}

// InsightsSnapshot is the deduplicated insight feed plus derived counters.
type InsightsSnapshot struct {
	Feed                []InsightItem    `json:"feed"`
	MirrorMoments       int              `json:"mirror_moments"`
	InnerDialogueReplay []DialogueReplay `json:"inner_dialogue_replay"`
}

// ProfileSnapshot is the aggregate root returned to callers. It is built per
// request and never cached.
type ProfileSnapshot struct {
	UserID            string            `json:"user_id"`
	CognitiveSnapshot CognitiveSnapshot `json:"cognitive_snapshot"`
	FearSnapshot      FearSnapshot      `json:"fear_snapshot"`
	InsightsSnapshot  InsightsSnapshot  `json:"insights_snapshot"`
	Metadata          SnapshotMetadata  `json:"metadata"`
}

// SnapshotMetadata tags a snapshot with its generation time and config version.
type SnapshotMetadata struct {
	GeneratedAt   time.Time `json:"generated_at"`
	ConfigVersion string    `json:"config_version"`
}
