package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/synth"
)

// Neutral cognitive defaults, used per-field and as the total fallback.
var (
	defaultDominantStreams      = []string{"Feeling", "Intuition"}
	defaultShadowStreams        = []string{"Thinking", "Sensing"}
	defaultProcessingTendencies = []string{"empathetic", "intuitive", "pattern-seeking"}
	defaultBlindSpots           = []string{"details", "direct confrontation"}
	defaultIncomingLens         = LensWeights{N: 0.6, S: 0.4, T: 0.4, F: 0.7}
	defaultOutgoingLens         = LensWeights{N: 0.5, S: 0.5, T: 0.5, F: 0.6}
)

func defaultCognitive() CognitiveSnapshot {
	return CognitiveSnapshot{
		DominantStreams:         defaultDominantStreams,
		ShadowStreams:           defaultShadowStreams,
		ProcessingTendencies:    defaultProcessingTendencies,
		BlindSpots:              defaultBlindSpots,
		TriggerProbabilityIndex: 0.5,
		CommunicationLens: CommunicationLens{
			Incoming: defaultIncomingLens,
			Outgoing: defaultOutgoingLens,
		},
	}
}

func synthesizeCognitive(ctx context.Context, gen provider.TextGenerator, logger *zap.Logger, agg *Aggregate) synth.Result[CognitiveSnapshot] {
	task := synth.Task[CognitiveSnapshot]{
		Name:        "cognitive_snapshot",
		Temperature: 0.3,
		Validate:    validateCognitive,
		Fallback:    defaultCognitive,
	}
	return synth.Run(ctx, gen, logger, task, cognitivePrompt(agg))
}

func cognitivePrompt(agg *Aggregate) string {
	patterns := AnalyzeSelections(agg.Selections)
	patternsJSON, _ := json.Marshal(patterns)

	history := historicalSnapshots(agg.WimtsSessions, 3)
	historyJSON, _ := json.Marshal(history)

	var b strings.Builder
	fmt.Fprintf(&b, `Based on user's communication patterns from:
- %d reflections
- %d intake sessions
- %d WIMTS sessions
- %d WIMTS selections
- %d historical profile snapshots

WIMTS Selection Patterns: %s

Historical Profile Data: %s

`, len(agg.Reflections), len(agg.IntakeSessions), len(agg.WimtsSessions),
		len(agg.Selections), len(history), patternsJSON, historyJSON)

	b.WriteString(`Generate a cognitive snapshot. Return JSON with EXACTLY this structure:
{
  "dominant_streams": ["Feeling", "Intuition"],
  "shadow_streams": ["Thinking", "Sensing"],
  "processing_tendencies": ["empathetic", "pattern-seeking", "abstract thinking"],
  "blind_spots": ["details", "direct feedback"],
  "trigger_probability_index": 0.5,
  "communication_lens": {
    "incoming": { "N": 0.6, "S": 0.4, "T": 0.4, "F": 0.7 },
    "outgoing": { "N": 0.5, "S": 0.5, "T": 0.5, "F": 0.6 }
  }
}

IMPORTANT: communication_lens MUST have both "incoming" and "outgoing" objects, each with N, S, T, F keys.
Be practical and non-judgmental.`)
	return b.String()
}

// historicalSnapshots returns up to max prior profile snapshots carried on
// WIMTS sessions, newest first.
func historicalSnapshots(sessions []WimtsSession, max int) []json.RawMessage {
	var out []json.RawMessage
	for _, s := range sessions {
		if len(s.ProfileSnapshot) == 0 {
			continue
		}
		out = append(out, s.ProfileSnapshot)
		if len(out) == max {
			break
		}
	}
	return out
}

func validateCognitive(obj map[string]interface{}) (CognitiveSnapshot, []string, bool) {
	var notes []string

	snap := CognitiveSnapshot{
		DominantStreams:      synth.StrSlice(obj, "dominant_streams"),
		ShadowStreams:        synth.StrSlice(obj, "shadow_streams"),
		ProcessingTendencies: synth.StrSlice(obj, "processing_tendencies"),
		BlindSpots:           synth.StrSlice(obj, "blind_spots"),
	}
	if snap.DominantStreams == nil {
		snap.DominantStreams = defaultDominantStreams
		notes = append(notes, "dominant_streams defaulted")
	}
	if snap.ShadowStreams == nil {
		snap.ShadowStreams = defaultShadowStreams
		notes = append(notes, "shadow_streams defaulted")
	}
	if snap.ProcessingTendencies == nil {
		snap.ProcessingTendencies = defaultProcessingTendencies
		notes = append(notes, "processing_tendencies defaulted")
	}
	if snap.BlindSpots == nil {
		snap.BlindSpots = defaultBlindSpots
		notes = append(notes, "blind_spots defaulted")
	}

	tpi := synth.Num(obj, "trigger_probability_index", 0.5)
	if clamped := synth.Clamp01(tpi); clamped != tpi {
		notes = append(notes, "trigger_probability_index clamped")
		tpi = clamped
	}
	snap.TriggerProbabilityIndex = tpi

	lens, lensNotes := repairLens(obj)
	snap.CommunicationLens = lens
	notes = append(notes, lensNotes...)

	return snap, notes, true
}

// repairLens enforces the lens invariant: both directions present with all
// four keys in [0,1]. A flat {N,S,T,F} object is promoted to incoming with a
// derived outgoing; no signal at all yields the fixed neutral lens.
func repairLens(obj map[string]interface{}) (CommunicationLens, []string) {
	raw, ok := synth.Obj(obj, "communication_lens")
	if !ok {
		return CommunicationLens{Incoming: defaultIncomingLens, Outgoing: defaultOutgoingLens},
			[]string{"communication_lens defaulted"}
	}

	inRaw, hasIn := synth.Obj(raw, "incoming")
	outRaw, hasOut := synth.Obj(raw, "outgoing")

	if hasIn && hasOut {
		var notes []string
		in, inNotes := lensWeights(inRaw, defaultIncomingLens)
		out, outNotes := lensWeights(outRaw, defaultOutgoingLens)
		notes = append(notes, inNotes...)
		notes = append(notes, outNotes...)
		return CommunicationLens{Incoming: in, Outgoing: out}, notes
	}

	// Flat structure: interpret the top-level weights as incoming and derive
	// outgoing from the same signal with neutral-lean defaults.
	if _, flat := raw["N"]; flat {
		in := LensWeights{
			N: synth.Clamp01(synth.Num(raw, "N", defaultIncomingLens.N)),
			S: synth.Clamp01(synth.Num(raw, "S", defaultIncomingLens.S)),
			T: synth.Clamp01(synth.Num(raw, "T", defaultIncomingLens.T)),
			F: synth.Clamp01(synth.Num(raw, "F", defaultIncomingLens.F)),
		}
		out := LensWeights{
			N: synth.Clamp01(synth.Num(raw, "N", defaultOutgoingLens.N)),
			S: synth.Clamp01(synth.Num(raw, "S", defaultOutgoingLens.S)),
			T: synth.Clamp01(synth.Num(raw, "T", defaultOutgoingLens.T)),
			F: synth.Clamp01(synth.Num(raw, "F", defaultOutgoingLens.F)),
		}
		return CommunicationLens{Incoming: in, Outgoing: out},
			[]string{"communication_lens promoted from flat structure"}
	}

	return CommunicationLens{Incoming: defaultIncomingLens, Outgoing: defaultOutgoingLens},
		[]string{"communication_lens defaulted"}
}

func lensWeights(raw map[string]interface{}, def LensWeights) (LensWeights, []string) {
	var notes []string
	read := func(key string, d float64) float64 {
		v := synth.Num(raw, key, d)
		if clamped := synth.Clamp01(v); clamped != v {
			notes = append(notes, "lens "+key+" clamped")
			return clamped
		}
		return v
	}
	return LensWeights{
		N: read("N", def.N),
		S: read("S", def.S),
		T: read("T", def.T),
		F: read("F", def.F),
	}, notes
}
