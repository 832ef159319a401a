package profile

import (
	"testing"

	"github.com/mirrorlab/mirror/internal/synth"
)

func TestValidateCognitiveComplete(t *testing.T) {
	obj, _, err := synth.ParseObject(`{
		"dominant_streams": ["Thinking"],
		"shadow_streams": ["Feeling"],
		"processing_tendencies": ["analytical"],
		"blind_spots": ["emotions"],
		"trigger_probability_index": 0.7,
		"communication_lens": {
			"incoming": {"N": 0.1, "S": 0.9, "T": 0.8, "F": 0.2},
			"outgoing": {"N": 0.3, "S": 0.7, "T": 0.6, "F": 0.4}
		}
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	snap, notes, ok := validateCognitive(obj)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(notes) != 0 {
		t.Errorf("expected no repair notes, got %v", notes)
	}
	if snap.TriggerProbabilityIndex != 0.7 {
		t.Errorf("tpi = %v, want 0.7", snap.TriggerProbabilityIndex)
	}
	if snap.CommunicationLens.Incoming.S != 0.9 {
		t.Errorf("incoming S = %v, want 0.9", snap.CommunicationLens.Incoming.S)
	}
}

func TestValidateCognitiveMissingFieldsDefaulted(t *testing.T) {
	snap, notes, ok := validateCognitive(map[string]interface{}{})
	if !ok {
		t.Fatal("expected ok")
	}
	if len(notes) == 0 {
		t.Error("expected repair notes for empty object")
	}
	if len(snap.DominantStreams) == 0 {
		t.Error("dominant streams should fall back to defaults")
	}
	if snap.TriggerProbabilityIndex != 0.5 {
		t.Errorf("tpi = %v, want neutral 0.5", snap.TriggerProbabilityIndex)
	}
	if snap.CommunicationLens.Incoming != defaultIncomingLens {
		t.Errorf("incoming lens = %+v, want default", snap.CommunicationLens.Incoming)
	}
	if snap.CommunicationLens.Outgoing != defaultOutgoingLens {
		t.Errorf("outgoing lens = %+v, want default", snap.CommunicationLens.Outgoing)
	}
}

func TestValidateCognitiveClampsTPI(t *testing.T) {
	snap, notes, _ := validateCognitive(map[string]interface{}{
		"trigger_probability_index": 1.8,
	})
	if snap.TriggerProbabilityIndex != 1 {
		t.Errorf("tpi = %v, want 1", snap.TriggerProbabilityIndex)
	}
	found := false
	for _, n := range notes {
		if n == "trigger_probability_index clamped" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected clamp note, got %v", notes)
	}
}

func TestRepairLensFlatPromotion(t *testing.T) {
	obj, _, err := synth.ParseObject(`{
		"communication_lens": {"N": 0.8, "S": 0.2, "T": 0.3, "F": 0.9}
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	lens, notes := repairLens(obj)
	if lens.Incoming.N != 0.8 || lens.Incoming.F != 0.9 {
		t.Errorf("incoming = %+v, want flat weights promoted", lens.Incoming)
	}
	// Outgoing is derived from the same flat weights.
	if lens.Outgoing.N != 0.8 {
		t.Errorf("outgoing N = %v, want 0.8", lens.Outgoing.N)
	}
	if len(notes) != 1 || notes[0] != "communication_lens promoted from flat structure" {
		t.Errorf("notes = %v, want promotion note", notes)
	}
}

func TestRepairLensIncomingOnlyDefaults(t *testing.T) {
	// Only one direction present and no flat keys: unusable, full default.
	obj := map[string]interface{}{
		"communication_lens": map[string]interface{}{
			"incoming": map[string]interface{}{"N": 0.9},
		},
	}
	lens, notes := repairLens(obj)
	if lens.Incoming != defaultIncomingLens || lens.Outgoing != defaultOutgoingLens {
		t.Errorf("lens = %+v, want full default", lens)
	}
	if len(notes) == 0 {
		t.Error("expected default note")
	}
}

func TestRepairLensClampsWeights(t *testing.T) {
	obj := map[string]interface{}{
		"communication_lens": map[string]interface{}{
			"incoming": map[string]interface{}{"N": 1.5, "S": 0.4, "T": 0.4, "F": -0.2},
			"outgoing": map[string]interface{}{"N": 0.5, "S": 0.5, "T": 0.5, "F": 0.6},
		},
	}
	lens, notes := repairLens(obj)
	if lens.Incoming.N != 1 {
		t.Errorf("incoming N = %v, want clamped 1", lens.Incoming.N)
	}
	if lens.Incoming.F != 0 {
		t.Errorf("incoming F = %v, want clamped 0", lens.Incoming.F)
	}
	if len(notes) != 2 {
		t.Errorf("expected 2 clamp notes, got %v", notes)
	}
}

func TestHistoricalSnapshotsCap(t *testing.T) {
	sessions := []WimtsSession{
		{ID: "1", ProfileSnapshot: []byte(`{"v":1}`)},
		{ID: "2"},
		{ID: "3", ProfileSnapshot: []byte(`{"v":3}`)},
		{ID: "4", ProfileSnapshot: []byte(`{"v":4}`)},
		{ID: "5", ProfileSnapshot: []byte(`{"v":5}`)},
	}
	got := historicalSnapshots(sessions, 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	if string(got[0]) != `{"v":1}` || string(got[2]) != `{"v":4}` {
		t.Errorf("unexpected snapshot order: %s, %s", got[0], got[2])
	}
}
