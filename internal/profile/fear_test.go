package profile

import (
	"testing"

	"github.com/mirrorlab/mirror/internal/synth"
)

func TestValidateFearComplete(t *testing.T) {
	obj, _, err := synth.ParseObject(`{
		"fears": [
			{"key": "rejection", "pct": 0.5},
			{"key": "failure", "pct": 0.3},
			{"key": "abandonment", "pct": 0.2}
		],
		"heat_map": [[0.1,0.2,0.3],[0.4,0.5,0.6],[0.7,0.8,0.9]],
		"geometry": {"cube": {"x": 0.5, "y": 0.3, "z": 0.2, "d": 0.6}},
		"top3": ["rejection", "failure", "abandonment"]
	}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	snap, notes, ok := validateFear(obj)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(notes) != 0 {
		t.Errorf("expected no repair notes, got %v", notes)
	}
	if len(snap.Fears) != 3 || snap.Fears[0].Key != "rejection" {
		t.Errorf("fears = %+v", snap.Fears)
	}
	if snap.HeatMap[1][1] != 0.5 {
		t.Errorf("heat map center = %v, want 0.5", snap.HeatMap[1][1])
	}
	if snap.Geometry.Cube.X != 0.5 {
		t.Errorf("cube x = %v, want 0.5", snap.Geometry.Cube.X)
	}
}

func TestValidateFearEmptyObjectDefaults(t *testing.T) {
	snap, notes, ok := validateFear(map[string]interface{}{})
	if !ok {
		t.Fatal("expected ok")
	}
	if len(notes) == 0 {
		t.Error("expected repair notes")
	}
	def := defaultFear()
	if len(snap.Fears) != len(def.Fears) {
		t.Errorf("fears = %+v, want defaults", snap.Fears)
	}
	if len(snap.Top3) != 3 {
		t.Fatalf("top3 length = %d, want 3", len(snap.Top3))
	}
	if len(snap.HeatMap) != 3 || len(snap.HeatMap[0]) != 3 {
		t.Errorf("heat map shape = %dx%d, want 3x3", len(snap.HeatMap), len(snap.HeatMap[0]))
	}
}

func TestValidateFearClampsPct(t *testing.T) {
	obj := map[string]interface{}{
		"fears": []interface{}{
			map[string]interface{}{"key": "rejection", "pct": 1.4},
		},
	}
	snap, notes, _ := validateFear(obj)
	if snap.Fears[0].Pct != 1 {
		t.Errorf("pct = %v, want clamped 1", snap.Fears[0].Pct)
	}
	found := false
	for _, n := range notes {
		if n == "fear pct clamped" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected clamp note, got %v", notes)
	}
}

func TestRepairHeatMapWrongShape(t *testing.T) {
	obj := map[string]interface{}{
		"heat_map": []interface{}{
			[]interface{}{1.5, 0.2},
			[]interface{}{0.3},
		},
	}
	hm, repaired := repairHeatMap(obj)
	if hm == nil {
		t.Fatal("expected repaired matrix, got nil")
	}
	if !repaired {
		t.Error("expected repaired flag")
	}
	if len(hm) != 3 {
		t.Fatalf("rows = %d, want 3", len(hm))
	}
	for i, row := range hm {
		if len(row) != 3 {
			t.Fatalf("row %d length = %d, want 3", i, len(row))
		}
		for j, v := range row {
			if v < 0 || v > 1 {
				t.Errorf("cell [%d][%d] = %v, out of [0,1]", i, j, v)
			}
		}
	}
	if hm[0][0] != 1 {
		t.Errorf("cell [0][0] = %v, want clamped 1", hm[0][0])
	}
}

func TestRepairHeatMapAbsent(t *testing.T) {
	hm, _ := repairHeatMap(map[string]interface{}{})
	if hm != nil {
		t.Errorf("expected nil for absent heat map, got %v", hm)
	}
}

func TestValidateFearTop3Backfill(t *testing.T) {
	// Only one fear, top3 mentions one unknown key: backfill to exactly 3.
	obj := map[string]interface{}{
		"fears": []interface{}{
			map[string]interface{}{"key": "rejection", "pct": 0.9},
		},
		"top3": []interface{}{"rejection", "made-up-fear"},
	}
	snap, _, _ := validateFear(obj)
	if len(snap.Top3) != 3 {
		t.Fatalf("top3 length = %d, want 3", len(snap.Top3))
	}
	if snap.Top3[0] != "rejection" {
		t.Errorf("top3[0] = %q, want rejection", snap.Top3[0])
	}
	for _, key := range snap.Top3 {
		if key == "made-up-fear" {
			t.Error("unknown key should be dropped from top3")
		}
		if !contains(fearKeys(snap.Fears), key) {
			t.Errorf("top3 key %q not present in fears", key)
		}
	}
}

func fearKeys(fears []FearEntry) []string {
	keys := make([]string, len(fears))
	for i, f := range fears {
		keys[i] = f.Key
	}
	return keys
}
