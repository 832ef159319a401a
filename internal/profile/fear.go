package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/synth"
)

func defaultFear() FearSnapshot {
	snap := FearSnapshot{
		Fears: []FearEntry{
			{Key: "powerlessness", Pct: 0.4},
			{Key: "betrayal", Pct: 0.3},
			{Key: "incompetence", Pct: 0.3},
		},
		HeatMap: [][]float64{
			{0.4, 0.3, 0.2},
			{0.3, 0.5, 0.3},
			{0.2, 0.3, 0.4},
		},
		Top3: []string{"powerlessness", "betrayal", "incompetence"},
	}
	snap.Geometry.Cube = CubeGeometry{X: 0.4, Y: 0.3, Z: 0.3, D: 0.58}
	return snap
}

func synthesizeFear(ctx context.Context, gen provider.TextGenerator, logger *zap.Logger, agg *Aggregate) synth.Result[FearSnapshot] {
	task := synth.Task[FearSnapshot]{
		Name:        "fear_snapshot",
		Temperature: 0.3,
		Validate:    validateFear,
		Fallback:    defaultFear,
	}
	return synth.Run(ctx, gen, logger, task, fearPrompt(agg))
}

func fearPrompt(agg *Aggregate) string {
	indicators := ExtractFearIndicators(agg.Reflections, agg.IntakeSessions, agg.WimtsSessions)
	indicatorsJSON, _ := json.Marshal(indicators)

	return fmt.Sprintf(`Analyze user's fear patterns from:
- %d reflections
- %d intake sessions
- %d WIMTS sessions

Fear Indicators: %s

Return JSON with:
- fears: array of {key: string, pct: number} for fears like powerlessness, betrayal, incompetence
- heat_map: 3x3 2D array of intensity values (0-1)
- geometry: {cube: {x, y, z, d}} for 3D visualization
- top3: top 3 fear keys

Base on communication themes, not clinical assessment.`,
		len(agg.Reflections), len(agg.IntakeSessions), len(agg.WimtsSessions), indicatorsJSON)
}

func validateFear(obj map[string]interface{}) (FearSnapshot, []string, bool) {
	var notes []string
	def := defaultFear()
	snap := FearSnapshot{}

	// Fears
	for _, raw := range synth.ObjSlice(obj, "fears") {
		key := synth.Str(raw, "key", "")
		if key == "" {
			continue
		}
		pct := synth.Num(raw, "pct", 0)
		if clamped := synth.Clamp01(pct); clamped != pct {
			notes = append(notes, "fear pct clamped")
			pct = clamped
		}
		snap.Fears = append(snap.Fears, FearEntry{Key: key, Pct: pct})
	}
	if len(snap.Fears) == 0 {
		snap.Fears = def.Fears
		notes = append(notes, "fears defaulted")
	}

	// Heat map: exactly 3x3 with every cell in [0,1].
	heatMap, repaired := repairHeatMap(obj)
	if heatMap == nil {
		snap.HeatMap = def.HeatMap
		notes = append(notes, "heat_map defaulted")
	} else {
		snap.HeatMap = heatMap
		if repaired {
			notes = append(notes, "heat_map repaired")
		}
	}

	// Geometry cube
	cube := def.Geometry.Cube
	if geo, ok := synth.Obj(obj, "geometry"); ok {
		if rawCube, ok := synth.Obj(geo, "cube"); ok {
			cube = CubeGeometry{
				X: synth.Clamp01(synth.Num(rawCube, "x", def.Geometry.Cube.X)),
				Y: synth.Clamp01(synth.Num(rawCube, "y", def.Geometry.Cube.Y)),
				Z: synth.Clamp01(synth.Num(rawCube, "z", def.Geometry.Cube.Z)),
				D: synth.Clamp01(synth.Num(rawCube, "d", def.Geometry.Cube.D)),
			}
		} else {
			notes = append(notes, "geometry defaulted")
		}
	} else {
		notes = append(notes, "geometry defaulted")
	}
	snap.Geometry.Cube = cube

	// Top3: exactly 3 keys, each drawn from fears.
	known := make(map[string]bool, len(snap.Fears))
	for _, f := range snap.Fears {
		known[f.Key] = true
	}
	for _, key := range synth.StrSlice(obj, "top3") {
		if len(snap.Top3) == 3 {
			break
		}
		if known[key] {
			snap.Top3 = append(snap.Top3, key)
		} else {
			notes = append(notes, "top3 entry outside fears dropped")
		}
	}
	for _, f := range snap.Fears {
		if len(snap.Top3) == 3 {
			break
		}
		if !contains(snap.Top3, f.Key) {
			snap.Top3 = append(snap.Top3, f.Key)
			notes = append(notes, "top3 backfilled from fears")
		}
	}
	for _, f := range def.Fears {
		if len(snap.Top3) == 3 {
			break
		}
		if !contains(snap.Top3, f.Key) {
			snap.Fears = append(snap.Fears, f)
			snap.Top3 = append(snap.Top3, f.Key)
			notes = append(notes, "top3 backfilled from defaults")
		}
	}

	return snap, notes, true
}

// repairHeatMap extracts a 3x3 matrix, clamping cells and padding or
// truncating rows. Returns nil when nothing numeric is present; the second
// result reports whether any repair was applied.
func repairHeatMap(obj map[string]interface{}) ([][]float64, bool) {
	raw, ok := obj["heat_map"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, false
	}

	repaired := false
	out := make([][]float64, 3)
	for i := 0; i < 3; i++ {
		out[i] = make([]float64, 3)
		var row []interface{}
		if i < len(raw) {
			row, _ = raw[i].([]interface{})
		}
		if row == nil {
			repaired = true
		}
		for j := 0; j < 3; j++ {
			v := 0.0
			if j < len(row) {
				if f, ok := row[j].(float64); ok {
					v = f
				} else {
					repaired = true
				}
			} else {
				repaired = true
			}
			if clamped := synth.Clamp01(v); clamped != v {
				repaired = true
				v = clamped
			}
			out[i][j] = v
		}
	}
	if len(raw) != 3 {
		repaired = true
	}
	return out, repaired
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
