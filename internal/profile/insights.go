package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/synth"
)

// insightTypes is the closed set of feed item kinds.
var insightTypes = map[string]bool{
	"trigger":      true,
	"pattern":      true,
	"breakthrough": true,
	"mirror":       true,
}

// generatedFeed is the insight task's raw output, before reconciliation has
// assigned store identities.
type generatedFeed struct {
	Feed                []GeneratedInsight
	MirrorMoments       int
	InnerDialogueReplay []DialogueReplay
}

func defaultFeed() generatedFeed {
	return generatedFeed{
		Feed:                nil,
		MirrorMoments:       0,
		InnerDialogueReplay: []DialogueReplay{},
	}
}

func synthesizeInsights(ctx context.Context, gen provider.TextGenerator, logger *zap.Logger, agg *Aggregate) synth.Result[generatedFeed] {
	task := synth.Task[generatedFeed]{
		Name:        "insight_feed",
		Temperature: 0.2, // lower temperature for more deterministic feeds
		Validate:    validateFeed,
		Fallback:    defaultFeed,
	}
	return synth.Run(ctx, gen, logger, task, insightsPrompt(agg))
}

func insightsPrompt(agg *Aggregate) string {
	indicators := ExtractInsightIndicators(agg.WimtsSessions, agg.Selections)
	indicatorsJSON, _ := json.Marshal(indicators)

	return fmt.Sprintf(`Generate insights from communication journey:
- %d reflections
- %d intake sessions
- %d WIMTS sessions
- %d selections

Patterns: %s

Return JSON with:
- feed: array of 3-5 insights with {type, icon, title, snippet, tags}
  types: trigger, pattern, breakthrough, mirror
  icons: 💡,🔥,✨,🪞
- mirror_moments: count of self-awareness breakthroughs
- inner_dialogue_replay: array of {script, reframe} pairs

Focus on growth, patterns, and actionable insights.`,
		len(agg.Reflections), len(agg.IntakeSessions), len(agg.WimtsSessions),
		len(agg.Selections), indicatorsJSON)
}

func validateFeed(obj map[string]interface{}) (generatedFeed, []string, bool) {
	var notes []string
	feed := generatedFeed{InnerDialogueReplay: []DialogueReplay{}}

	for _, raw := range synth.ObjSlice(obj, "feed") {
		ins := GeneratedInsight{
			Type:    synth.Str(raw, "type", "pattern"),
			Icon:    synth.Str(raw, "icon", "💡"),
			Title:   synth.Str(raw, "title", ""),
			Snippet: synth.Str(raw, "snippet", ""),
			Tags:    synth.StrSlice(raw, "tags"),
		}
		if ins.Title == "" || ins.Snippet == "" {
			notes = append(notes, "feed item without title/snippet dropped")
			continue
		}
		if !insightTypes[ins.Type] {
			notes = append(notes, "feed item type coerced to pattern")
			ins.Type = "pattern"
		}
		if ins.Tags == nil {
			ins.Tags = []string{}
		}
		feed.Feed = append(feed.Feed, ins)
	}
	if _, present := obj["feed"]; !present {
		notes = append(notes, "feed defaulted to empty")
	}

	mm := synth.Num(obj, "mirror_moments", 0)
	if mm < 0 {
		notes = append(notes, "mirror_moments clamped to 0")
		mm = 0
	}
	feed.MirrorMoments = int(mm)

	for _, raw := range synth.ObjSlice(obj, "inner_dialogue_replay") {
		script := synth.Str(raw, "script", "")
		reframe := synth.Str(raw, "reframe", "")
		if script == "" && reframe == "" {
			continue
		}
		feed.InnerDialogueReplay = append(feed.InnerDialogueReplay, DialogueReplay{
			Script:  script,
			Reframe: reframe,
		})
	}

	return feed, notes, true
}
