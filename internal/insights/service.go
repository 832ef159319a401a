// Package insights runs the reflection-history analyses: weekly summaries,
// recurring-pattern and mirror-moment detection, and tip generation. Every
// task shares the profile pipeline's generation policy and degrades to an
// empty (never failing) result.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/synth"
)

// Thresholds for the weekly summary path.
const (
	weeklyWindow    = 7 * 24 * time.Hour
	weeklyMinimum   = 3  // full synthesis below this degrades to encouragement
	patternsMinimum = 5  // fewer reflections than this yields no patterns
	mirrorMaximum   = 3  // at most this many mirror moments per run
	defaultLimit    = 50 // reflections considered when no limit is given
)

// ReflectionSource reads a user's reflections from the record store.
type ReflectionSource interface {
	ReflectionsSince(ctx context.Context, userID string, since time.Time) ([]profile.Reflection, error)
	RecentReflections(ctx context.Context, userID string, limit int) ([]profile.Reflection, error)
}

// Archiver stores the insights produced by a successful weekly run.
// Storage is best-effort: a failure is logged, never surfaced.
type Archiver interface {
	ArchiveWeeklyInsights(ctx context.Context, userID string, items []WeeklyInsight, weekStart, weekEnd time.Time, reflectionCount int) error
}

// WeeklyInsight is one observation from the weekly analysis.
type WeeklyInsight struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"` // pattern | breakthrough | blind_spot | strength
}

// WeeklyReport is the threshold-gated weekly summary.
type WeeklyReport struct {
	Summary       string          `json:"summary"`
	TopThemes     []string        `json:"top_themes"`
	MirrorMoments int             `json:"mirror_moments"`
	Insights      []WeeklyInsight `json:"insights"`
}

// Pattern is one recurring communication behavior.
type Pattern struct {
	Pattern   string `json:"pattern"`
	Frequency string `json:"frequency"` // common | occasional | rare
	Insight   string `json:"insight"`
}

// MirrorMoment is a detected self-awareness breakthrough.
type MirrorMoment struct {
	ReflectionNumber int    `json:"reflection_number"`
	Insight          string `json:"insight"`
	Significance     string `json:"significance"`
}

// Tip is one actionable communication suggestion.
type Tip struct {
	Tip string `json:"tip"`
	Why string `json:"why"`
}

// Service runs the reflection analyses.
type Service struct {
	src     ReflectionSource
	archive Archiver
	gen     provider.TextGenerator
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates an insights Service. archive may be nil, in which case
// weekly insights are returned but not persisted.
func NewService(src ReflectionSource, archive Archiver, gen provider.TextGenerator, logger *zap.Logger) *Service {
	return &Service{
		src:     src,
		archive: archive,
		gen:     gen,
		logger:  logger,
		timeout: 60 * time.Second,
	}
}

// GenerateWeeklyInsights analyzes the trailing seven days of reflections.
// 0 records yields a "not enough data" report, 1-2 an interim encouragement,
// 3+ the full synthesis path. The report is always structurally valid.
func (s *Service) GenerateWeeklyInsights(ctx context.Context, userID string) *WeeklyReport {
	weekStart := time.Now().UTC().Add(-weeklyWindow)

	reflections, err := s.src.ReflectionsSince(ctx, userID, weekStart)
	if err != nil {
		s.logger.Warn("weekly reflections read failed, degrading to empty",
			zap.String("user", userID), zap.Error(err))
		reflections = nil
	}

	if len(reflections) == 0 {
		return &WeeklyReport{
			Summary:   "Not enough data yet. Complete a few more reflections to see your weekly insights!",
			TopThemes: []string{},
			Insights:  []WeeklyInsight{},
		}
	}

	if len(reflections) < weeklyMinimum {
		plural := "s"
		if len(reflections) == 1 {
			plural = ""
		}
		return &WeeklyReport{
			Summary: fmt.Sprintf("You've made %d reflection%s this week. Keep going! Your insights will become richer with more data.",
				len(reflections), plural),
			TopThemes: []string{},
			Insights:  []WeeklyInsight{},
		}
	}

	task := synth.Task[WeeklyReport]{
		Name:        "weekly_insights",
		Temperature: 0.7,
		Validate:    validateWeekly,
		Fallback: func() WeeklyReport {
			return WeeklyReport{
				Summary:   fmt.Sprintf("You've created %d reflections this week. Your communication mirror is building!", len(reflections)),
				TopThemes: []string{},
				Insights:  []WeeklyInsight{},
			}
		},
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result := synth.Run(tctx, s.gen, s.logger, task, weeklyPrompt(reflections))
	report := result.Value

	if s.archive != nil && result.Outcome != synth.Defaulted && len(report.Insights) > 0 {
		if err := s.archive.ArchiveWeeklyInsights(ctx, userID, report.Insights, weekStart, time.Now().UTC(), len(reflections)); err != nil {
			s.logger.Error("weekly insight archive failed",
				zap.String("user", userID), zap.Error(err))
		}
	}
	return &report
}

// DetectPatterns identifies recurring communication patterns across the
// user's recent reflections. Fewer than five reflections yields an empty
// sequence, as does any generation failure.
func (s *Service) DetectPatterns(ctx context.Context, userID string, limit int) []Pattern {
	if limit <= 0 {
		limit = defaultLimit
	}
	reflections, err := s.src.RecentReflections(ctx, userID, limit)
	if err != nil || len(reflections) < patternsMinimum {
		if err != nil {
			s.logger.Warn("pattern reflections read failed",
				zap.String("user", userID), zap.Error(err))
		}
		return []Pattern{}
	}

	task := synth.Task[[]Pattern]{
		Name:        "pattern_detection",
		Temperature: 0.7,
		Validate:    validatePatterns,
		Fallback:    func() []Pattern { return []Pattern{} },
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return synth.Run(tctx, s.gen, s.logger, task, patternsPrompt(reflections)).Value
}

// DetectMirrorMoments finds the most significant self-awareness
// breakthroughs, returning at most three.
func (s *Service) DetectMirrorMoments(ctx context.Context, userID string, limit int) []MirrorMoment {
	if limit <= 0 {
		limit = 20
	}
	reflections, err := s.src.RecentReflections(ctx, userID, limit)
	if err != nil || len(reflections) == 0 {
		if err != nil {
			s.logger.Warn("mirror reflections read failed",
				zap.String("user", userID), zap.Error(err))
		}
		return []MirrorMoment{}
	}

	task := synth.Task[[]MirrorMoment]{
		Name:        "mirror_moments",
		Temperature: 0.7,
		Validate: func(obj map[string]interface{}) ([]MirrorMoment, []string, bool) {
			return validateMirrorMoments(obj, len(reflections))
		},
		Fallback: func() []MirrorMoment { return []MirrorMoment{} },
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return synth.Run(tctx, s.gen, s.logger, task, mirrorPrompt(reflections)).Value
}

// GenerateTips turns detected patterns into actionable suggestions. When no
// patterns were detected there is nothing to advise on and the result is
// empty.
func (s *Service) GenerateTips(ctx context.Context, userID string) []Tip {
	patterns := s.DetectPatterns(ctx, userID, 30)
	if len(patterns) == 0 {
		return []Tip{}
	}

	task := synth.Task[[]Tip]{
		Name:        "tip_generation",
		Temperature: 0.7,
		Validate:    validateTips,
		Fallback:    func() []Tip { return []Tip{} },
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return synth.Run(tctx, s.gen, s.logger, task, tipsPrompt(patterns)).Value
}

// --- prompts ---

func weeklyPrompt(reflections []profile.Reflection) string {
	var texts strings.Builder
	for i, r := range reflections {
		chosen := r.TranslationText
		if chosen == "" {
			chosen = r.BaseIntakeText
		}
		fmt.Fprintf(&texts, "Reflection %d (%s):\nOriginal: %q\nChosen: %q\n\n",
			i+1, r.CreatedAt.Format("2006-01-02"), r.BaseIntakeText, chosen)
	}

	return fmt.Sprintf(`You are an AI communication coach analyzing a user's weekly communication patterns.

Here are their %d reflections from the past 7 days:

%s
Analyze these reflections and provide:

1. A weekly summary (2-3 sentences) highlighting their main communication patterns and any growth observed
2. Top 3 themes - recurring topics or emotions (single words or short phrases like "clarity", "boundaries", "directness")
3. Number of "mirror moments" - times they had breakthroughs or significant self-awareness (be conservative - only count real insights)
4. 3-5 specific insights - actionable observations about their communication style with categories:
   - "pattern" - recurring behavior
   - "breakthrough" - moment of growth
   - "blind_spot" - area for improvement
   - "strength" - what they're doing well

Be encouraging but honest. Focus on patterns, not individual events.

Format your response as valid JSON:
{
  "summary": "2-3 sentence summary here",
  "top_themes": ["theme1", "theme2", "theme3"],
  "mirror_moments": 0,
  "insights": [
    {
      "title": "Short insight title (4-6 words)",
      "content": "1-2 sentence description of the insight",
      "category": "pattern|breakthrough|blind_spot|strength"
    }
  ]
}`, len(reflections), texts.String())
}

func patternsPrompt(reflections []profile.Reflection) string {
	var texts strings.Builder
	for i, r := range reflections {
		fmt.Fprintf(&texts, "%d. %s\n", i+1, r.BaseIntakeText)
	}

	return fmt.Sprintf(`Analyze these %d communication examples and identify 3-5 recurring patterns:

%s
Return patterns as JSON array. Be specific and actionable:
{
  "patterns": [
    {
      "pattern": "Brief description of the pattern",
      "frequency": "common|occasional|rare",
      "insight": "What this reveals about their communication style"
    }
  ]
}`, len(reflections), texts.String())
}

func mirrorPrompt(reflections []profile.Reflection) string {
	var texts strings.Builder
	for i, r := range reflections {
		chosen := r.TranslationText
		if chosen == "" {
			chosen = r.BaseIntakeText
		}
		fmt.Fprintf(&texts, "%d. Original: %q\n   Chosen: %q\n", i+1, r.BaseIntakeText, chosen)
	}

	return fmt.Sprintf(`Identify "mirror moments" - times when the user had a significant breakthrough in self-awareness or communication:

%s
Look for:
- Major shifts from reactive to thoughtful communication
- Recognition of patterns they weren't aware of
- Growth in emotional intelligence
- Breakthroughs in clarity or directness

Return only the most significant moments (0-3 max):
{
  "moments": [
    {
      "reflection_number": 1,
      "insight": "What they realized or shifted",
      "significance": "Why this matters for their growth"
    }
  ]
}`, texts.String())
}

func tipsPrompt(patterns []Pattern) string {
	var texts strings.Builder
	for i, p := range patterns {
		fmt.Fprintf(&texts, "%d. %s (%s)\n", i+1, p.Pattern, p.Frequency)
	}

	return fmt.Sprintf(`Based on these communication patterns, generate 3 actionable tips for improvement:

%s
Return tips as JSON:
{
  "tips": [
    {
      "tip": "Specific, actionable advice (1 sentence)",
      "why": "Brief explanation of the benefit"
    }
  ]
}`, texts.String())
}

// --- validation ---

var weeklyCategories = map[string]bool{
	"pattern":      true,
	"breakthrough": true,
	"blind_spot":   true,
	"strength":     true,
}

func validateWeekly(obj map[string]interface{}) (WeeklyReport, []string, bool) {
	var notes []string
	report := WeeklyReport{
		Summary:   synth.Str(obj, "summary", "Keep reflecting to build your communication mirror!"),
		TopThemes: synth.StrSlice(obj, "top_themes"),
		Insights:  []WeeklyInsight{},
	}
	if report.TopThemes == nil {
		report.TopThemes = []string{}
		notes = append(notes, "top_themes defaulted")
	}

	mm := synth.Num(obj, "mirror_moments", 0)
	if mm < 0 {
		notes = append(notes, "mirror_moments clamped to 0")
		mm = 0
	}
	report.MirrorMoments = int(mm)

	for _, raw := range synth.ObjSlice(obj, "insights") {
		ins := WeeklyInsight{
			Title:    synth.Str(raw, "title", ""),
			Content:  synth.Str(raw, "content", ""),
			Category: synth.Str(raw, "category", "pattern"),
		}
		if ins.Title == "" || ins.Content == "" {
			notes = append(notes, "insight without title/content dropped")
			continue
		}
		if !weeklyCategories[ins.Category] {
			notes = append(notes, "insight category coerced to pattern")
			ins.Category = "pattern"
		}
		report.Insights = append(report.Insights, ins)
	}

	return report, notes, true
}

func validatePatterns(obj map[string]interface{}) ([]Pattern, []string, bool) {
	if _, present := obj["patterns"]; !present {
		return nil, nil, false
	}

	var notes []string
	patterns := []Pattern{}
	for _, m := range synth.ObjSlice(obj, "patterns") {
		p := Pattern{
			Pattern:   synth.Str(m, "pattern", ""),
			Frequency: synth.Str(m, "frequency", "occasional"),
			Insight:   synth.Str(m, "insight", ""),
		}
		if p.Pattern == "" {
			notes = append(notes, "empty pattern dropped")
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, notes, true
}

func validateMirrorMoments(obj map[string]interface{}, reflectionCount int) ([]MirrorMoment, []string, bool) {
	if _, present := obj["moments"]; !present {
		return nil, nil, false
	}

	var notes []string
	moments := []MirrorMoment{}
	for _, m := range synth.ObjSlice(obj, "moments") {
		if len(moments) == mirrorMaximum {
			notes = append(notes, "excess mirror moments dropped")
			break
		}
		num := int(synth.Num(m, "reflection_number", 0))
		if num < 1 || num > reflectionCount {
			notes = append(notes, "reflection_number out of range dropped")
			continue
		}
		moments = append(moments, MirrorMoment{
			ReflectionNumber: num,
			Insight:          synth.Str(m, "insight", ""),
			Significance:     synth.Str(m, "significance", ""),
		})
	}
	return moments, notes, true
}

func validateTips(obj map[string]interface{}) ([]Tip, []string, bool) {
	if _, present := obj["tips"]; !present {
		return nil, nil, false
	}

	var notes []string
	tips := []Tip{}
	for _, m := range synth.ObjSlice(obj, "tips") {
		t := Tip{
			Tip: synth.Str(m, "tip", ""),
			Why: synth.Str(m, "why", ""),
		}
		if t.Tip == "" {
			notes = append(notes, "empty tip dropped")
			continue
		}
		tips = append(tips, t)
	}
	return tips, notes, true
}
