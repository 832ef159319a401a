package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/provider"
)

type memReflectionSource struct {
	reflections []profile.Reflection
	fail        bool
}

func (m *memReflectionSource) ReflectionsSince(ctx context.Context, userID string, since time.Time) ([]profile.Reflection, error) {
	if m.fail {
		return nil, errors.New("source down")
	}
	return m.reflections, nil
}

func (m *memReflectionSource) RecentReflections(ctx context.Context, userID string, limit int) ([]profile.Reflection, error) {
	if m.fail {
		return nil, errors.New("source down")
	}
	if len(m.reflections) > limit {
		return m.reflections[:limit], nil
	}
	return m.reflections, nil
}

type memArchiver struct {
	archived []WeeklyInsight
	calls    int
}

func (m *memArchiver) ArchiveWeeklyInsights(ctx context.Context, userID string, items []WeeklyInsight, weekStart, weekEnd time.Time, reflectionCount int) error {
	m.archived = append(m.archived, items...)
	m.calls++
	return nil
}

type fixedGenerator struct {
	response string
	err      error
	calls    int
}

func (g *fixedGenerator) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func someReflections(n int) []profile.Reflection {
	out := make([]profile.Reflection, n)
	for i := range out {
		out[i] = profile.Reflection{
			ID:             fmt.Sprintf("r%d", i),
			UserID:         "u1",
			BaseIntakeText: fmt.Sprintf("reflection %d", i),
			CreatedAt:      time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestWeeklyInsightsNoData(t *testing.T) {
	gen := &fixedGenerator{}
	svc := NewService(&memReflectionSource{}, nil, gen, zap.NewNop())

	report := svc.GenerateWeeklyInsights(context.Background(), "u1")
	if !strings.Contains(report.Summary, "Not enough data yet") {
		t.Errorf("summary = %q, want not-enough-data message", report.Summary)
	}
	if gen.calls != 0 {
		t.Errorf("generator should not be called with zero reflections, calls = %d", gen.calls)
	}
	if report.TopThemes == nil || report.Insights == nil {
		t.Error("report slices must be empty, not nil")
	}
}

func TestWeeklyInsightsInterimEncouragement(t *testing.T) {
	gen := &fixedGenerator{}
	svc := NewService(&memReflectionSource{reflections: someReflections(2)}, nil, gen, zap.NewNop())

	report := svc.GenerateWeeklyInsights(context.Background(), "u1")
	if !strings.Contains(report.Summary, "You've made 2 reflections this week") {
		t.Errorf("summary = %q, want interim message", report.Summary)
	}
	if gen.calls != 0 {
		t.Errorf("generator should not be called below the minimum, calls = %d", gen.calls)
	}
}

func TestWeeklyInsightsSingularMessage(t *testing.T) {
	svc := NewService(&memReflectionSource{reflections: someReflections(1)}, nil, &fixedGenerator{}, zap.NewNop())
	report := svc.GenerateWeeklyInsights(context.Background(), "u1")
	if !strings.Contains(report.Summary, "1 reflection this week") {
		t.Errorf("summary = %q, want singular phrasing", report.Summary)
	}
}

func TestWeeklyInsightsFullSynthesis(t *testing.T) {
	gen := &fixedGenerator{response: `{
		"summary": "Strong week with clearer asks.",
		"top_themes": ["clarity", "boundaries"],
		"mirror_moments": 1,
		"insights": [
			{"title": "Softening less", "content": "You hedge less before requests.", "category": "strength"},
			{"title": "Odd category", "content": "Something noticed.", "category": "weird"}
		]
	}`}
	archiver := &memArchiver{}
	svc := NewService(&memReflectionSource{reflections: someReflections(4)}, archiver, gen, zap.NewNop())

	report := svc.GenerateWeeklyInsights(context.Background(), "u1")
	if report.Summary != "Strong week with clearer asks." {
		t.Errorf("summary = %q", report.Summary)
	}
	if len(report.Insights) != 2 {
		t.Fatalf("insights = %d, want 2", len(report.Insights))
	}
	if report.Insights[1].Category != "pattern" {
		t.Errorf("category = %q, want coerced pattern", report.Insights[1].Category)
	}
	if archiver.calls != 1 || len(archiver.archived) != 2 {
		t.Errorf("expected archived run, calls = %d archived = %d", archiver.calls, len(archiver.archived))
	}
}

func TestWeeklyInsightsFallbackNotArchived(t *testing.T) {
	gen := &fixedGenerator{err: errors.New("provider down")}
	archiver := &memArchiver{}
	svc := NewService(&memReflectionSource{reflections: someReflections(5)}, archiver, gen, zap.NewNop())

	report := svc.GenerateWeeklyInsights(context.Background(), "u1")
	if !strings.Contains(report.Summary, "You've created 5 reflections this week") {
		t.Errorf("summary = %q, want fallback message", report.Summary)
	}
	if archiver.calls != 0 {
		t.Errorf("defaulted run must not be archived, calls = %d", archiver.calls)
	}
	if gen.calls != 1 {
		t.Errorf("unreachable provider gets no retry, calls = %d", gen.calls)
	}
}

func TestDetectPatternsBelowMinimum(t *testing.T) {
	gen := &fixedGenerator{}
	svc := NewService(&memReflectionSource{reflections: someReflections(4)}, nil, gen, zap.NewNop())

	patterns := svc.DetectPatterns(context.Background(), "u1", 0)
	if len(patterns) != 0 {
		t.Errorf("expected no patterns below minimum, got %d", len(patterns))
	}
	if gen.calls != 0 {
		t.Errorf("generator should not be called, calls = %d", gen.calls)
	}
}

func TestDetectPatterns(t *testing.T) {
	gen := &fixedGenerator{response: `{
		"patterns": [
			{"pattern": "Apologizing before asking", "frequency": "common", "insight": "You pre-soften requests."},
			{"pattern": "", "frequency": "rare", "insight": "dropped"}
		]
	}`}
	svc := NewService(&memReflectionSource{reflections: someReflections(6)}, nil, gen, zap.NewNop())

	patterns := svc.DetectPatterns(context.Background(), "u1", 0)
	if len(patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(patterns))
	}
	if patterns[0].Pattern != "Apologizing before asking" {
		t.Errorf("pattern = %q", patterns[0].Pattern)
	}
}

func TestDetectPatternsMissingKeyRetriesThenEmpty(t *testing.T) {
	gen := &fixedGenerator{response: `{"something_else": []}`}
	svc := NewService(&memReflectionSource{reflections: someReflections(6)}, nil, gen, zap.NewNop())

	patterns := svc.DetectPatterns(context.Background(), "u1", 0)
	if len(patterns) != 0 {
		t.Errorf("expected empty patterns, got %d", len(patterns))
	}
	if gen.calls != 2 {
		t.Errorf("missing key should trigger the retry, calls = %d", gen.calls)
	}
}

func TestDetectMirrorMomentsCapAndRange(t *testing.T) {
	gen := &fixedGenerator{response: `{
		"moments": [
			{"reflection_number": 1, "insight": "a", "significance": "s"},
			{"reflection_number": 99, "insight": "out of range", "significance": "s"},
			{"reflection_number": 2, "insight": "b", "significance": "s"},
			{"reflection_number": 3, "insight": "c", "significance": "s"},
			{"reflection_number": 4, "insight": "excess", "significance": "s"}
		]
	}`}
	svc := NewService(&memReflectionSource{reflections: someReflections(10)}, nil, gen, zap.NewNop())

	moments := svc.DetectMirrorMoments(context.Background(), "u1", 0)
	if len(moments) != 3 {
		t.Fatalf("moments = %d, want capped at 3", len(moments))
	}
	for _, m := range moments {
		if m.ReflectionNumber < 1 || m.ReflectionNumber > 10 {
			t.Errorf("reflection number %d out of range", m.ReflectionNumber)
		}
	}
}

func TestDetectMirrorMomentsNoReflections(t *testing.T) {
	gen := &fixedGenerator{}
	svc := NewService(&memReflectionSource{}, nil, gen, zap.NewNop())

	moments := svc.DetectMirrorMoments(context.Background(), "u1", 0)
	if len(moments) != 0 {
		t.Errorf("expected no moments, got %d", len(moments))
	}
	if gen.calls != 0 {
		t.Errorf("generator should not be called, calls = %d", gen.calls)
	}
}

func TestGenerateTipsEmptyWithoutPatterns(t *testing.T) {
	// Four reflections: below the pattern minimum, so no patterns, so no tips
	// and no generation call at all.
	gen := &fixedGenerator{}
	svc := NewService(&memReflectionSource{reflections: someReflections(4)}, nil, gen, zap.NewNop())

	tips := svc.GenerateTips(context.Background(), "u1")
	if len(tips) != 0 {
		t.Errorf("expected no tips, got %d", len(tips))
	}
	if gen.calls != 0 {
		t.Errorf("generator should not be called, calls = %d", gen.calls)
	}
}

func TestGenerateTips(t *testing.T) {
	// One response shape serves both the pattern call and the tip call.
	gen := &fixedGenerator{response: `{
		"patterns": [{"pattern": "Hedging", "frequency": "common", "insight": "soft asks"}],
		"tips": [{"tip": "State the ask first", "why": "Clarity up front reduces friction"}]
	}`}
	svc := NewService(&memReflectionSource{reflections: someReflections(6)}, nil, gen, zap.NewNop())

	tips := svc.GenerateTips(context.Background(), "u1")
	if len(tips) != 1 {
		t.Fatalf("tips = %d, want 1", len(tips))
	}
	if tips[0].Tip != "State the ask first" {
		t.Errorf("tip = %q", tips[0].Tip)
	}
}

func TestWeeklyInsightsSourceFailureDegrades(t *testing.T) {
	svc := NewService(&memReflectionSource{fail: true}, nil, &fixedGenerator{}, zap.NewNop())
	report := svc.GenerateWeeklyInsights(context.Background(), "u1")
	if !strings.Contains(report.Summary, "Not enough data yet") {
		t.Errorf("summary = %q, want degradation to the no-data message", report.Summary)
	}
}
