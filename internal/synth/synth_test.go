package synth

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
)

// scriptedGenerator returns queued responses in order; an empty string in the
// queue means an error for that call.
type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	if g.calls >= len(g.responses) {
		return "", errors.New("no more responses")
	}
	resp := g.responses[g.calls]
	g.calls++
	if resp == "" {
		return "", errors.New("provider down")
	}
	return resp, nil
}

type testValue struct {
	Score float64
}

func testTask() Task[testValue] {
	return Task[testValue]{
		Name: "test_value",
		Validate: func(obj map[string]interface{}) (testValue, []string, bool) {
			raw, ok := obj["score"]
			if !ok {
				return testValue{}, nil, false
			}
			v, _ := raw.(float64)
			var notes []string
			if v > 1 {
				v = 1
				notes = append(notes, "score clamped")
			}
			return testValue{Score: v}, notes, true
		},
		Fallback: func() testValue { return testValue{Score: 0.5} },
	}
}

func TestRunValidFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"score": 0.8}`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Valid {
		t.Fatalf("expected Valid, got %v", result.Outcome)
	}
	if result.Value.Score != 0.8 {
		t.Errorf("expected score 0.8, got %v", result.Value.Score)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 call, got %d", gen.calls)
	}
}

func TestRunRepairedByValidation(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"score": 3.2}`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Repaired {
		t.Fatalf("expected Repaired, got %v", result.Outcome)
	}
	if result.Value.Score != 1 {
		t.Errorf("expected clamped score 1, got %v", result.Value.Score)
	}
	if len(result.Notes) == 0 {
		t.Error("expected repair notes")
	}
}

func TestRunRepairedMalformedJSON(t *testing.T) {
	// Trailing comma and single quotes, typical LLM sloppiness.
	gen := &scriptedGenerator{responses: []string{`{'score': 0.4,}`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Repaired {
		t.Fatalf("expected Repaired, got %v", result.Outcome)
	}
	if result.Value.Score != 0.4 {
		t.Errorf("expected score 0.4, got %v", result.Value.Score)
	}
}

func TestRunRetriesUnparseableThenSucceeds(t *testing.T) {
	// A JSON array parses but is not an object, so the first attempt fails
	// even after repair and the call is retried.
	gen := &scriptedGenerator{responses: []string{`[1, 2, 3]`, `{"score": 0.6}`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Valid {
		t.Fatalf("expected Valid after retry, got %v", result.Outcome)
	}
	if gen.calls != 2 {
		t.Errorf("expected 2 calls, got %d", gen.calls)
	}
}

func TestRunServiceErrorDefaultsImmediately(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"", `{"score": 0.6}`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Defaulted {
		t.Fatalf("expected Defaulted, got %v", result.Outcome)
	}
	if result.Value.Score != 0.5 {
		t.Errorf("expected fallback score 0.5, got %v", result.Value.Score)
	}
	if gen.calls != 1 {
		t.Errorf("unreachable service called %d times, want 1", gen.calls)
	}
}

func TestRunMissingShapeCountsAsFailure(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{"other": 1}`, `{"score": 0.2}`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Valid {
		t.Fatalf("expected Valid on second attempt, got %v", result.Outcome)
	}
	if result.Value.Score != 0.2 {
		t.Errorf("expected score 0.2, got %v", result.Value.Score)
	}
}

func TestRunDefaultsAfterTwoFailures(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`["not an object"]`, `[2]`}}
	result := Run(context.Background(), gen, zap.NewNop(), testTask(), "prompt")

	if result.Outcome != Defaulted {
		t.Fatalf("expected Defaulted, got %v", result.Outcome)
	}
	if result.Value.Score != 0.5 {
		t.Errorf("expected fallback score 0.5, got %v", result.Value.Score)
	}
	if gen.calls != 2 {
		t.Errorf("expected exactly 2 calls, got %d", gen.calls)
	}
}

func TestClampAndFieldHelpers(t *testing.T) {
	if got := Clamp(150, 0, 100); got != 100 {
		t.Errorf("Clamp(150) = %v, want 100", got)
	}
	if got := Clamp(-20, 0, 100); got != 0 {
		t.Errorf("Clamp(-20) = %v, want 0", got)
	}
	if got := Clamp01(0.3); got != 0.3 {
		t.Errorf("Clamp01(0.3) = %v, want 0.3", got)
	}

	obj := map[string]interface{}{
		"n":    2.5,
		"s":    "hello",
		"list": []interface{}{"a", "b", 3},
	}
	if got := Num(obj, "n", 0); got != 2.5 {
		t.Errorf("Num = %v, want 2.5", got)
	}
	if got := Num(obj, "missing", 7); got != 7 {
		t.Errorf("Num default = %v, want 7", got)
	}
	if got := Str(obj, "s", ""); got != "hello" {
		t.Errorf("Str = %q, want hello", got)
	}
	ss := StrSlice(obj, "list")
	if len(ss) != 2 || ss[0] != "a" || ss[1] != "b" {
		t.Errorf("StrSlice = %v, want [a b]", ss)
	}
	if StrSlice(obj, "missing") != nil {
		t.Error("StrSlice missing key should be nil")
	}
}
