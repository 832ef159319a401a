// Package synth implements the shared generation policy used by every
// snapshot task: call the text generator requesting JSON, parse (repairing
// malformed output), validate against the task schema, retry exactly once on
// malformed or incomplete output, and otherwise fall back to the task's fixed
// neutral default. A service error defaults immediately with no retry.
// Failures never propagate; callers always receive a schema-valid value
// tagged with how it was obtained.
package synth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
)

// Outcome records which path produced a task result.
type Outcome int

const (
	// Valid: the generator returned output that passed validation untouched.
	Valid Outcome = iota
	// Repaired: output was usable after field-level repair (clamping,
	// promotion of flat structures, defaulting of missing arrays).
	Repaired
	// Defaulted: the generator was unreachable, or its output was
	// unsalvageable after one retry, and the task's neutral default was used.
	Defaulted
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Repaired:
		return "repaired"
	default:
		return "defaulted"
	}
}

// Result pairs a schema-valid value with the path that produced it.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Notes   []string
}

// Task describes one synthesis schema. Validate receives the parsed JSON
// object and returns the typed value, repair notes, and whether the required
// top-level shape was present at all; absence triggers the retry, exactly
// like a parse failure.
type Task[T any] struct {
	Name        string
	Temperature float64
	MaxTokens   int
	Validate    func(obj map[string]interface{}) (T, []string, bool)
	Fallback    func() T
}

// Run executes the attempt → validate → retry-once → default policy.
func Run[T any](ctx context.Context, gen provider.TextGenerator, logger *zap.Logger, t Task[T], prompt string) Result[T] {
	req := provider.CompletionRequest{
		Prompt:      prompt,
		Temperature: t.Temperature,
		MaxTokens:   t.MaxTokens,
		JSONOutput:  true,
	}

	for attempt := 0; attempt < 2; attempt++ {
		text, err := gen.Complete(ctx, req)
		if err != nil {
			// An unreachable service gets no retry. Only malformed or
			// incomplete output earns the second attempt.
			logger.Warn("generation service unreachable, using neutral default",
				zap.String("task", t.Name), zap.Error(err))
			return Result[T]{Value: t.Fallback(), Outcome: Defaulted}
		}

		obj, fixed, err := ParseObject(text)
		if err != nil {
			logger.Warn("generation output unparseable",
				zap.String("task", t.Name), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		value, notes, ok := t.Validate(obj)
		if !ok {
			logger.Warn("generation output missing required shape",
				zap.String("task", t.Name), zap.Int("attempt", attempt))
			continue
		}
		if fixed {
			notes = append(notes, "json repaired")
		}

		outcome := Valid
		if len(notes) > 0 {
			outcome = Repaired
			logger.Debug("generation output repaired",
				zap.String("task", t.Name), zap.Strings("notes", notes))
		}
		return Result[T]{Value: value, Outcome: outcome, Notes: notes}
	}

	logger.Warn("generation unsalvageable, using neutral default", zap.String("task", t.Name))
	return Result[T]{Value: t.Fallback(), Outcome: Defaulted}
}

// ParseObject decodes text as a JSON object, running it through jsonrepair
// when direct decoding fails. The bool reports whether repair was needed.
func ParseObject(text string) (map[string]interface{}, bool, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, false, nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false, fmt.Errorf("repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, false, fmt.Errorf("parse repaired json: %w", err)
	}
	return obj, true, nil
}
