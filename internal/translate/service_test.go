package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
)

type recordingGenerator struct {
	response string
	err      error
	prompt   string
	temp     float64
}

func (g *recordingGenerator) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	g.prompt = req.Prompt
	g.temp = req.Temperature
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func TestGenerateFourStyles(t *testing.T) {
	gen := &recordingGenerator{response: `Thinker: Let's look at the facts together.
Feeler: I care about how this lands for you.
- Sensor: Here is what actually happened.
intuition: There is a bigger picture here.`}
	svc := NewService(gen, zap.NewNop())

	result, err := svc.Generate(context.Background(), Request{BaseText: "why don't you listen", Mode: "4"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Mode != "4" {
		t.Errorf("mode = %q, want 4", result.Mode)
	}
	if len(result.Translations) != 4 {
		t.Fatalf("got %d translations, want 4", len(result.Translations))
	}
	if result.Translations["Thinker"] != "Let's look at the facts together." {
		t.Errorf("Thinker = %q, label not stripped", result.Translations["Thinker"])
	}
	if result.Translations["Sensor"] != "Here is what actually happened." {
		t.Errorf("Sensor = %q, list marker not stripped", result.Translations["Sensor"])
	}
	if result.Translations["Intuition"] != "There is a bigger picture here." {
		t.Errorf("Intuition = %q, lowercase label not stripped", result.Translations["Intuition"])
	}
	if gen.temp != 0.7 {
		t.Errorf("temperature = %v, want 0.7", gen.temp)
	}
	if !strings.Contains(gen.prompt, "Thinker, Feeler, Sensor, Intuition") {
		t.Errorf("prompt missing style labels:\n%s", gen.prompt)
	}
}

func TestGenerateEightStyles(t *testing.T) {
	gen := &recordingGenerator{response: `Te: one
Ti: two
Fe: three
Fi: four
Se: five
Si: six
Ni: seven
Ne: eight`}
	svc := NewService(gen, zap.NewNop())

	result, err := svc.Generate(context.Background(), Request{BaseText: "text", Mode: "8"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Translations) != 8 {
		t.Fatalf("got %d translations, want 8", len(result.Translations))
	}
	if result.Translations["Ne"] != "eight" {
		t.Errorf("Ne = %q, want eight", result.Translations["Ne"])
	}
}

func TestGenerateShortOutputFillsEmpty(t *testing.T) {
	gen := &recordingGenerator{response: "Thinker: only one line"}
	svc := NewService(gen, zap.NewNop())

	result, err := svc.Generate(context.Background(), Request{BaseText: "text", Mode: "4"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Translations) != 4 {
		t.Fatalf("got %d keys, want all 4 present", len(result.Translations))
	}
	if result.Translations["Feeler"] != "" {
		t.Errorf("Feeler = %q, want empty for missing line", result.Translations["Feeler"])
	}
}

func TestGenerateUnknownMode(t *testing.T) {
	svc := NewService(&recordingGenerator{}, zap.NewNop())
	if _, err := svc.Generate(context.Background(), Request{BaseText: "text", Mode: "6"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestGenerateProviderFailureSurfaces(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("provider down")}
	svc := NewService(gen, zap.NewNop())
	if _, err := svc.Generate(context.Background(), Request{BaseText: "text", Mode: "4"}); err == nil {
		t.Fatal("expected error when generation fails")
	}
}

func TestStripLabelKeepsUnlabeledLine(t *testing.T) {
	if got := stripLabel("A plain rewording.", "Thinker"); got != "A plain rewording." {
		t.Errorf("got %q, want line unchanged", got)
	}
	if got := stripLabel("Feelers: close but not a label match", "Feeler"); got != "Feelers: close but not a label match" {
		t.Errorf("got %q, want line unchanged when label does not end at the colon", got)
	}
}
