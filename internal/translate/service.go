// Package translate rewrites a base text into style-labeled variants, one
// per cognitive style, so the user can pick the phrasing that lands best
// with the recipient. The chosen variant becomes a reflection's translation
// text.
package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
)

var (
	styles4 = []string{"Thinker", "Feeler", "Sensor", "Intuition"}
	styles8 = []string{"Te", "Ti", "Fe", "Fi", "Se", "Si", "Ni", "Ne"}
)

// Styles returns the style labels for a mode, or nil for an unknown mode.
func Styles(mode string) []string {
	switch mode {
	case "4":
		return styles4
	case "8":
		return styles8
	default:
		return nil
	}
}

// Request carries the inputs for one translation round.
type Request struct {
	BaseText string
	Mode     string // "4" or "8"
}

// Result maps each style label to its translation. Labels the generator
// skipped map to empty strings so the set of keys is always complete.
type Result struct {
	Mode         string            `json:"mode"`
	Translations map[string]string `json:"translations"`
}

// Service generates style-labeled translations.
type Service struct {
	gen     provider.TextGenerator
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates a translation Service.
func NewService(gen provider.TextGenerator, logger *zap.Logger) *Service {
	return &Service{
		gen:     gen,
		logger:  logger,
		timeout: 60 * time.Second,
	}
}

// Generate produces one translation per style for the requested mode.
// Generation failure returns an error; there is no neutral default for
// rewritten text.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	styles := Styles(req.Mode)
	if styles == nil {
		return nil, fmt.Errorf("unknown translation mode %q", req.Mode)
	}

	prompt := fmt.Sprintf(
		"Base: %s\nReturn %d translations labeled exactly with: %s. Keep each under 2 sentences, clear, respectful, recipient-adaptive.",
		req.BaseText, len(styles), strings.Join(styles, ", "))

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.gen.Complete(tctx, provider.CompletionRequest{
		Prompt:      prompt,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("generate translations: %w", err)
	}

	return &Result{Mode: req.Mode, Translations: parseTranslations(text, styles)}, nil
}

// parseTranslations assigns the first non-empty output lines to the styles
// in order, stripping list markers and the style's own label prefix.
func parseTranslations(text string, styles []string) map[string]string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-* \t")
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == len(styles) {
			break
		}
	}

	out := make(map[string]string, len(styles))
	for i, style := range styles {
		if i >= len(lines) {
			out[style] = ""
			continue
		}
		out[style] = stripLabel(lines[i], style)
	}
	return out
}

// stripLabel removes a leading "Style:" prefix, case-insensitively.
func stripLabel(line, style string) string {
	if len(line) >= len(style) && strings.EqualFold(line[:len(style)], style) {
		rest := strings.TrimSpace(line[len(style):])
		if strings.HasPrefix(rest, ":") {
			return strings.TrimSpace(rest[1:])
		}
	}
	return line
}
