// Package wimts generates "What I Meant To Say" variants: three alternative
// phrasings of an intake text, personalized by the user's cognitive profile
// and, when a recipient is known, that contact's communication sliders.
package wimts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/provider"
)

// optionIDs caps the number of variants per round.
var optionIDs = []string{"A", "B", "C"}

// ContactSliders are a contact's persisted communication preferences, each
// in [0,100].
type ContactSliders struct {
	Directness          float64 `json:"directness"`
	Formality           float64 `json:"formality"`
	Warmth              float64 `json:"warmth"`
	EmotionalExpression float64 `json:"emotional_expression"`
	ReassuranceLevel    float64 `json:"reassurance_level"`
	Vulnerability       float64 `json:"vulnerability"`
}

// Contact is a recipient with optional slider preferences.
type Contact struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	RelationshipType string          `json:"relationship_type"`
	Sliders          *ContactSliders `json:"sliders,omitempty"`
}

// Option is one generated variant.
type Option struct {
	OptionID string `json:"option_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// GenerateRequest carries the inputs for one WIMTS round.
type GenerateRequest struct {
	UserID      string
	SessionID   string // originating intake session, may be empty
	IntakeText  string
	Profile     *profile.ProfileSnapshot // may be nil
	RecipientID string                   // may be empty
}

// GenerateResult is the variants plus the persisted session id, empty when
// persistence was unavailable.
type GenerateResult struct {
	Variants  []Option `json:"what_i_meant_variants"`
	SessionID string   `json:"wimts_session_id,omitempty"`
}

// ContactSource reads recipient contacts owned by the user.
type ContactSource interface {
	ContactWithSliders(ctx context.Context, userID, contactID string) (*Contact, bool, error)
}

// SessionStore persists WIMTS sessions and their options.
type SessionStore interface {
	InsertWimtsSession(ctx context.Context, userID, sessionID, intakeText string, profileSnapshot json.RawMessage) (string, error)
	InsertWimtsOptions(ctx context.Context, wimtsSessionID string, options []Option) error
}

// Service generates and persists WIMTS variants.
type Service struct {
	contacts ContactSource
	sessions SessionStore
	gen      provider.TextGenerator
	logger   *zap.Logger
	timeout  time.Duration
}

// NewService creates a WIMTS Service. contacts and sessions may be nil;
// generation then proceeds without recipient context or persistence.
func NewService(contacts ContactSource, sessions SessionStore, gen provider.TextGenerator, logger *zap.Logger) *Service {
	return &Service{
		contacts: contacts,
		sessions: sessions,
		gen:      gen,
		logger:   logger,
		timeout:  60 * time.Second,
	}
}

// Generate produces up to three variants for the intake text. Generation
// failure returns an error (the caller has nothing to show without text);
// persistence failure does not - the round is still returned, unstored.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var contact *Contact
	if req.RecipientID != "" && s.contacts != nil {
		c, found, err := s.contacts.ContactWithSliders(ctx, req.UserID, req.RecipientID)
		if err != nil {
			s.logger.Warn("contact read failed, generating without recipient context",
				zap.String("user", req.UserID), zap.String("contact", req.RecipientID), zap.Error(err))
		} else if found {
			contact = c
		}
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.gen.Complete(tctx, provider.CompletionRequest{
		Prompt:      s.prompt(req, contact),
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("generate variants: %w", err)
	}

	variants := parseVariants(text)
	result := &GenerateResult{Variants: variants}

	if s.sessions != nil && req.UserID != "" {
		result.SessionID = s.persist(ctx, req, variants)
	}
	return result, nil
}

// persist stores the session and options best-effort, returning the session
// id or empty on failure.
func (s *Service) persist(ctx context.Context, req GenerateRequest, variants []Option) string {
	var snapshot json.RawMessage
	if req.Profile != nil {
		snapshot, _ = json.Marshal(req.Profile)
	}

	id, err := s.sessions.InsertWimtsSession(ctx, req.UserID, req.SessionID, req.IntakeText, snapshot)
	if err != nil {
		s.logger.Error("wimts session insert failed, round returned unstored",
			zap.String("user", req.UserID), zap.Error(err))
		return ""
	}
	if err := s.sessions.InsertWimtsOptions(ctx, id, variants); err != nil {
		s.logger.Error("wimts options insert failed",
			zap.String("session", id), zap.Error(err))
	}
	return id
}

func (s *Service) prompt(req GenerateRequest, contact *Contact) string {
	var b strings.Builder
	b.WriteString("You are helping a user express what they really meant to say.")

	if contact != nil && contact.Sliders != nil {
		sl := contact.Sliders
		fmt.Fprintf(&b, "\n\nRecipient: %s", contact.Name)
		if contact.RelationshipType != "" {
			fmt.Fprintf(&b, " (%s)", contact.RelationshipType)
		}
		b.WriteString("\n\nRecipient's Communication Preferences:\n")
		fmt.Fprintf(&b, "- Directness: %.0f/100 (%s)\n", sl.Directness, levelLabel(sl.Directness))
		fmt.Fprintf(&b, "- Formality: %.0f/100 (%s)\n", sl.Formality, levelLabel(sl.Formality))
		fmt.Fprintf(&b, "- Warmth: %.0f/100 (%s)\n", sl.Warmth, levelLabel(sl.Warmth))
		fmt.Fprintf(&b, "- Emotional Expression: %.0f/100 (%s)\n", sl.EmotionalExpression, levelLabel(sl.EmotionalExpression))
		fmt.Fprintf(&b, "- Reassurance: %.0f/100 (%s)\n", sl.ReassuranceLevel, levelLabel(sl.ReassuranceLevel))
		fmt.Fprintf(&b, "- Vulnerability: %.0f/100 (%s)\n", sl.Vulnerability, levelLabel(sl.Vulnerability))
		fmt.Fprintf(&b, "\nIMPORTANT: Generate options that will work well with %s's communication style.", contact.Name)
	}

	fmt.Fprintf(&b, "\n\nUser text: %s\n", req.IntakeText)

	if req.Profile != nil {
		cog := req.Profile.CognitiveSnapshot
		b.WriteString("\nUser's communication style:\n")
		fmt.Fprintf(&b, "- Dominant streams: %s\n", strings.Join(cog.DominantStreams, ", "))
		fmt.Fprintf(&b, "- Processing tendencies: %s\n", strings.Join(cog.ProcessingTendencies, ", "))
		out := cog.CommunicationLens.Outgoing
		fmt.Fprintf(&b, "- Communication lens (outgoing): N:%.1f, S:%.1f, T:%.1f, F:%.1f\n",
			out.N, out.S, out.T, out.F)
	}

	b.WriteString("\nReturn three concise, kind, and clear \"What I Really Meant to Say\" options labeled A, B, C.")
	if contact != nil {
		rel := contact.RelationshipType
		if rel == "" {
			rel = "this relationship"
		}
		fmt.Fprintf(&b, ` Each option should:
1. Reflect the user's authentic communication style
2. Be adapted to work well with %s's preferences
3. Help express the user's true intentions effectively
4. Maintain appropriate tone for %s`, contact.Name, rel)
	} else {
		b.WriteString(" Each option should reflect the user's communication style and help them express their true intentions more effectively.")
	}
	return b.String()
}

// levelLabel buckets a slider value for prompt readability.
func levelLabel(v float64) string {
	switch {
	case v > 70:
		return "high"
	case v < 30:
		return "low"
	default:
		return "moderate"
	}
}

// parseVariants takes the first three non-empty lines as options A, B, C,
// stripping list markers.
func parseVariants(text string) []Option {
	var variants []Option
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-* \t")
		if line == "" {
			continue
		}
		idx := len(variants)
		variants = append(variants, Option{
			OptionID: optionIDs[idx],
			Title:    "Option " + optionIDs[idx],
			Body:     line,
		})
		if len(variants) == len(optionIDs) {
			break
		}
	}
	return variants
}
