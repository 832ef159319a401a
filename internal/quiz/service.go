// Package quiz implements the relationship quiz: five fixed cards, one
// conditional sixth card derived from earlier answers, and LLM analysis of
// the responses into bounded slider recommendations.
package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/synth"
)

// Card is one quiz question presented to the user.
type Card struct {
	CardNumber   int           `json:"card_number"`
	CardType     string        `json:"card_type"` // reflexes | frustrations | fears | hopes | derails | conditional
	Question     string        `json:"question"`
	InputType    string        `json:"input_type"` // text | multi_select | single_select | slider
	Options      []string      `json:"options,omitempty"`
	SliderLabels *SliderLabels `json:"slider_labels,omitempty"`
}

// SliderLabels annotate the endpoints of a slider card.
type SliderLabels struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// Response is one answered card.
type Response struct {
	CardNumber int             `json:"card_number"`
	CardType   string          `json:"card_type"`
	Question   string          `json:"question"`
	InputType  string          `json:"input_type"`
	Answer     json.RawMessage `json:"answer"`
}

// CommunicationStyle holds the fifteen named slider recommendations, each
// clamped into [0,100].
type CommunicationStyle struct {
	Directness               float64 `json:"directness"`
	Formality                float64 `json:"formality"`
	Warmth                   float64 `json:"warmth"`
	SupportMode              float64 `json:"supportMode"`
	Humor                    float64 `json:"humor"`
	Teasing                  float64 `json:"teasing"`
	MetaCommunication        float64 `json:"metaCommunication"`
	BoundaryStrength         float64 `json:"boundaryStrength"`
	StructureVsStory         float64 `json:"structureVsStory"`
	ValidationVsSolutioning  float64 `json:"validationVsSolutioning"`
	EncouragementVsChallenge float64 `json:"encouragementVsChallenge"`
	DetailDepth              float64 `json:"detailDepth"`
	ConcreteVsAbstract       float64 `json:"concreteVsAbstract"`
	QuestionDensity          float64 `json:"questionDensity"`
	ComplimentRequestRatio   float64 `json:"complimentRequestRatio"`
}

// Analysis is the result of analyzing a full set of quiz responses.
type Analysis struct {
	CommunicationStyle CommunicationStyle `json:"communicationStyle"`
	KeyInsights        []string           `json:"keyInsights"`
	Patterns           []string           `json:"patterns"`
	Suggestions        []string           `json:"suggestions"`
}

// ProfileSource provides the user's most recent intake profile snapshot for
// prompt grounding.
type ProfileSource interface {
	LatestProfileSnapshot(ctx context.Context, userID string) (json.RawMessage, bool, error)
}

// ResponseStore persists quiz responses per (user, contact).
type ResponseStore interface {
	InsertQuizResponse(ctx context.Context, userID, contactID string, r Response) error
	QuizResponses(ctx context.Context, userID, contactID string) ([]Response, error)
	CountQuizResponses(ctx context.Context, userID, contactID string) (int, error)
}

// Service generates quiz cards and analyzes responses.
type Service struct {
	profiles  ProfileSource
	responses ResponseStore
	gen       provider.TextGenerator
	logger    *zap.Logger
	timeout   time.Duration
}

// NewService creates a quiz Service.
func NewService(profiles ProfileSource, responses ResponseStore, gen provider.TextGenerator, logger *zap.Logger) *Service {
	return &Service{
		profiles:  profiles,
		responses: responses,
		gen:       gen,
		logger:    logger,
		timeout:   60 * time.Second,
	}
}

// GenerateQuestions returns the five base cards, wording-adapted to the
// user's processing fingerprint. The sixth card is conditional and produced
// by ConditionalCard once the base responses exist.
func (s *Service) GenerateQuestions(fingerprint string) []Card {
	return []Card{
		{
			CardNumber: 1,
			CardType:   "reflexes",
			Question:   adaptWording("When you're communicating with this person, what's your default reflex?", fingerprint),
			InputType:  "multi_select",
			Options: []string{
				"Get straight to the point",
				"Cushion with warmth first",
				"Check in emotionally",
				"Lead with humor",
				"Mirror their energy",
				"Ask clarifying questions",
			},
		},
		{
			CardNumber: 2,
			CardType:   "frustrations",
			Question:   adaptWording("What tends to frustrate you most in this relationship?", fingerprint),
			InputType:  "multi_select",
			Options: []string{
				"Not feeling heard",
				"Misunderstandings",
				"Different communication pace",
				"Unmet expectations",
				"Lack of vulnerability",
				"Feeling judged",
				"Not enough depth",
				"Too much intensity",
			},
		},
		{
			CardNumber: 3,
			CardType:   "fears",
			Question:   adaptWording("What do you worry about most with this person?", fingerprint),
			InputType:  "multi_select",
			Options: []string{
				"Being misunderstood",
				"Overwhelming them",
				"Being too vulnerable",
				"Causing conflict",
				"Losing connection",
				"Being judged",
				"Saying the wrong thing",
				"Not being enough",
			},
		},
		{
			CardNumber: 4,
			CardType:   "hopes",
			Question:   adaptWording("What do you hope for in this relationship?", fingerprint),
			InputType:  "multi_select",
			Options: []string{
				"Deeper understanding",
				"More ease in communication",
				"Greater trust",
				"More authenticity",
				"Better conflict resolution",
				"Shared growth",
				"More fun together",
				"Emotional safety",
			},
		},
		{
			CardNumber: 5,
			CardType:   "derails",
			Question:   adaptWording("What usually derails conversations with this person?", fingerprint),
			InputType:  "multi_select",
			Options: []string{
				"Defensiveness",
				"Mismatched energy",
				"Assumptions",
				"Interruptions",
				"Different priorities",
				"Emotional overwhelm",
				"Lack of context",
				"Timing issues",
			},
		},
	}
}

// ConditionalCard picks the sixth card from the base answers: conflict style
// when conflict-related selections appear, vulnerability comfort when
// vulnerability-related selections appear, communication pace otherwise.
func (s *Service) ConditionalCard(responses []Response, fingerprint string) Card {
	frustrations := answerSet(responses, "frustrations")
	fears := answerSet(responses, "fears")

	hasConflict := frustrations["Unmet expectations"] ||
		frustrations["Feeling judged"] ||
		fears["Causing conflict"]
	if hasConflict {
		return Card{
			CardNumber: 6,
			CardType:   "conditional",
			Question:   adaptWording("When conflict arises with this person, how do you typically respond?", fingerprint),
			InputType:  "single_select",
			Options: []string{
				"Address it immediately",
				"Need time to process first",
				"Try to smooth things over",
				"Withdraw and reflect",
				"Seek to understand their side",
				"Defend my position",
			},
		}
	}

	hasVulnerability := frustrations["Lack of vulnerability"] ||
		frustrations["Not enough depth"] ||
		fears["Being too vulnerable"]
	if hasVulnerability {
		return Card{
			CardNumber:   6,
			CardType:     "conditional",
			Question:     adaptWording("How comfortable are you being vulnerable with this person?", fingerprint),
			InputType:    "slider",
			SliderLabels: &SliderLabels{Min: "Very guarded", Max: "Completely open"},
		}
	}

	return Card{
		CardNumber: 6,
		CardType:   "conditional",
		Question:   adaptWording("What communication pace feels best with this person?", fingerprint),
		InputType:  "single_select",
		Options: []string{
			"Quick, frequent check-ins",
			"Longer, deeper conversations",
			"Sporadic but meaningful",
			"Consistent and predictable",
			"Flexible and spontaneous",
		},
	}
}

// answerSet flattens the answer of the named card into a membership set.
func answerSet(responses []Response, cardType string) map[string]bool {
	set := map[string]bool{}
	for _, r := range responses {
		if r.CardType != cardType {
			continue
		}
		var many []string
		if err := json.Unmarshal(r.Answer, &many); err == nil {
			for _, v := range many {
				set[v] = true
			}
			continue
		}
		var one string
		if err := json.Unmarshal(r.Answer, &one); err == nil {
			set[one] = true
		}
	}
	return set
}

// adaptWording nudges the question phrasing toward the user's processing
// fingerprint. Intuitive processors get the more abstract "how" framing.
func adaptWording(question, fingerprint string) string {
	if fingerprint == "intuitive" {
		return strings.Replace(question, "what", "how", 1)
	}
	return question
}

// AnalyzeResponses analyzes a full set of quiz responses into slider
// recommendations and insights. It never fails: parse or service errors
// yield the neutral mid-point analysis.
func (s *Service) AnalyzeResponses(ctx context.Context, userID, contactID string, responses []Response) *Analysis {
	var userProfile json.RawMessage
	if snapshot, found, err := s.profiles.LatestProfileSnapshot(ctx, userID); err != nil {
		s.logger.Warn("profile snapshot read failed, analyzing without it",
			zap.String("user", userID), zap.Error(err))
	} else if found {
		userProfile = snapshot
	}

	task := synth.Task[Analysis]{
		Name:        "quiz_analysis",
		Temperature: 0.3, // lower for more consistent recommendations
		Validate:    validateAnalysis,
		Fallback:    neutralAnalysis,
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result := synth.Run(tctx, s.gen, s.logger, task, analysisPrompt(userProfile, responses))
	return &result.Value
}

// StoreResponse persists one answered card.
func (s *Service) StoreResponse(ctx context.Context, userID, contactID string, r Response) error {
	if err := s.responses.InsertQuizResponse(ctx, userID, contactID, r); err != nil {
		return fmt.Errorf("store quiz response: %w", err)
	}
	return nil
}

// Responses returns the previously stored responses for a contact, ordered
// by card number.
func (s *Service) Responses(ctx context.Context, userID, contactID string) ([]Response, error) {
	return s.responses.QuizResponses(ctx, userID, contactID)
}

// HasCompleted reports whether at least the five base cards were answered.
func (s *Service) HasCompleted(ctx context.Context, userID, contactID string) bool {
	n, err := s.responses.CountQuizResponses(ctx, userID, contactID)
	if err != nil {
		return false
	}
	return n >= 5
}

func analysisPrompt(userProfile json.RawMessage, responses []Response) string {
	profileJSON := "null"
	if len(userProfile) > 0 {
		profileJSON = string(userProfile)
	}

	var answers strings.Builder
	for _, r := range responses {
		fmt.Fprintf(&answers, "\nQ: %s\nType: %s\nAnswer: %s\n", r.Question, r.CardType, string(r.Answer))
	}

	return fmt.Sprintf(`You are an expert relationship communication analyst. Based on the user's quiz responses about a specific relationship, generate personalized communication slider recommendations and insights.

User Profile: %s

Quiz Responses:
%s

Please analyze these responses and provide:

1. Recommended Slider Values (0-100 for each):
   - directness (0=cushioning, 100=direct)
   - formality (0=casual, 100=formal)
   - warmth (0=neutral, 100=warm)
   - supportMode (0=solution-focused, 100=empathy-focused)
   - humor (0=serious, 100=playful)
   - teasing (0=gentle, 100=edgy)
   - metaCommunication (0=implicit, 100=explicit)
   - boundaryStrength (0=flexible, 100=firm)
   - structureVsStory (0=structured, 100=narrative)
   - validationVsSolutioning (0=validate first, 100=solve first)
   - encouragementVsChallenge (0=encourage, 100=challenge)
   - detailDepth (0=high-level, 100=detailed)
   - concreteVsAbstract (0=concrete, 100=abstract)
   - questionDensity (0=few questions, 100=many questions)
   - complimentRequestRatio (0=more compliments, 100=more requests)

2. Key Insights (3-5 bullet points about the relationship dynamics)

3. Patterns (2-4 recurring themes or tendencies)

4. Suggestions (2-4 actionable communication tips)

Return ONLY valid JSON in this exact format:
{
  "communicationStyle": {
    "directness": 50, "formality": 40, "warmth": 70, "supportMode": 60,
    "humor": 50, "teasing": 30, "metaCommunication": 40, "boundaryStrength": 50,
    "structureVsStory": 60, "validationVsSolutioning": 70, "encouragementVsChallenge": 40,
    "detailDepth": 50, "concreteVsAbstract": 45, "questionDensity": 50,
    "complimentRequestRatio": 60
  },
  "keyInsights": ["..."],
  "patterns": ["..."],
  "suggestions": ["..."]
}`, profileJSON, answers.String())
}

func neutralAnalysis() Analysis {
	return Analysis{
		CommunicationStyle: CommunicationStyle{
			Directness: 50, Formality: 50, Warmth: 50, SupportMode: 50,
			Humor: 50, Teasing: 50, MetaCommunication: 50, BoundaryStrength: 50,
			StructureVsStory: 50, ValidationVsSolutioning: 50, EncouragementVsChallenge: 50,
			DetailDepth: 50, ConcreteVsAbstract: 50, QuestionDensity: 50,
			ComplimentRequestRatio: 50,
		},
		KeyInsights: []string{"Analysis in progress - try again in a moment"},
		Patterns:    []string{},
		Suggestions: []string{},
	}
}

func validateAnalysis(obj map[string]interface{}) (Analysis, []string, bool) {
	style, ok := synth.Obj(obj, "communicationStyle")
	if !ok {
		return Analysis{}, nil, false
	}

	var notes []string
	slider := func(key string) float64 {
		v := synth.Num(style, key, 50)
		if clamped := synth.Clamp(v, 0, 100); clamped != v {
			notes = append(notes, "slider "+key+" clamped")
			return clamped
		}
		return v
	}

	a := Analysis{
		CommunicationStyle: CommunicationStyle{
			Directness:               slider("directness"),
			Formality:                slider("formality"),
			Warmth:                   slider("warmth"),
			SupportMode:              slider("supportMode"),
			Humor:                    slider("humor"),
			Teasing:                  slider("teasing"),
			MetaCommunication:        slider("metaCommunication"),
			BoundaryStrength:         slider("boundaryStrength"),
			StructureVsStory:         slider("structureVsStory"),
			ValidationVsSolutioning:  slider("validationVsSolutioning"),
			EncouragementVsChallenge: slider("encouragementVsChallenge"),
			DetailDepth:              slider("detailDepth"),
			ConcreteVsAbstract:       slider("concreteVsAbstract"),
			QuestionDensity:          slider("questionDensity"),
			ComplimentRequestRatio:   slider("complimentRequestRatio"),
		},
		KeyInsights: synth.StrSlice(obj, "keyInsights"),
		Patterns:    synth.StrSlice(obj, "patterns"),
		Suggestions: synth.StrSlice(obj, "suggestions"),
	}
	if a.KeyInsights == nil {
		a.KeyInsights = []string{}
		notes = append(notes, "keyInsights defaulted")
	}
	if a.Patterns == nil {
		a.Patterns = []string{}
		notes = append(notes, "patterns defaulted")
	}
	if a.Suggestions == nil {
		a.Suggestions = []string{}
		notes = append(notes, "suggestions defaulted")
	}
	return a, notes, true
}
