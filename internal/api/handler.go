// Package api exposes the synthesis operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/insights"
	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/quiz"
	"github.com/mirrorlab/mirror/internal/reflections"
	"github.com/mirrorlab/mirror/internal/translate"
	"github.com/mirrorlab/mirror/internal/wimts"
)

// ReflectionStore persists submitted reflections.
type ReflectionStore interface {
	InsertReflection(ctx context.Context, userID, baseIntakeText, translationText string) (string, error)
}

// LikeStore persists per-user insight likes.
type LikeStore interface {
	LikeInsight(ctx context.Context, userID, insightID string) error
	UnlikeInsight(ctx context.Context, userID, insightID string) error
}

// SelectionStore records the user's variant pick for a generation round.
type SelectionStore interface {
	InsertWimtsSelection(ctx context.Context, wimtsSessionID, optionID string) error
}

// RateLimiter gates the expensive generation endpoint. A nil limiter means
// no throttling.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	profiles    *profile.Service
	insights    *insights.Service
	quiz        *quiz.Service
	wimts       *wimts.Service
	translate   *translate.Service
	similar     *reflections.Service
	reflections ReflectionStore
	likes       LikeStore
	selects     SelectionStore
	limiter     RateLimiter
	logger      *zap.Logger
}

// NewHandler creates a new API handler. similar may be nil when no vector
// backend is configured; its route then returns 503.
func NewHandler(
	profiles *profile.Service,
	ins *insights.Service,
	qz *quiz.Service,
	wm *wimts.Service,
	tr *translate.Service,
	similar *reflections.Service,
	refl ReflectionStore,
	likes LikeStore,
	selects SelectionStore,
	limiter RateLimiter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		profiles:    profiles,
		insights:    ins,
		quiz:        qz,
		wimts:       wm,
		translate:   tr,
		similar:     similar,
		reflections: refl,
		likes:       likes,
		selects:     selects,
		limiter:     limiter,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/profile/{userID}", h.getProfile)

		r.Get("/insights/{userID}/weekly", h.weeklyInsights)
		r.Get("/insights/{userID}/patterns", h.detectPatterns)
		r.Get("/insights/{userID}/mirror-moments", h.mirrorMoments)
		r.Get("/insights/{userID}/tips", h.communicationTips)
		r.Post("/insights/like", h.likeInsight)

		r.Get("/quiz/{userID}/{contactID}/questions", h.quizQuestions)
		r.Post("/quiz/{userID}/{contactID}/conditional", h.quizConditionalCard)
		r.Post("/quiz/{userID}/{contactID}/analyze", h.quizAnalyze)

		r.With(h.rateLimit).Post("/wimts/generate", h.generateWimts)
		r.Post("/wimts/{sessionID}/select", h.selectWimts)

		r.With(h.rateLimit).Post("/translate/generate", h.generateTranslations)

		r.Post("/reflections", h.createReflection)
		r.Get("/reflections/{id}/similar", h.similarReflections)
	})

	return r
}

// rateLimit throttles by client IP, one-minute windows.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow(r.Context(), r.RemoteAddr) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	snapshot := h.profiles.GenerateProfileSnapshot(r.Context(), userID)
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) weeklyInsights(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	report := h.insights.GenerateWeeklyInsights(r.Context(), userID)
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) detectPatterns(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	patterns := h.insights.DetectPatterns(r.Context(), userID, queryInt(r, "limit"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"patterns": patterns})
}

func (h *Handler) mirrorMoments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	moments := h.insights.DetectMirrorMoments(r.Context(), userID, queryInt(r, "limit"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"mirror_moments": moments})
}

func (h *Handler) communicationTips(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	tips := h.insights.GenerateTips(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"tips": tips})
}

type likeRequest struct {
	UserID    string `json:"user_id"`
	InsightID string `json:"insight_id"`
	Liked     *bool  `json:"liked,omitempty"`
}

func (h *Handler) likeInsight(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" || req.InsightID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and insight_id are required"})
		return
	}

	// Absent liked means like; explicit false unlikes.
	var err error
	if req.Liked != nil && !*req.Liked {
		err = h.likes.UnlikeInsight(r.Context(), req.UserID, req.InsightID)
	} else {
		err = h.likes.LikeInsight(r.Context(), req.UserID, req.InsightID)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) quizQuestions(w http.ResponseWriter, r *http.Request) {
	cards := h.quiz.GenerateQuestions(r.URL.Query().Get("fingerprint"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

type conditionalCardRequest struct {
	Responses   []quiz.Response `json:"responses"`
	Fingerprint string          `json:"fingerprint"`
}

func (h *Handler) quizConditionalCard(w http.ResponseWriter, r *http.Request) {
	var req conditionalCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	card := h.quiz.ConditionalCard(req.Responses, req.Fingerprint)
	writeJSON(w, http.StatusOK, card)
}

type analyzeRequest struct {
	Responses []quiz.Response `json:"responses"`
}

func (h *Handler) quizAnalyze(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	contactID := chi.URLParam(r, "contactID")

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for _, resp := range req.Responses {
		if err := h.quiz.StoreResponse(r.Context(), userID, contactID, resp); err != nil {
			h.logger.Warn("quiz response store failed",
				zap.String("user", userID), zap.Error(err))
		}
	}

	analysis := h.quiz.AnalyzeResponses(r.Context(), userID, contactID, req.Responses)
	writeJSON(w, http.StatusOK, analysis)
}

type wimtsGenerateRequest struct {
	UserID      string                   `json:"user_id"`
	SessionID   string                   `json:"session_id,omitempty"`
	IntakeText  string                   `json:"intake_text"`
	Profile     *profile.ProfileSnapshot `json:"profile,omitempty"`
	RecipientID string                   `json:"recipient_id,omitempty"`
}

func (h *Handler) generateWimts(w http.ResponseWriter, r *http.Request) {
	var req wimtsGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.IntakeText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "intake_text is required"})
		return
	}

	result, err := h.wimts.Generate(r.Context(), wimts.GenerateRequest{
		UserID:      req.UserID,
		SessionID:   req.SessionID,
		IntakeText:  req.IntakeText,
		Profile:     req.Profile,
		RecipientID: req.RecipientID,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type wimtsSelectRequest struct {
	OptionID string `json:"option_id"`
}

func (h *Handler) selectWimts(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req wimtsSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if h.selects == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "selection store not configured"})
		return
	}
	if err := h.selects.InsertWimtsSelection(r.Context(), sessionID, req.OptionID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type translateRequest struct {
	BaseText string `json:"base_text"`
	Mode     string `json:"mode"`
}

func (h *Handler) generateTranslations(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.BaseText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "base_text is required"})
		return
	}
	if translate.Styles(req.Mode) == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be 4 or 8"})
		return
	}

	result, err := h.translate.Generate(r.Context(), translate.Request{
		BaseText: req.BaseText,
		Mode:     req.Mode,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type createReflectionRequest struct {
	UserID          string `json:"user_id"`
	BaseIntakeText  string `json:"base_intake_text"`
	TranslationText string `json:"translation_text"`
}

func (h *Handler) createReflection(w http.ResponseWriter, r *http.Request) {
	var req createReflectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.UserID == "" || req.BaseIntakeText == "" || req.TranslationText == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id, base_intake_text and translation_text are required"})
		return
	}

	id, err := h.reflections.InsertReflection(r.Context(), req.UserID, req.BaseIntakeText, req.TranslationText)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// Indexing is best-effort and off the request path; similarity search
	// just will not see this reflection if it fails.
	if h.similar != nil {
		ref := &profile.Reflection{ID: id, UserID: req.UserID, BaseIntakeText: req.BaseIntakeText}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.similar.Index(ctx, ref); err != nil {
				h.logger.Warn("reflection indexing failed", zap.String("reflection", id), zap.Error(err))
			}
		}()
	}

	writeJSON(w, http.StatusOK, map[string]string{"reflection_id": id})
}

func (h *Handler) similarReflections(w http.ResponseWriter, r *http.Request) {
	if h.similar == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "similarity search not configured"})
		return
	}
	id := chi.URLParam(r, "id")
	results, err := h.similar.Similar(r.Context(), id, queryInt(r, "limit"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"similar": results})
}

func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
