// Package profile derives structured communication-profile snapshots from a
// user's behavioral records: bounded parallel aggregation, deterministic
// pattern extraction, LLM synthesis with schema repair, and content-addressed
// reconciliation of the insight feed.
package profile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/provider"
	"github.com/mirrorlab/mirror/internal/synth"
)

// Service generates profile snapshots. All collaborators are injected; the
// service holds no state of its own and is safe for concurrent use.
type Service struct {
	agg           *Aggregator
	gen           provider.TextGenerator
	rec           *Reconciler
	logger        *zap.Logger
	configVersion string
	timeout       time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each generation call. Expiry is treated exactly like a
// service failure: the task degrades to its neutral default.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithConfigVersion tags snapshots with the given configuration version.
func WithConfigVersion(v string) Option {
	return func(s *Service) { s.configVersion = v }
}

// NewService creates a profile Service.
func NewService(src RecordSource, insights InsightStore, gen provider.TextGenerator, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		agg:           NewAggregator(src, logger),
		gen:           gen,
		rec:           NewReconciler(insights, logger),
		logger:        logger,
		configVersion: "cfg_mvp_1",
		timeout:       60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateProfileSnapshot aggregates the user's records, synthesizes the
// three sub-snapshots concurrently, reconciles the insight feed, and
// composes the result. It never fails: every internal error degrades to a
// schema-valid default.
func (s *Service) GenerateProfileSnapshot(ctx context.Context, userID string) *ProfileSnapshot {
	agg := s.agg.Collect(ctx, userID)

	var (
		wg        sync.WaitGroup
		cognitive synth.Result[CognitiveSnapshot]
		fear      synth.Result[FearSnapshot]
		insights  InsightsSnapshot
	)
	wg.Add(3)

	go func() {
		defer wg.Done()
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		cognitive = synthesizeCognitive(tctx, s.gen, s.logger, agg)
	}()

	go func() {
		defer wg.Done()
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		fear = synthesizeFear(tctx, s.gen, s.logger, agg)
	}()

	go func() {
		defer wg.Done()
		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		raw := synthesizeInsights(tctx, s.gen, s.logger, agg)
		feed := s.rec.Reconcile(ctx, userID, raw.Value.Feed)
		insights = InsightsSnapshot{
			Feed:                feed,
			MirrorMoments:       raw.Value.MirrorMoments,
			InnerDialogueReplay: raw.Value.InnerDialogueReplay,
		}
	}()

	wg.Wait()

	s.logger.Info("profile snapshot generated",
		zap.String("user", userID),
		zap.String("cognitive", cognitive.Outcome.String()),
		zap.String("fear", fear.Outcome.String()),
		zap.Int("feed_items", len(insights.Feed)))

	return s.compose(userID, cognitive.Value, fear.Value, insights)
}

// compose assembles the final snapshot. It cannot fail: every sub-snapshot
// already carries a valid value by the time it reaches composition.
func (s *Service) compose(userID string, cognitive CognitiveSnapshot, fear FearSnapshot, insights InsightsSnapshot) *ProfileSnapshot {
	if insights.Feed == nil {
		insights.Feed = []InsightItem{}
	}
	if insights.InnerDialogueReplay == nil {
		insights.InnerDialogueReplay = []DialogueReplay{}
	}
	return &ProfileSnapshot{
		UserID:            userID,
		CognitiveSnapshot: cognitive,
		FearSnapshot:      fear,
		InsightsSnapshot:  insights,
		Metadata: SnapshotMetadata{
			GeneratedAt:   time.Now().UTC(),
			ConfigVersion: s.configVersion,
		},
	}
}
