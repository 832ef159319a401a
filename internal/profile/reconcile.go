package profile

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// InsightStore persists insight rows keyed by their content-based natural
// key (user_id, title, snippet) and the user's like relations.
type InsightStore interface {
	// FindInsightByContent reports the stored id for the natural key, or
	// found=false when no row exists.
	FindInsightByContent(ctx context.Context, userID, title, snippet string) (id string, found bool, err error)
	InsertInsight(ctx context.Context, userID string, ins GeneratedInsight) (id string, err error)
	UpdateInsight(ctx context.Context, id string, insType, icon string, tags []string) error
	// LikedInsightIDs returns, among the given ids, those the user has liked.
	LikedInsightIDs(ctx context.Context, userID string, ids []string) (map[string]bool, error)
}

// Reconciler maps generated insights onto stable store identities and merges
// persisted liked state back onto the fresh feed.
type Reconciler struct {
	store  InsightStore
	logger *zap.Logger
}

// NewReconciler creates a Reconciler over the given insight store.
func NewReconciler(store InsightStore, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, logger: logger}
}

// Reconcile upserts each generated insight by natural key, strictly in
// sequence: the lookup-then-insert pair is not atomic, and concurrent writers
// for the same user could otherwise create duplicate rows. An item whose
// store operation fails is skipped, not fatal. Feed order is preserved.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, generated []GeneratedInsight) []InsightItem {
	now := time.Now().UTC()
	items := make([]InsightItem, 0, len(generated))

	for _, ins := range generated {
		id, found, err := r.store.FindInsightByContent(ctx, userID, ins.Title, ins.Snippet)
		if err != nil {
			r.logger.Error("insight lookup failed, skipping item",
				zap.String("user", userID), zap.String("title", ins.Title), zap.Error(err))
			continue
		}

		if found {
			if err := r.store.UpdateInsight(ctx, id, ins.Type, ins.Icon, ins.Tags); err != nil {
				r.logger.Error("insight update failed, skipping item",
					zap.String("user", userID), zap.String("id", id), zap.Error(err))
				continue
			}
		} else {
			id, err = r.store.InsertInsight(ctx, userID, ins)
			if err != nil {
				r.logger.Error("insight insert failed, skipping item",
					zap.String("user", userID), zap.String("title", ins.Title), zap.Error(err))
				continue
			}
		}

		items = append(items, InsightItem{
			InsightID: id,
			Type:      ins.Type,
			Icon:      ins.Icon,
			Title:     ins.Title,
			Snippet:   ins.Snippet,
			Tags:      ins.Tags,
			TS:        now,
		})
	}

	if len(items) == 0 {
		return items
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.InsightID
	}
	liked, err := r.store.LikedInsightIDs(ctx, userID, ids)
	if err != nil {
		r.logger.Warn("liked lookup failed, feed returned unliked",
			zap.String("user", userID), zap.Error(err))
		return items
	}
	for i := range items {
		items[i].Liked = liked[items[i].InsightID]
	}
	return items
}
