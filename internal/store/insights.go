package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mirrorlab/mirror/internal/insights"
	"github.com/mirrorlab/mirror/internal/profile"
)

// FindInsightByContent looks up an insight by its natural key: exact user,
// title and snippet match.
func (s *Store) FindInsightByContent(ctx context.Context, userID, title, snippet string) (string, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id FROM insights
		WHERE user_id = $1 AND title = $2 AND snippet = $3
		ORDER BY created_at
		LIMIT 1`, userID, title, snippet)

	var id string
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find insight: %w", err)
	}
	return id, true, nil
}

// InsertInsight stores a newly generated feed item and returns its id.
func (s *Store) InsertInsight(ctx context.Context, userID string, ins profile.GeneratedInsight) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO insights (id, user_id, insight_type, icon, title, snippet, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		id, userID, ins.Type, ins.Icon, ins.Title, ins.Snippet, ins.Tags,
	)
	if err != nil {
		return "", fmt.Errorf("insert insight: %w", err)
	}
	return id, nil
}

// UpdateInsight refreshes the mutable fields of an existing insight. Title
// and snippet are the item's identity and never change here.
func (s *Store) UpdateInsight(ctx context.Context, id string, insType, icon string, tags []string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE insights
		SET insight_type = $2, icon = $3, tags = $4, updated_at = NOW()
		WHERE id = $1`,
		id, insType, icon, tags,
	)
	if err != nil {
		return fmt.Errorf("update insight %s: %w", id, err)
	}
	return nil
}

// LikedInsightIDs returns, among the given ids, those the user has liked.
func (s *Store) LikedInsightIDs(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT insight_id FROM insight_likes
		WHERE user_id = $1 AND insight_id = ANY($2)`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("liked insight ids: %w", err)
	}
	defer rows.Close()

	liked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan liked id: %w", err)
		}
		liked[id] = true
	}
	return liked, rows.Err()
}

// LikeInsight records a like. Liking twice is a no-op.
func (s *Store) LikeInsight(ctx context.Context, userID, insightID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO insight_likes (user_id, insight_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, insight_id) DO NOTHING`,
		userID, insightID,
	)
	if err != nil {
		return fmt.Errorf("like insight %s: %w", insightID, err)
	}
	return nil
}

// UnlikeInsight removes a like. Unliking an unliked insight is a no-op.
func (s *Store) UnlikeInsight(ctx context.Context, userID, insightID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM insight_likes WHERE user_id = $1 AND insight_id = $2`,
		userID, insightID,
	)
	if err != nil {
		return fmt.Errorf("unlike insight %s: %w", insightID, err)
	}
	return nil
}

// ArchiveWeeklyInsights stores the items from one weekly analysis run.
func (s *Store) ArchiveWeeklyInsights(ctx context.Context, userID string, items []insights.WeeklyInsight, weekStart, weekEnd time.Time, reflectionCount int) error {
	for _, item := range items {
		_, err := s.db.Exec(ctx, `
			INSERT INTO weekly_insights (id, user_id, title, content, category, week_start, week_end, reflection_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
			uuid.NewString(), userID, item.Title, item.Content, item.Category, weekStart, weekEnd, reflectionCount,
		)
		if err != nil {
			return fmt.Errorf("archive weekly insight: %w", err)
		}
	}
	return nil
}
