package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mirrorlab/mirror/internal/profile"
)

// InsertReflection stores a new reflection and returns its id.
func (s *Store) InsertReflection(ctx context.Context, userID, baseIntakeText, translationText string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO reflections (id, user_id, base_intake_text, translation_text, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		id, userID, baseIntakeText, translationText,
	)
	if err != nil {
		return "", fmt.Errorf("insert reflection: %w", err)
	}
	return id, nil
}

// RecentReflections returns the user's newest reflections, newest first.
func (s *Store) RecentReflections(ctx context.Context, userID string, limit int) ([]profile.Reflection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, base_intake_text, COALESCE(translation_text, ''), created_at
		FROM reflections
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent reflections: %w", err)
	}
	defer rows.Close()
	return scanReflections(rows)
}

// ReflectionsSince returns the user's reflections created at or after the
// given time, newest first.
func (s *Store) ReflectionsSince(ctx context.Context, userID string, since time.Time) ([]profile.Reflection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, base_intake_text, COALESCE(translation_text, ''), created_at
		FROM reflections
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("reflections since: %w", err)
	}
	defer rows.Close()
	return scanReflections(rows)
}

// ReflectionByID retrieves a single reflection.
func (s *Store) ReflectionByID(ctx context.Context, id string) (*profile.Reflection, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, base_intake_text, COALESCE(translation_text, ''), created_at
		FROM reflections WHERE id = $1`, id)

	var r profile.Reflection
	err := row.Scan(&r.ID, &r.UserID, &r.BaseIntakeText, &r.TranslationText, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get reflection %s: %w", id, err)
	}
	return &r, true, nil
}

// ReflectionsByIDs loads the given reflections in no particular order.
func (s *Store) ReflectionsByIDs(ctx context.Context, ids []string) ([]profile.Reflection, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, base_intake_text, COALESCE(translation_text, ''), created_at
		FROM reflections WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("reflections by ids: %w", err)
	}
	defer rows.Close()
	return scanReflections(rows)
}

func scanReflections(rows pgx.Rows) ([]profile.Reflection, error) {
	var out []profile.Reflection
	for rows.Next() {
		var r profile.Reflection
		if err := rows.Scan(&r.ID, &r.UserID, &r.BaseIntakeText, &r.TranslationText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reflection: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
