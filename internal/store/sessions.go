package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mirrorlab/mirror/internal/profile"
)

// RecentIntakeSessions returns the user's newest intake sessions, newest first.
func (s *Store) RecentIntakeSessions(ctx context.Context, userID string, limit int) ([]profile.IntakeSession, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, profile_snapshot, completed_at, created_at
		FROM intake_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent intake sessions: %w", err)
	}
	defer rows.Close()

	var out []profile.IntakeSession
	for rows.Next() {
		var sess profile.IntakeSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.ProfileSnapshot, &sess.CompletedAt, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan intake session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// LatestProfileSnapshot returns the newest non-empty profile snapshot stored
// on any of the user's intake sessions.
func (s *Store) LatestProfileSnapshot(ctx context.Context, userID string) (json.RawMessage, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT profile_snapshot
		FROM intake_sessions
		WHERE user_id = $1 AND profile_snapshot IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1`, userID)

	var snapshot json.RawMessage
	err := row.Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("latest profile snapshot: %w", err)
	}
	return snapshot, true, nil
}
