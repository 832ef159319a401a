package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/wimts"
)

// RecentWimtsSessions returns the user's newest generation rounds, newest first.
func (s *Store) RecentWimtsSessions(ctx context.Context, userID string, limit int) ([]profile.WimtsSession, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, COALESCE(intake_text, ''), profile_snapshot, completed, created_at
		FROM wimts_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent wimts sessions: %w", err)
	}
	defer rows.Close()

	var out []profile.WimtsSession
	for rows.Next() {
		var sess profile.WimtsSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.IntakeText, &sess.ProfileSnapshot, &sess.Completed, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wimts session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RecentWimtsSelections returns the user's newest variant picks across all
// of their sessions, newest first.
func (s *Store) RecentWimtsSelections(ctx context.Context, userID string, limit int) ([]profile.WimtsSelection, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sel.id, sel.session_id, COALESCE(sel.option_id, ''), sel.selected_at
		FROM wimts_selections sel
		JOIN wimts_sessions sess ON sess.id = sel.session_id
		WHERE sess.user_id = $1
		ORDER BY sel.selected_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent wimts selections: %w", err)
	}
	defer rows.Close()

	var out []profile.WimtsSelection
	for rows.Next() {
		var sel profile.WimtsSelection
		if err := rows.Scan(&sel.ID, &sel.SessionID, &sel.OptionID, &sel.SelectedAt); err != nil {
			return nil, fmt.Errorf("scan wimts selection: %w", err)
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

// InsertWimtsSession stores a generation round and returns its id.
func (s *Store) InsertWimtsSession(ctx context.Context, userID, sessionID, intakeText string, profileSnapshot json.RawMessage) (string, error) {
	id := uuid.NewString()
	var origin *string
	if sessionID != "" {
		origin = &sessionID
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO wimts_sessions (id, user_id, intake_session_id, intake_text, profile_snapshot, completed, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW())`,
		id, userID, origin, intakeText, profileSnapshot,
	)
	if err != nil {
		return "", fmt.Errorf("insert wimts session: %w", err)
	}
	return id, nil
}

// InsertWimtsOptions stores the generated variants for a session.
func (s *Store) InsertWimtsOptions(ctx context.Context, wimtsSessionID string, options []wimts.Option) error {
	for _, opt := range options {
		_, err := s.db.Exec(ctx, `
			INSERT INTO wimts_options (id, session_id, option_id, title, body, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())`,
			uuid.NewString(), wimtsSessionID, opt.OptionID, opt.Title, opt.Body,
		)
		if err != nil {
			return fmt.Errorf("insert wimts option %s: %w", opt.OptionID, err)
		}
	}
	return nil
}

// InsertWimtsSelection records the variant the user picked and marks the
// session completed.
func (s *Store) InsertWimtsSelection(ctx context.Context, wimtsSessionID, optionID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wimts_selections (id, session_id, option_id, selected_at)
		VALUES ($1, $2, $3, NOW())`,
		uuid.NewString(), wimtsSessionID, optionID,
	)
	if err != nil {
		return fmt.Errorf("insert wimts selection: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`UPDATE wimts_sessions SET completed = TRUE WHERE id = $1`, wimtsSessionID)
	if err != nil {
		return fmt.Errorf("complete wimts session %s: %w", wimtsSessionID, err)
	}
	return nil
}

// ContactWithSliders loads a contact owned by the user together with its
// communication sliders, when set.
func (s *Store) ContactWithSliders(ctx context.Context, userID, contactID string) (*wimts.Contact, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT c.id, c.name, COALESCE(c.relationship_type, ''),
		       cs.directness, cs.formality, cs.warmth,
		       cs.emotional_expression, cs.reassurance_level, cs.vulnerability
		FROM contacts c
		LEFT JOIN contact_sliders cs ON cs.contact_id = c.id
		WHERE c.id = $1 AND c.user_id = $2`, contactID, userID)

	var c wimts.Contact
	var sl wimts.ContactSliders
	var directness, formality, warmth, expression, reassurance, vulnerability *float64
	err := row.Scan(&c.ID, &c.Name, &c.RelationshipType,
		&directness, &formality, &warmth, &expression, &reassurance, &vulnerability)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get contact %s: %w", contactID, err)
	}
	if directness != nil {
		sl = wimts.ContactSliders{
			Directness:          *directness,
			Formality:           *formality,
			Warmth:              *warmth,
			EmotionalExpression: *expression,
			ReassuranceLevel:    *reassurance,
			Vulnerability:       *vulnerability,
		}
		c.Sliders = &sl
	}
	return &c, true, nil
}
