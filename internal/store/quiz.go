package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mirrorlab/mirror/internal/quiz"
)

// InsertQuizResponse stores one answered card for a (user, contact) pair.
func (s *Store) InsertQuizResponse(ctx context.Context, userID, contactID string, r quiz.Response) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO relationship_quiz_responses
			(id, user_id, contact_id, card_number, card_type, question, input_type, answer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		uuid.NewString(), userID, contactID, r.CardNumber, r.CardType, r.Question, r.InputType, r.Answer,
	)
	if err != nil {
		return fmt.Errorf("insert quiz response: %w", err)
	}
	return nil
}

// QuizResponses returns all responses for a (user, contact) pair in card
// order, most recent answer per card winning.
func (s *Store) QuizResponses(ctx context.Context, userID, contactID string) ([]quiz.Response, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT ON (card_number)
			card_number, card_type, question, input_type, answer
		FROM relationship_quiz_responses
		WHERE user_id = $1 AND contact_id = $2
		ORDER BY card_number, created_at DESC`, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("quiz responses: %w", err)
	}
	defer rows.Close()

	var out []quiz.Response
	for rows.Next() {
		var r quiz.Response
		if err := rows.Scan(&r.CardNumber, &r.CardType, &r.Question, &r.InputType, &r.Answer); err != nil {
			return nil, fmt.Errorf("scan quiz response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountQuizResponses counts distinct answered cards for a (user, contact)
// pair.
func (s *Store) CountQuizResponses(ctx context.Context, userID, contactID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT card_number)
		FROM relationship_quiz_responses
		WHERE user_id = $1 AND contact_id = $2`, userID, contactID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count quiz responses: %w", err)
	}
	return count, nil
}
