package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"wrongnote-service/internal/domain"
)

// timestampLayout matches the upstream API's createdAt rendering.
const timestampLayout = "2006-01-02T15:04:05"

// WrongAnswerLoader reads wrong answers and quiz logs from Postgres.
type WrongAnswerLoader struct {
	pool *pgxpool.Pool
}

func NewWrongAnswerLoader(pool *pgxpool.Pool) *WrongAnswerLoader {
	return &WrongAnswerLoader{pool: pool}
}

func (l *WrongAnswerLoader) FetchWrongAnswers(ctx context.Context, memberID string, source domain.Source) ([]domain.RawAnswer, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT quiz_id, question, correct_answer, user_answer, created_at,
		       COALESCE(quiz_mode, ''), COALESCE(quiz_subject, '')
		FROM wrong_answers
		WHERE member_id=$1 AND source=$2
		ORDER BY id`, memberID, string(source))
	if err != nil {
		return nil, fmt.Errorf("query wrong answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.RawAnswer
	for rows.Next() {
		var (
			rec       domain.RawAnswer
			createdAt time.Time
		)
		if err := rows.Scan(&rec.QuizID, &rec.Question, &rec.CorrectAnswer, &rec.UserAnswer, &createdAt, &rec.QuizMode, &rec.QuizSubject); err != nil {
			return nil, fmt.Errorf("scan wrong answer: %w", err)
		}
		rec.CreatedAt = createdAt.Format(timestampLayout)
		answers = append(answers, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read wrong answers: %w", err)
	}
	return answers, nil
}

func (l *WrongAnswerLoader) FetchAttemptLog(ctx context.Context, memberID string, problemID int64) ([]domain.AttemptRecord, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT user_answer, is_correct, created_at
		FROM quiz_logs
		WHERE member_id=$1 AND quiz_id=$2
		ORDER BY id`, memberID, problemID)
	if err != nil {
		return nil, fmt.Errorf("query quiz logs: %w", err)
	}
	defer rows.Close()

	var attempts []domain.AttemptRecord
	for rows.Next() {
		var (
			rec       domain.AttemptRecord
			createdAt time.Time
		)
		if err := rows.Scan(&rec.UserAnswer, &rec.Correct, &createdAt); err != nil {
			return nil, fmt.Errorf("scan quiz log: %w", err)
		}
		rec.CreatedAt = createdAt.Format(timestampLayout)
		attempts = append(attempts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read quiz logs: %w", err)
	}
	return attempts, nil
}
