package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type attemptRow struct {
	ID          string `db:"id"`
	Username    string `db:"username"`
	QuizID      string `db:"quiz_id"`
	Score       int    `db:"score"`
	TotalScore  int    `db:"total_score"`
	Passed      bool   `db:"passed"`
	TimeSpent   int    `db:"time_spent"`
	DetailsJSON string `db:"details_json"`
	TS          int64  `db:"ts"`
}

func (r attemptRow) toAttempt() (*Attempt, error) {
	var d Details
	if err := json.Unmarshal([]byte(r.DetailsJSON), &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedAttempt, r.ID, err)
	}
	return &Attempt{
		ID:         r.ID,
		Username:   r.Username,
		QuizID:     r.QuizID,
		Score:      r.Score,
		TotalScore: r.TotalScore,
		Passed:     r.Passed,
		TimeSpent:  r.TimeSpent,
		Details:    d,
		TS:         time.UnixMilli(r.TS).UTC(),
	}, nil
}

func rowFromAttempt(a *Attempt) (attemptRow, error) {
	b, err := json.Marshal(a.Details)
	if err != nil {
		return attemptRow{}, fmt.Errorf("encode details: %w", err)
	}
	return attemptRow{
		ID:          a.ID,
		Username:    a.Username,
		QuizID:      a.QuizID,
		Score:       a.Score,
		TotalScore:  a.TotalScore,
		Passed:      a.Passed,
		TimeSpent:   a.TimeSpent,
		DetailsJSON: string(b),
		TS:          a.TS.UnixMilli(),
	}, nil
}

func (s *Store) Insert(ctx context.Context, a *Attempt) error {
	row, err := rowFromAttempt(a)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO attempts (id, username, quiz_id, score, total_score, passed, time_spent, details_json, ts)
		VALUES (:id, :username, :quiz_id, :score, :total_score, :passed, :time_spent, :details_json, :ts)
	`, row)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Attempt, error) {
	var row attemptRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, username, quiz_id, score, total_score, passed, time_spent, details_json, ts
		FROM attempts
		WHERE id = ?
	`), strings.TrimSpace(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return row.toAttempt()
}

// ListByUser returns attempts newest first. An empty quizID matches all quizzes.
func (s *Store) ListByUser(ctx context.Context, username, quizID string) ([]Attempt, error) {
	query := `
		SELECT id, username, quiz_id, score, total_score, passed, time_spent, details_json, ts
		FROM attempts
		WHERE username = ?`
	args := []any{username}
	if quizID != "" {
		query += ` AND quiz_id = ?`
		args = append(args, quizID)
	}
	query += ` ORDER BY ts DESC, id DESC`

	var rows []attemptRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	out := make([]Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAttempt()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// UpdateGrading overwrites the graded questions and totals of one attempt.
func (s *Store) UpdateGrading(ctx context.Context, a *Attempt) error {
	row, err := rowFromAttempt(a)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE attempts
		SET score = :score, total_score = :total_score, passed = :passed, details_json = :details_json
		WHERE id = :id
	`, row)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}
