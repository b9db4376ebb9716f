package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrQuizNotFound = errors.New("quiz not found")
	ErrInvalidQuiz  = errors.New("invalid quiz")
)

// Store keeps quizzes exactly as ingested. Items are normalized by readers.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type quizRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	ItemsJSON string `db:"items_json"`
	CreatedAt int64  `db:"created_at"`
}

func (r quizRow) toQuiz() (*Quiz, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(r.ItemsJSON), &items); err != nil {
		return nil, fmt.Errorf("decode items of quiz %s: %w", r.ID, err)
	}
	return &Quiz{
		ID:        r.ID,
		Name:      r.Name,
		Items:     items,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Quiz, error) {
	var row quizRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, name, items_json, created_at
		FROM quizzes
		WHERE id = ?
	`), strings.TrimSpace(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return row.toQuiz()
}

// Create stores a raw item list under a fresh id. Items are not validated
// beyond being a JSON array; malformed entries are dropped on read.
func (s *Store) Create(ctx context.Context, name string, items []json.RawMessage) (*Quiz, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidQuiz)
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuiz, err)
	}

	row := quizRow{
		ID:        uuid.NewString(),
		Name:      name,
		ItemsJSON: string(b),
		CreatedAt: s.now().UnixMilli(),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO quizzes (id, name, items_json, created_at)
		VALUES (:id, :name, :items_json, :created_at)
	`, row)
	if err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}
	return row.toQuiz()
}

// Names maps quiz ids to names. Unknown ids are absent from the result.
func (s *Store) Names(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, name FROM quizzes WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build quiz names query: %w", err)
	}
	var rows []struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list quiz names: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.Name
	}
	return out, nil
}
