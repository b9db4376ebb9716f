package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/scoring"

	"github.com/google/uuid"
)

type quizLookup interface {
	Get(ctx context.Context, id string) (*quiz.Quiz, error)
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

type attemptStore interface {
	Insert(ctx context.Context, a *Attempt) error
	Get(ctx context.Context, id string) (*Attempt, error)
	ListByUser(ctx context.Context, username, quizID string) ([]Attempt, error)
	UpdateGrading(ctx context.Context, a *Attempt) error
}

type Service struct {
	store   attemptStore
	quizzes quizLookup
	now     func() time.Time
}

func NewService(store attemptStore, quizzes quizLookup) *Service {
	return &Service{store: store, quizzes: quizzes, now: time.Now}
}

// CreateResult stores a graded attempt. Totals and pass state are derived
// here from the questions, whatever the caller computed.
func (s *Service) CreateResult(ctx context.Context, in CreateInput) (*Attempt, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.QuizID = strings.TrimSpace(in.QuizID)
	if in.Username == "" || in.QuizID == "" {
		return nil, fmt.Errorf("%w: username and quiz_id are required", ErrInvalidAttempt)
	}
	if in.TimeSpent < 0 {
		in.TimeSpent = 0
	}

	qz, err := s.quizzes.Get(ctx, in.QuizID)
	if err != nil {
		return nil, err
	}

	questions, totals := Recompute(in.Details.Questions, qz.Categorize())
	name := strings.TrimSpace(in.Details.Name)
	if name == "" {
		name = qz.Name
	}

	a := &Attempt{
		ID:         uuid.NewString(),
		Username:   in.Username,
		QuizID:     qz.ID,
		Score:      totals.Score,
		TotalScore: totals.TotalScore,
		Passed:     scoring.Passed(totals),
		TimeSpent:  in.TimeSpent,
		Details:    Details{Name: name, Questions: questions},
		TS:         s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Attempt, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, username, quizID string) ([]Summary, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrUsernameRequired
	}
	attempts, err := s.store.ListByUser(ctx, username, strings.TrimSpace(quizID))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, a := range attempts {
		if _, ok := seen[a.QuizID]; ok {
			continue
		}
		seen[a.QuizID] = struct{}{}
		ids = append(ids, a.QuizID)
	}
	names, err := s.quizzes.Names(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(attempts))
	for _, a := range attempts {
		name, ok := names[a.QuizID]
		if !ok {
			name = DeletedQuizName
		}
		out = append(out, Summary{
			ID:         a.ID,
			QuizID:     a.QuizID,
			QuizName:   name,
			Score:      a.Score,
			TotalScore: a.TotalScore,
			Passed:     a.Passed,
			TS:         a.TS,
		})
	}
	return out, nil
}

// Rescore patches one question's grading fields and recomputes the totals.
func (s *Service) Rescore(ctx context.Context, id string, in RescoreInput) (*Attempt, error) {
	if in.QuestionIndex == nil {
		return nil, fmt.Errorf("%w: question_index is required", ErrInvalidRescore)
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	questions, totals, err := ApplyRescore(a.Details.Questions, *in.QuestionIndex, in.Update)
	if err != nil {
		return nil, err
	}
	a.Details.Questions = questions
	a.Score = totals.Score
	a.TotalScore = totals.TotalScore
	a.Passed = scoring.Passed(totals)

	if err := s.store.UpdateGrading(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Review rebuilds the sectioned view of a stored attempt. Definitions come
// from the quiz when it still exists.
func (s *Service) Review(ctx context.Context, id string) (*Review, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var definitions []quiz.Question
	qz, err := s.quizzes.Get(ctx, a.QuizID)
	switch {
	case err == nil:
		definitions = qz.Categorize().Definitions
	case errors.Is(err, quiz.ErrQuizNotFound):
	default:
		return nil, err
	}
	return BuildReview(a, definitions)
}
