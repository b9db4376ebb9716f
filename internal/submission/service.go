package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/results"
	"vocabquiz/internal/scoring"
)

var ErrNothingToSubmit = errors.New("quiz has no gradable questions")

// Persister stores a graded attempt. It is called exactly once per submission.
type Persister interface {
	CreateResult(ctx context.Context, in results.CreateInput) (*results.Attempt, error)
}

// PersistError means grading finished but the attempt could not be stored.
// Message is what the persistence endpoint reported and is safe to show.
type PersistError struct {
	Message string
	Err     error
}

func (e *PersistError) Error() string {
	return "persist attempt: " + e.Message
}

func (e *PersistError) Unwrap() error { return e.Err }

// serverMessage is implemented by transport errors that carry the remote
// error field.
type serverMessage interface {
	ServerMessage() string
}

type Input struct {
	Username  string
	QuizID    string
	QuizName  string
	TimeSpent time.Duration
	// Questions are the gradable questions in persisted order with answers set.
	Questions []quiz.Question
}

type Result struct {
	Attempt *results.Attempt
	Outcome scoring.Outcome
}

type Service struct {
	grade       scoring.GradeFunc
	persister   Persister
	concurrency int
}

func NewService(policy *scoring.RetryPolicy, persister Persister, concurrency int) *Service {
	return &Service{grade: policy.Grade, persister: persister, concurrency: concurrency}
}

// Submit grades every answered question, folds the results into totals and
// persists the attempt. Grading failures only lower the score; a failed
// persist is returned as *PersistError and nothing is retried.
func (s *Service) Submit(ctx context.Context, in Input, onProgress func(scoring.Progress)) (*Result, error) {
	if len(in.Questions) == 0 {
		return nil, ErrNothingToSubmit
	}

	tasks := scoring.BuildTasks(in.Questions)
	started := time.Now()
	graded := scoring.Run(ctx, tasks, s.concurrency, s.grade, onProgress)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submission cancelled: %w", err)
	}
	outcome := scoring.Aggregate(in.Questions, graded)
	log.Printf("submission graded user=%s quiz=%s tasks=%d score=%d/%d in %s",
		in.Username, in.QuizID, len(tasks), outcome.Score, outcome.TotalScore, time.Since(started).Round(time.Millisecond))

	attempt, err := s.persister.CreateResult(ctx, results.CreateInput{
		Username:  in.Username,
		QuizID:    in.QuizID,
		TimeSpent: int(in.TimeSpent / time.Second),
		Details:   results.Details{Name: in.QuizName, Questions: outcome.Questions},
	})
	if err != nil {
		log.Printf("submission persist failed user=%s quiz=%s: %v", in.Username, in.QuizID, err)
		return nil, &PersistError{Message: persistMessage(err), Err: err}
	}
	return &Result{Attempt: attempt, Outcome: outcome}, nil
}

func persistMessage(err error) string {
	var sm serverMessage
	if errors.As(err, &sm) {
		if msg := strings.TrimSpace(sm.ServerMessage()); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// Questions pairs a categorized set with the learner's answers and returns
// the gradable questions in persisted order. fillOrder lists fill-in-the-blank
// question ids in display order; answers are indexed by that order. Missing
// answers are treated as blank.
func Questions(set quiz.CategorizedQuestionSet, fillOrder []string, fillAnswers, sentenceAnswers []string) []quiz.Question {
	fills := OrderFillInTheBlanks(set.FillInTheBlanks, fillOrder)
	out := make([]quiz.Question, 0, len(fills)+len(set.Sentences))
	for i, q := range fills {
		q.Answer = answerAt(fillAnswers, i)
		out = append(out, q)
	}
	for i, q := range set.Sentences {
		q.Answer = answerAt(sentenceAnswers, i)
		out = append(out, q)
	}
	return out
}

// OrderFillInTheBlanks arranges questions by id order. Ids not in order are
// appended in their original order, unknown ids are ignored.
func OrderFillInTheBlanks(questions []quiz.Question, order []string) []quiz.Question {
	if len(order) == 0 {
		return questions
	}
	byID := make(map[string]quiz.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	out := make([]quiz.Question, 0, len(questions))
	placed := make(map[string]struct{}, len(questions))
	for _, id := range order {
		q, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		out = append(out, q)
	}
	for _, q := range questions {
		if _, ok := placed[q.ID]; !ok {
			out = append(out, q)
		}
	}
	return out
}

func answerAt(answers []string, i int) string {
	if i < len(answers) {
		return answers[i]
	}
	return ""
}
