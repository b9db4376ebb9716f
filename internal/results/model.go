package results

import (
	"errors"
	"time"

	"vocabquiz/internal/quiz"
)

var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrInvalidAttempt   = errors.New("invalid attempt")
	ErrMalformedAttempt = errors.New("malformed attempt record")
	ErrIndexOutOfRange  = errors.New("question_index out of range")
	ErrInvalidRescore   = errors.New("invalid question update")
	ErrUsernameRequired = errors.New("username required")
	ErrAttemptForbidden = errors.New("attempt forbidden")
)

// DeletedQuizName labels attempts whose quiz no longer exists.
const DeletedQuizName = "Deleted Quiz"

type Details struct {
	Name      string          `json:"name"`
	Questions []quiz.Question `json:"questions"`
}

// Attempt is one stored, graded submission.
type Attempt struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	QuizID     string    `json:"quiz_id"`
	Score      int       `json:"score"`
	TotalScore int       `json:"total_score"`
	Passed     bool      `json:"passed"`
	TimeSpent  int       `json:"time_spent"`
	Details    Details   `json:"details"`
	TS         time.Time `json:"ts"`
}

type Summary struct {
	ID         string    `json:"id"`
	QuizID     string    `json:"quiz_id"`
	QuizName   string    `json:"quiz_name"`
	Score      int       `json:"score"`
	TotalScore int       `json:"total_score"`
	Passed     bool      `json:"passed"`
	TS         time.Time `json:"ts"`
}

type CreateInput struct {
	Username  string  `json:"username" validate:"required,max=100"`
	QuizID    string  `json:"quiz_id" validate:"required"`
	TimeSpent int     `json:"time_spent" validate:"gte=0"`
	Details   Details `json:"details"`
}

// CreatedResult is the persistence endpoint's acknowledgement.
type CreatedResult struct {
	ID string `json:"id"`
}

// QuestionUpdate is a partial grading change. Nil fields are left alone.
type QuestionUpdate struct {
	Correct  *bool   `json:"correct,omitempty"`
	Score    *int    `json:"score,omitempty"`
	Feedback *string `json:"feedback,omitempty"`
}

type RescoreInput struct {
	QuestionIndex *int           `json:"question_index" validate:"required,gte=0"`
	Update        QuestionUpdate `json:"question_update"`
}

// Review is an attempt split back into the sections it was taken in.
type Review struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	TotalScore int       `json:"total_score"`
	Passed     bool      `json:"passed"`
	TS         time.Time `json:"ts"`
	quiz.CategorizedQuestionSet
}
