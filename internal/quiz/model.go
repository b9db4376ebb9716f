package quiz

import (
	"encoding/json"
	"time"
)

type QuestionType string

const (
	TypeDefinition     QuestionType = "definition"
	TypeFillInTheBlank QuestionType = "fill-in-the-blank"
	TypeSentence       QuestionType = "sentence"
)

// Question is one gradable or display-only unit of an attempt.
// Correct is only ever set on fill-in-the-blank questions and Score only on
// sentence questions; definitions carry neither.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Word          string       `json:"word"`
	Prompt        string       `json:"prompt,omitempty"`
	Definition    string       `json:"definition,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Answer        string       `json:"answer"`
	Correct       *bool        `json:"correct,omitempty"`
	Score         *int         `json:"score,omitempty"`
	Feedback      string       `json:"feedback,omitempty"`
}

// Gradable reports whether the question type is ever sent to the grading service.
func (q Question) Gradable() bool {
	return q.Type == TypeFillInTheBlank || q.Type == TypeSentence
}

type CategorizedQuestionSet struct {
	Definitions     []Question `json:"definitions"`
	FillInTheBlanks []Question `json:"fill_in_the_blanks"`
	Sentences       []Question `json:"sentences"`
}

// Quiz is a stored quiz as ingested: a name and its raw, untyped item list.
type Quiz struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Items     []json.RawMessage `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
}

// Categorize runs the normalizer over the stored raw items.
func (q Quiz) Categorize() CategorizedQuestionSet {
	return Normalize(q.Items)
}
