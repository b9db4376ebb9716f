package scoring

import (
	"strings"

	"vocabquiz/internal/quiz"
)

type FillInTheBlankPayload struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
	Word   string `json:"word"`
}

type SentencePayload struct {
	Word       string `json:"word"`
	Sentence   string `json:"sentence"`
	Definition string `json:"definition"`
}

// Task is one grading call. Exactly one payload is set, matching Type.
type Task struct {
	QuestionID     string
	Type           quiz.QuestionType
	FillInTheBlank *FillInTheBlankPayload
	Sentence       *SentencePayload
}

// GradedResult is merged back onto its question by QuestionID.
type GradedResult struct {
	QuestionID string `json:"question_id"`
	Correct    *bool  `json:"correct,omitempty"`
	Score      *int   `json:"score,omitempty"`
	Feedback   string `json:"feedback"`
}

func Answered(q quiz.Question) bool {
	return strings.TrimSpace(q.Answer) != ""
}

// BuildTasks creates one task per answered gradable question, in question order.
func BuildTasks(questions []quiz.Question) []Task {
	tasks := make([]Task, 0, len(questions))
	for _, q := range questions {
		if !q.Gradable() || !Answered(q) {
			continue
		}
		t := Task{QuestionID: q.ID, Type: q.Type}
		switch q.Type {
		case quiz.TypeFillInTheBlank:
			t.FillInTheBlank = &FillInTheBlankPayload{Prompt: q.Prompt, Answer: q.Answer, Word: q.Word}
		case quiz.TypeSentence:
			t.Sentence = &SentencePayload{Word: q.Word, Sentence: q.Answer, Definition: q.Definition}
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// GradableQuestions lists fill-in-the-blank questions followed by sentence
// questions, which is the order attempts are persisted in.
func GradableQuestions(set quiz.CategorizedQuestionSet) []quiz.Question {
	out := make([]quiz.Question, 0, len(set.FillInTheBlanks)+len(set.Sentences))
	out = append(out, set.FillInTheBlanks...)
	out = append(out, set.Sentences...)
	return out
}
