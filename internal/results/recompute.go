package results

import (
	"fmt"
	"log"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/scoring"
)

// Recompute rebuilds submitted questions against the stored quiz and derives
// the totals server-side. Submitted totals are never trusted. Questions that
// match nothing in the quiz, or have no recognizable grading shape, are dropped.
func Recompute(submitted []quiz.Question, known quiz.CategorizedQuestionSet) ([]quiz.Question, scoring.Totals) {
	byID := make(map[string]quiz.Question)
	byWord := make(map[string]quiz.Question)
	for _, q := range scoring.GradableQuestions(known) {
		byID[q.ID] = q
		if _, ok := byWord[q.Word]; !ok {
			byWord[q.Word] = q
		}
	}

	out := make([]quiz.Question, 0, len(submitted))
	seen := make(map[string]struct{}, len(submitted))
	for _, q := range submitted {
		ref, ok := byID[q.ID]
		if !ok {
			ref, ok = byWord[q.Word]
		}
		if !ok {
			log.Printf("results: submitted question id=%q word=%q matches no quiz question, dropped", q.ID, q.Word)
			continue
		}
		if _, dup := seen[ref.ID]; dup {
			log.Printf("results: question id=%q submitted more than once, repeat dropped", ref.ID)
			continue
		}
		if q.ID == "" {
			q.ID = ref.ID
		}
		q.Word = ref.Word
		q.Type = ref.Type

		switch {
		case q.Type == quiz.TypeFillInTheBlank && q.Correct != nil:
			q.CorrectAnswer = ref.Word
			q.Score = nil
		case q.Type == quiz.TypeSentence && q.Score != nil:
			q.CorrectAnswer = ""
			q.Correct = nil
			s := clamp(*q.Score)
			q.Score = &s
		default:
			log.Printf("results: question id=%q has unknown format, dropped", q.ID)
			continue
		}
		seen[ref.ID] = struct{}{}
		out = append(out, q)
	}
	return out, scoring.Tally(out)
}

// ApplyRescore applies one partial update and recomputes the totals with the
// same weighting as grading. The input slice is not modified.
func ApplyRescore(questions []quiz.Question, index int, upd QuestionUpdate) ([]quiz.Question, scoring.Totals, error) {
	if index < 0 || index >= len(questions) {
		return nil, scoring.Totals{}, ErrIndexOutOfRange
	}
	q := questions[index]

	if upd.Correct != nil {
		if q.Type != quiz.TypeFillInTheBlank {
			return nil, scoring.Totals{}, fmt.Errorf("%w: correct applies to fill-in-the-blank questions only", ErrInvalidRescore)
		}
		v := *upd.Correct
		q.Correct = &v
	}
	if upd.Score != nil {
		if q.Type != quiz.TypeSentence {
			return nil, scoring.Totals{}, fmt.Errorf("%w: score applies to sentence questions only", ErrInvalidRescore)
		}
		if *upd.Score < 0 || *upd.Score > scoring.MaxSentenceScore {
			return nil, scoring.Totals{}, fmt.Errorf("%w: score must be between 0 and %d", ErrInvalidRescore, scoring.MaxSentenceScore)
		}
		v := *upd.Score
		q.Score = &v
	}
	if upd.Feedback != nil {
		q.Feedback = *upd.Feedback
	}

	out := make([]quiz.Question, len(questions))
	copy(out, questions)
	out[index] = q
	return out, scoring.Tally(out), nil
}

// BuildReview splits stored questions into sections: questions with a
// correctAnswer are fill-in-the-blank, the rest are sentences.
func BuildReview(a *Attempt, definitions []quiz.Question) (*Review, error) {
	if a == nil || a.Details.Questions == nil {
		return nil, ErrMalformedAttempt
	}
	if definitions == nil {
		definitions = []quiz.Question{}
	}
	rv := &Review{
		ID:         a.ID,
		Name:       a.Details.Name,
		Score:      a.Score,
		TotalScore: a.TotalScore,
		Passed:     a.Passed,
		TS:         a.TS,
		CategorizedQuestionSet: quiz.CategorizedQuestionSet{
			Definitions:     definitions,
			FillInTheBlanks: []quiz.Question{},
			Sentences:       []quiz.Question{},
		},
	}
	for i, q := range a.Details.Questions {
		if q.Word == "" {
			return nil, fmt.Errorf("%w: question %d has no word", ErrMalformedAttempt, i)
		}
		if q.CorrectAnswer != "" {
			q.Type = quiz.TypeFillInTheBlank
			rv.FillInTheBlanks = append(rv.FillInTheBlanks, q)
			continue
		}
		q.Type = quiz.TypeSentence
		rv.Sentences = append(rv.Sentences, q)
	}
	return rv, nil
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > scoring.MaxSentenceScore {
		return scoring.MaxSentenceScore
	}
	return v
}
