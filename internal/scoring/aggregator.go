package scoring

import "vocabquiz/internal/quiz"

const (
	FillInTheBlankPoints = 2
	SentencePoints       = 4
	MaxSentenceScore     = 4
	PassRatio            = 0.6

	FeedbackNoAnswer      = "No answer provided."
	FeedbackScoringFailed = "Scoring failed."
)

type Totals struct {
	Score      int `json:"score"`
	TotalScore int `json:"total_score"`
}

// Outcome is a graded attempt ready to persist.
type Outcome struct {
	Questions []quiz.Question `json:"questions"`
	Totals
}

func MaxPoints(q quiz.Question) int {
	switch q.Type {
	case quiz.TypeFillInTheBlank:
		return FillInTheBlankPoints
	case quiz.TypeSentence:
		return SentencePoints
	default:
		return 0
	}
}

// Credit returns the points a graded question earns.
func Credit(q quiz.Question) int {
	switch q.Type {
	case quiz.TypeFillInTheBlank:
		if q.Correct != nil && *q.Correct {
			return FillInTheBlankPoints
		}
		return 0
	case quiz.TypeSentence:
		if q.Score == nil {
			return 0
		}
		return clampScore(*q.Score)
	default:
		return 0
	}
}

func Tally(questions []quiz.Question) Totals {
	var t Totals
	for _, q := range questions {
		t.Score += Credit(q)
		t.TotalScore += MaxPoints(q)
	}
	return t
}

func Passed(t Totals) bool {
	if t.TotalScore <= 0 {
		return false
	}
	return float64(t.Score)/float64(t.TotalScore) >= PassRatio
}

// Aggregate merges graded results onto questions by id, keeping question
// order. Unanswered questions get zero credit locally; answered questions
// without a result are treated as failed gradings. Definitions are dropped.
func Aggregate(questions []quiz.Question, graded []GradedResult) Outcome {
	byID := make(map[string]GradedResult, len(graded))
	for _, g := range graded {
		byID[g.QuestionID] = g
	}

	out := make([]quiz.Question, 0, len(questions))
	for _, q := range questions {
		if !q.Gradable() {
			continue
		}
		q.Correct, q.Score = nil, nil

		var res GradedResult
		switch g, ok := byID[q.ID]; {
		case !Answered(q):
			res = unanswered(q)
		case ok:
			res = g
		default:
			res = Fallback(Task{QuestionID: q.ID, Type: q.Type})
		}
		out = append(out, apply(q, res))
	}

	return Outcome{Questions: out, Totals: Tally(out)}
}

func unanswered(q quiz.Question) GradedResult {
	res := Fallback(Task{QuestionID: q.ID, Type: q.Type})
	res.Feedback = FeedbackNoAnswer
	return res
}

func apply(q quiz.Question, res GradedResult) quiz.Question {
	q.Feedback = res.Feedback
	switch q.Type {
	case quiz.TypeFillInTheBlank:
		correct := res.Correct != nil && *res.Correct
		q.Correct = &correct
		if q.CorrectAnswer == "" {
			q.CorrectAnswer = q.Word
		}
	case quiz.TypeSentence:
		score := 0
		if res.Score != nil {
			score = clampScore(*res.Score)
		}
		q.Score = &score
	}
	return q
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxSentenceScore {
		return MaxSentenceScore
	}
	return v
}
