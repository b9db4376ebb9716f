package draft

import (
	"errors"
	"time"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/submission"
)

var (
	ErrDraftNotFound    = errors.New("draft not found")
	ErrAlreadySubmitted = errors.New("draft already submitted")
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// Draft is one learner's in-progress attempt at a quiz. The fill-in-the-blank
// order and the word bank are fixed when the draft starts.
type Draft struct {
	QuizID    string        `json:"quiz_id"`
	QuizName  string        `json:"quiz_name"`
	Username  string        `json:"username"`
	FillOrder []string      `json:"fill_order"`
	WordBank  []string      `json:"word_bank"`
	Tracker   *quiz.Tracker `json:"tracker"`
	StartedAt time.Time     `json:"started_at"`
	AttemptID string        `json:"attempt_id,omitempty"`
}

func (d *Draft) Submitted() bool {
	return d.AttemptID != ""
}

// New starts a draft over a categorized question set. shuffle reorders a
// slice in place.
func New(qz *quiz.Quiz, set quiz.CategorizedQuestionSet, username string, now time.Time, shuffle func([]string)) *Draft {
	order := make([]string, 0, len(set.FillInTheBlanks))
	bank := make([]string, 0, len(set.FillInTheBlanks))
	for _, q := range set.FillInTheBlanks {
		order = append(order, q.ID)
		bank = append(bank, q.Word)
	}
	if shuffle != nil {
		shuffle(order)
		shuffle(bank)
	}
	return &Draft{
		QuizID:    qz.ID,
		QuizName:  qz.Name,
		Username:  username,
		FillOrder: order,
		WordBank:  bank,
		Tracker:   quiz.NewTracker(len(set.FillInTheBlanks), len(set.Sentences)),
		StartedAt: now.UTC(),
	}
}

type SectionStatuses struct {
	Definitions     quiz.SectionStatus `json:"definitions"`
	FillInTheBlanks quiz.SectionStatus `json:"fill_in_the_blanks"`
	Sentences       quiz.SectionStatus `json:"sentences"`
}

type View struct {
	QuizID         string          `json:"quiz_id"`
	Name           string          `json:"name"`
	CurrentSection int             `json:"current_section"`
	Statuses       SectionStatuses `json:"statuses"`
	Submitted      bool            `json:"submitted"`
	AttemptID      string          `json:"attempt_id,omitempty"`
	WordBank       []string        `json:"word_bank"`
	quiz.CategorizedQuestionSet
}

// View renders the draft with answers filled in and fill-in-the-blank
// questions in display order.
func (d *Draft) View(set quiz.CategorizedQuestionSet) View {
	st := d.Tracker.Statuses()
	view := View{
		QuizID:         d.QuizID,
		Name:           d.QuizName,
		CurrentSection: d.Tracker.Current,
		Statuses:       SectionStatuses{Definitions: st[0], FillInTheBlanks: st[1], Sentences: st[2]},
		Submitted:      d.Submitted(),
		AttemptID:      d.AttemptID,
		WordBank:       d.WordBank,
		CategorizedQuestionSet: quiz.CategorizedQuestionSet{
			Definitions: set.Definitions,
		},
	}
	questions := d.Questions(set)
	view.FillInTheBlanks = questions[:len(set.FillInTheBlanks)]
	view.Sentences = questions[len(set.FillInTheBlanks):]
	return view
}

// Questions returns the gradable questions with the draft's answers.
func (d *Draft) Questions(set quiz.CategorizedQuestionSet) []quiz.Question {
	return submission.Questions(set, d.FillOrder, d.Tracker.FillInTheBlanks, d.Tracker.Sentences)
}
