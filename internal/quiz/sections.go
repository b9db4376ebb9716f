package quiz

import (
	"errors"
	"strings"
)

type SectionStatus string

const (
	StatusUntouched SectionStatus = "untouched"
	StatusAttempted SectionStatus = "attempted"
	StatusCompleted SectionStatus = "completed"
)

// Sections are numbered the way learners see them.
const (
	SectionDefinitions    = 1
	SectionFillInTheBlank = 2
	SectionSentence       = 3
	SectionCount          = 3
)

var (
	ErrUnknownSection     = errors.New("unknown section")
	ErrSectionNotEditable = errors.New("section has no answers")
	ErrAnswerOutOfRange   = errors.New("answer index out of range")
)

// StatusOf derives a section status from its answers. A section with no
// questions stays untouched.
func StatusOf(answers []string) SectionStatus {
	if len(answers) == 0 {
		return StatusUntouched
	}
	filled := 0
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			filled++
		}
	}
	switch {
	case filled == len(answers):
		return StatusCompleted
	case filled > 0:
		return StatusAttempted
	default:
		return StatusUntouched
	}
}

// Tracker holds the answers of one attempt and the section the learner is on.
// Statuses are never stored; they are recomputed from the answers on demand.
type Tracker struct {
	Current         int      `json:"current"`
	FillInTheBlanks []string `json:"fill_in_the_blanks"`
	Sentences       []string `json:"sentences"`
	DefinitionsSeen bool     `json:"definitions_seen"`
	Frozen          bool     `json:"frozen"`
}

func NewTracker(fillCount, sentenceCount int) *Tracker {
	if fillCount < 0 {
		fillCount = 0
	}
	if sentenceCount < 0 {
		sentenceCount = 0
	}
	return &Tracker{
		Current:         SectionDefinitions,
		FillInTheBlanks: make([]string, fillCount),
		Sentences:       make([]string, sentenceCount),
	}
}

// SetAnswer stores value at index in section. It is a no-op once the tracker
// is frozen for submission or review.
func (t *Tracker) SetAnswer(section, index int, value string) error {
	if t.Frozen {
		return nil
	}
	answers, err := t.answers(section)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(answers) {
		return ErrAnswerOutOfRange
	}
	answers[index] = value
	return nil
}

// ChangeSection moves to target. Leaving the definitions section marks it
// completed for the rest of the attempt. No section is ever locked.
func (t *Tracker) ChangeSection(target int) error {
	if target < SectionDefinitions || target > SectionCount {
		return ErrUnknownSection
	}
	if t.Current == SectionDefinitions && target != SectionDefinitions {
		t.DefinitionsSeen = true
	}
	t.Current = target
	return nil
}

func (t *Tracker) Status(section int) SectionStatus {
	switch section {
	case SectionDefinitions:
		if t.DefinitionsSeen {
			return StatusCompleted
		}
		return StatusUntouched
	case SectionFillInTheBlank:
		return StatusOf(t.FillInTheBlanks)
	case SectionSentence:
		return StatusOf(t.Sentences)
	default:
		return StatusUntouched
	}
}

// Statuses returns the status of every section, index 0 being section 1.
func (t *Tracker) Statuses() [SectionCount]SectionStatus {
	var out [SectionCount]SectionStatus
	for i := range out {
		out[i] = t.Status(i + 1)
	}
	return out
}

func (t *Tracker) Freeze() { t.Frozen = true }

func (t *Tracker) answers(section int) ([]string, error) {
	switch section {
	case SectionFillInTheBlank:
		return t.FillInTheBlanks, nil
	case SectionSentence:
		return t.Sentences, nil
	case SectionDefinitions:
		return nil, ErrSectionNotEditable
	default:
		return nil, ErrUnknownSection
	}
}
