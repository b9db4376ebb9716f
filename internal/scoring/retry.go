package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"vocabquiz/internal/quiz"
)

const (
	DefaultRetryBackoff = 300 * time.Millisecond
	DefaultTaskTimeout  = 30 * time.Second

	// InternalScoringErrorMarker is what the grading service puts in the error
	// field when the model output could not be turned into a score.
	InternalScoringErrorMarker = "internal scoring error"
)

var ErrMalformedResponse = errors.New("malformed grading response")

// StatusError is a non-2xx answer from the grading service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("grading service status %d", e.StatusCode)
	}
	return fmt.Sprintf("grading service status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) InternalScoringError() bool {
	return strings.Contains(strings.ToLower(e.Message), InternalScoringErrorMarker)
}

type Grader interface {
	Grade(ctx context.Context, t Task) (GradedResult, error)
}

type GraderFunc func(ctx context.Context, t Task) (GradedResult, error)

func (f GraderFunc) Grade(ctx context.Context, t Task) (GradedResult, error) { return f(ctx, t) }

type GradingOutcome string

const (
	OutcomeAccepted GradingOutcome = "accepted"
	OutcomeRetried  GradingOutcome = "retried"
	OutcomeFallback GradingOutcome = "fallback"
)

type Observer interface {
	ObserveGrading(outcome GradingOutcome)
}

// RetryPolicy issues a grading call, retries once after Backoff on a transient
// failure and otherwise falls back to zero credit. Grade never fails.
type RetryPolicy struct {
	Grader  Grader
	Backoff time.Duration
	// Timeout bounds each individual call. Zero means DefaultTaskTimeout.
	Timeout time.Duration
	// RetryClientErrors retries 4xx answers other than 408 and 429 too.
	RetryClientErrors bool
	Observer          Observer
	Sleep             func(ctx context.Context, d time.Duration) error
}

func (p *RetryPolicy) Grade(ctx context.Context, t Task) GradedResult {
	res, err := p.attempt(ctx, t)
	if err == nil {
		p.observe(OutcomeAccepted)
		return res
	}
	if !p.retryable(ctx, err) {
		log.Printf("grading question_id=%s attempt=1 not retried: %v", t.QuestionID, err)
		p.observe(OutcomeFallback)
		return Fallback(t)
	}

	log.Printf("grading question_id=%s attempt=1 failed, retrying: %v", t.QuestionID, err)
	if err := p.sleep(ctx, p.backoff()); err != nil {
		p.observe(OutcomeFallback)
		return Fallback(t)
	}

	res, err = p.attempt(ctx, t)
	if err == nil {
		p.observe(OutcomeRetried)
		return res
	}
	log.Printf("grading question_id=%s attempt=2 failed, using fallback: %v", t.QuestionID, err)
	p.observe(OutcomeFallback)
	return Fallback(t)
}

func (p *RetryPolicy) attempt(ctx context.Context, t Task) (GradedResult, error) {
	if p.Grader == nil {
		return GradedResult{}, errors.New("no grader configured")
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := p.Grader.Grade(callCtx, t)
	if err != nil {
		return GradedResult{}, err
	}
	res, err = checkResult(t, res)
	if err != nil {
		return GradedResult{}, err
	}
	res.QuestionID = t.QuestionID
	return res, nil
}

func (p *RetryPolicy) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.InternalScoringError() || se.StatusCode >= 500 {
			return true
		}
		switch se.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return p.RetryClientErrors
	}
	// Malformed bodies, transport failures and per-call timeouts.
	return true
}

func (p *RetryPolicy) backoff() time.Duration {
	if p.Backoff <= 0 {
		return DefaultRetryBackoff
	}
	return p.Backoff
}

func (p *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *RetryPolicy) observe(o GradingOutcome) {
	if p.Observer != nil {
		p.Observer.ObserveGrading(o)
	}
}

// Fallback is the deterministic zero-credit result for a task that could not be graded.
func Fallback(t Task) GradedResult {
	res := GradedResult{QuestionID: t.QuestionID, Feedback: FeedbackScoringFailed}
	if t.Type == quiz.TypeSentence {
		zero := 0
		res.Score = &zero
		return res
	}
	f := false
	res.Correct = &f
	return res
}

// checkResult keeps only the grading field that belongs to the task type.
func checkResult(t Task, res GradedResult) (GradedResult, error) {
	switch t.Type {
	case quiz.TypeFillInTheBlank:
		if res.Correct == nil {
			return res, fmt.Errorf("%w: missing correct", ErrMalformedResponse)
		}
		res.Score = nil
	case quiz.TypeSentence:
		if res.Score == nil {
			return res, fmt.Errorf("%w: missing score", ErrMalformedResponse)
		}
		if *res.Score < 0 || *res.Score > MaxSentenceScore {
			return res, fmt.Errorf("%w: score %d out of range", ErrMalformedResponse, *res.Score)
		}
		res.Correct = nil
	}
	return res, nil
}
