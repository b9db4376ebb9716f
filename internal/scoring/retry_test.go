package scoring

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"vocabquiz/internal/quiz"
)

type countingObserver struct {
	mu   sync.Mutex
	seen map[GradingOutcome]int
}

func (o *countingObserver) ObserveGrading(outcome GradingOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seen == nil {
		o.seen = map[GradingOutcome]int{}
	}
	o.seen[outcome]++
}

func scriptedGrader(steps ...func() (GradedResult, error)) (Grader, *int) {
	calls := 0
	return GraderFunc(func(ctx context.Context, t Task) (GradedResult, error) {
		i := calls
		calls++
		if i >= len(steps) {
			return GradedResult{}, errors.New("unexpected call")
		}
		return steps[i]()
	}), &calls
}

func fail(err error) func() (GradedResult, error) {
	return func() (GradedResult, error) { return GradedResult{}, err }
}

func ok(res GradedResult) func() (GradedResult, error) {
	return func() (GradedResult, error) { return res, nil }
}

func TestRetryPolicy(t *testing.T) {
	fillTask := Task{QuestionID: "f1", Type: quiz.TypeFillInTheBlank, FillInTheBlank: &FillInTheBlankPayload{Prompt: "p", Answer: "a", Word: "w"}}
	sentenceTask := Task{QuestionID: "s1", Type: quiz.TypeSentence, Sentence: &SentencePayload{Word: "w", Sentence: "s"}}
	internal := &StatusError{StatusCode: http.StatusInternalServerError, Message: "internal scoring error: x"}

	tests := []struct {
		name              string
		task              Task
		steps             []func() (GradedResult, error)
		retryClientErrors bool
		wantCalls         int
		wantOutcome       GradingOutcome
		wantFeedback      string
	}{
		{
			name:         "accepted first time",
			task:         fillTask,
			steps:        []func() (GradedResult, error){ok(GradedResult{Correct: boolPtr(true), Feedback: "nice"})},
			wantCalls:    1,
			wantOutcome:  OutcomeAccepted,
			wantFeedback: "nice",
		},
		{
			name:         "internal scoring error twice falls back",
			task:         sentenceTask,
			steps:        []func() (GradedResult, error){fail(internal), fail(internal)},
			wantCalls:    2,
			wantOutcome:  OutcomeFallback,
			wantFeedback: FeedbackScoringFailed,
		},
		{
			name:         "malformed then ok",
			task:         sentenceTask,
			steps:        []func() (GradedResult, error){fail(ErrMalformedResponse), ok(GradedResult{Score: intPtr(2), Feedback: "fine"})},
			wantCalls:    2,
			wantOutcome:  OutcomeRetried,
			wantFeedback: "fine",
		},
		{
			name:         "missing field counts as malformed",
			task:         fillTask,
			steps:        []func() (GradedResult, error){ok(GradedResult{Feedback: "?"}), ok(GradedResult{Feedback: "?"})},
			wantCalls:    2,
			wantOutcome:  OutcomeFallback,
			wantFeedback: FeedbackScoringFailed,
		},
		{
			name:         "score out of range counts as malformed",
			task:         sentenceTask,
			steps:        []func() (GradedResult, error){ok(GradedResult{Score: intPtr(7)}), ok(GradedResult{Score: intPtr(4), Feedback: "top"})},
			wantCalls:    2,
			wantOutcome:  OutcomeRetried,
			wantFeedback: "top",
		},
		{
			name:         "bad request not retried",
			task:         fillTask,
			steps:        []func() (GradedResult, error){fail(&StatusError{StatusCode: http.StatusBadRequest, Message: "Missing required fields"})},
			wantCalls:    1,
			wantOutcome:  OutcomeFallback,
			wantFeedback: FeedbackScoringFailed,
		},
		{
			name:              "bad request retried when enabled",
			task:              fillTask,
			retryClientErrors: true,
			steps: []func() (GradedResult, error){
				fail(&StatusError{StatusCode: http.StatusBadRequest}),
				ok(GradedResult{Correct: boolPtr(false), Feedback: "no"}),
			},
			wantCalls:    2,
			wantOutcome:  OutcomeRetried,
			wantFeedback: "no",
		},
		{
			name:         "client error carrying the marker is retried",
			task:         fillTask,
			steps:        []func() (GradedResult, error){fail(&StatusError{StatusCode: http.StatusUnprocessableEntity, Message: "Internal scoring error"}), ok(GradedResult{Correct: boolPtr(true)})},
			wantCalls:    2,
			wantOutcome:  OutcomeRetried,
			wantFeedback: "",
		},
		{
			name:         "rate limited is retried",
			task:         sentenceTask,
			steps:        []func() (GradedResult, error){fail(&StatusError{StatusCode: http.StatusTooManyRequests}), ok(GradedResult{Score: intPtr(1)})},
			wantCalls:    2,
			wantOutcome:  OutcomeRetried,
			wantFeedback: "",
		},
		{
			name:         "transport error then transport error",
			task:         fillTask,
			steps:        []func() (GradedResult, error){fail(errors.New("connection refused")), fail(errors.New("connection refused"))},
			wantCalls:    2,
			wantOutcome:  OutcomeFallback,
			wantFeedback: FeedbackScoringFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			grader, calls := scriptedGrader(tc.steps...)
			obs := &countingObserver{}
			var slept []time.Duration
			p := &RetryPolicy{
				Grader:            grader,
				RetryClientErrors: tc.retryClientErrors,
				Observer:          obs,
				Sleep: func(ctx context.Context, d time.Duration) error {
					slept = append(slept, d)
					return nil
				},
			}

			got := p.Grade(context.Background(), tc.task)

			if *calls != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, *calls)
			}
			if obs.seen[tc.wantOutcome] != 1 || len(obs.seen) != 1 {
				t.Fatalf("expected single %s outcome, got %v", tc.wantOutcome, obs.seen)
			}
			if got.QuestionID != tc.task.QuestionID {
				t.Fatalf("question id not preserved: %+v", got)
			}
			if got.Feedback != tc.wantFeedback {
				t.Fatalf("expected feedback %q, got %q", tc.wantFeedback, got.Feedback)
			}
			if tc.wantCalls == 2 && (len(slept) != 1 || slept[0] != DefaultRetryBackoff) {
				t.Fatalf("expected one %s backoff, got %v", DefaultRetryBackoff, slept)
			}
			if tc.task.Type == quiz.TypeSentence && (got.Score == nil || got.Correct != nil) {
				t.Fatalf("sentence result must carry only a score: %+v", got)
			}
			if tc.task.Type == quiz.TypeFillInTheBlank && (got.Correct == nil || got.Score != nil) {
				t.Fatalf("fill result must carry only correct: %+v", got)
			}
			if got.Feedback == FeedbackScoringFailed && Credit(quiz.Question{Type: tc.task.Type, Correct: got.Correct, Score: got.Score}) != 0 {
				t.Fatalf("fallback must give zero credit: %+v", got)
			}
		})
	}
}

func TestRetryPolicyTimesOutHungCall(t *testing.T) {
	calls := 0
	p := &RetryPolicy{
		Timeout: 10 * time.Millisecond,
		Backoff: time.Millisecond,
		Grader: GraderFunc(func(ctx context.Context, task Task) (GradedResult, error) {
			calls++
			<-ctx.Done()
			return GradedResult{}, ctx.Err()
		}),
	}
	start := time.Now()
	got := p.Grade(context.Background(), Task{QuestionID: "s", Type: quiz.TypeSentence})
	if calls != 2 {
		t.Fatalf("timeout should be retried once, got %d calls", calls)
	}
	if got.Feedback != FeedbackScoringFailed {
		t.Fatalf("expected fallback, got %+v", got)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("hung call held the slot too long")
	}
}

func TestRetryPolicyCancelledParentFallsBackWithoutRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	p := &RetryPolicy{Grader: GraderFunc(func(ctx context.Context, task Task) (GradedResult, error) {
		calls++
		return GradedResult{}, ctx.Err()
	})}
	got := p.Grade(ctx, Task{QuestionID: "f", Type: quiz.TypeFillInTheBlank})
	if calls != 1 || got.Feedback != FeedbackScoringFailed {
		t.Fatalf("expected one call and a fallback, got calls=%d res=%+v", calls, got)
	}
}
