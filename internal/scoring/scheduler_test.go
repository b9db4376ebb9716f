package scoring

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"vocabquiz/internal/quiz"
)

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			QuestionID: fmt.Sprintf("q%d", i),
			Type:       quiz.TypeSentence,
			Sentence:   &SentencePayload{Word: "w", Sentence: "s"},
		}
	}
	return tasks
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	const n, limit = 23, 5
	var inFlight, maxInFlight int64

	grade := func(ctx context.Context, task Task) GradedResult {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxInFlight)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxInFlight, prev, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		score := len(task.QuestionID)
		return GradedResult{Score: &score, Feedback: task.QuestionID}
	}

	var progress []Progress
	results := Run(context.Background(), makeTasks(n), limit, grade, func(p Progress) {
		progress = append(progress, p)
	})

	if got := atomic.LoadInt64(&maxInFlight); got > limit {
		t.Fatalf("max in flight %d exceeds limit %d", got, limit)
	}
	if len(results) != n {
		t.Fatalf("expected %d results, got %d", n, len(results))
	}
	for i, r := range results {
		want := fmt.Sprintf("q%d", i)
		if r.QuestionID != want || r.Feedback != want {
			t.Fatalf("result %d lost correspondence: %+v", i, r)
		}
	}
	if len(progress) != n {
		t.Fatalf("expected %d progress events, got %d", n, len(progress))
	}
	for i, p := range progress {
		if p.Completed != i+1 || p.Total != n {
			t.Fatalf("progress %d: got %+v", i, p)
		}
	}
}

func TestRunSlowTaskDoesNotStarvePool(t *testing.T) {
	release := make(chan struct{})
	var finished int64

	grade := func(ctx context.Context, task Task) GradedResult {
		if task.QuestionID == "q0" {
			<-release
		} else {
			atomic.AddInt64(&finished, 1)
		}
		return GradedResult{Feedback: "ok"}
	}

	done := make(chan []GradedResult)
	go func() {
		done <- Run(context.Background(), makeTasks(10), 2, grade, nil)
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&finished) < 9 {
		select {
		case <-deadline:
			t.Fatalf("pool starved: only %d of 9 fast tasks finished", atomic.LoadInt64(&finished))
		case <-time.After(time.Millisecond):
		}
	}
	close(release)

	if got := <-done; len(got) != 10 {
		t.Fatalf("expected 10 results, got %d", len(got))
	}
}

func TestRunRecoversPanics(t *testing.T) {
	grade := func(ctx context.Context, task Task) GradedResult {
		panic("boom")
	}
	results := Run(context.Background(), makeTasks(2), 0, grade, nil)
	for _, r := range results {
		if r.Feedback != FeedbackScoringFailed || r.Score == nil || *r.Score != 0 {
			t.Fatalf("expected fallback, got %+v", r)
		}
	}
}

func TestRunNoTasks(t *testing.T) {
	called := false
	results := Run(context.Background(), nil, 5, func(ctx context.Context, task Task) GradedResult {
		called = true
		return GradedResult{}
	}, func(Progress) { called = true })
	if len(results) != 0 || called {
		t.Fatalf("expected no work for an empty task list")
	}
}
