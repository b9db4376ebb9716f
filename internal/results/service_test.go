package results_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"vocabquiz/internal/db"
	"vocabquiz/internal/quiz"
	"vocabquiz/internal/results"

	"github.com/xuri/excelize/v2"
)

func newTestService(t *testing.T) (*results.Service, *quiz.Store) {
	t.Helper()
	conn, err := db.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	quizzes := quiz.NewStore(conn)
	return results.NewService(results.NewStore(conn), quizzes), quizzes
}

func seedQuiz(t *testing.T, store *quiz.Store) *quiz.Quiz {
	t.Helper()
	q, err := store.Create(context.Background(), "Animals", []json.RawMessage{
		json.RawMessage(`{"id":"f1","word":"dog","definition":"a pet that barks","blank":true,"prompt":"The ___ barks."}`),
		json.RawMessage(`{"id":"s1","word":"sun","write":true}`),
	})
	if err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	return q
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestServiceCreateListRescoreReview(t *testing.T) {
	ctx := context.Background()
	svc, quizzes := newTestService(t)
	qz := seedQuiz(t, quizzes)

	created, err := svc.CreateResult(ctx, results.CreateInput{
		Username:  "ana",
		QuizID:    qz.ID,
		TimeSpent: 95,
		Details: results.Details{Questions: []quiz.Question{
			{ID: "f1", Type: quiz.TypeFillInTheBlank, Word: "dog", Answer: "dog", Correct: boolPtr(true)},
			{ID: "s1", Type: quiz.TypeSentence, Word: "sun", Answer: "Sun.", Score: intPtr(1)},
		}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Score != 3 || created.TotalScore != 6 || created.Passed {
		t.Fatalf("unexpected totals %+v", created)
	}
	if created.Details.Name != "Animals" {
		t.Fatalf("name should default to the quiz name, got %q", created.Details.Name)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "ana" || got.TimeSpent != 95 || len(got.Details.Questions) != 2 || !got.TS.Equal(created.TS) {
		t.Fatalf("stored attempt differs: %+v", got)
	}

	rescored, err := svc.Rescore(ctx, created.ID, results.RescoreInput{
		QuestionIndex: intPtr(1),
		Update:        results.QuestionUpdate{Score: intPtr(4)},
	})
	if err != nil {
		t.Fatalf("rescore: %v", err)
	}
	if rescored.Score != 6 || !rescored.Passed {
		t.Fatalf("unexpected rescored attempt %+v", rescored)
	}
	if _, err := svc.Rescore(ctx, created.ID, results.RescoreInput{QuestionIndex: intPtr(7)}); !errors.Is(err, results.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}

	rv, err := svc.Review(ctx, created.ID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if len(rv.Definitions) != 1 || len(rv.FillInTheBlanks) != 1 || len(rv.Sentences) != 1 || rv.Score != 6 {
		t.Fatalf("unexpected review %+v", rv)
	}

	if _, err := svc.CreateResult(ctx, results.CreateInput{Username: "ana", QuizID: "missing"}); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, results.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestServiceListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, quizzes := newTestService(t)
	qz := seedQuiz(t, quizzes)

	var ids []string
	for i := 0; i < 3; i++ {
		a, err := svc.CreateResult(ctx, results.CreateInput{Username: "ana", QuizID: qz.ID})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, a.ID)
	}
	if _, err := svc.CreateResult(ctx, results.CreateInput{Username: "ben", QuizID: qz.ID}); err != nil {
		t.Fatalf("create other user: %v", err)
	}

	items, err := svc.List(ctx, "ana", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].TS.After(items[i-1].TS) {
			t.Fatalf("attempts not sorted newest first: %+v", items)
		}
	}
	if items[0].QuizName != "Animals" {
		t.Fatalf("unexpected quiz name %q", items[0].QuizName)
	}

	filtered, err := svc.List(ctx, "ana", "other-quiz")
	if err != nil || len(filtered) != 0 {
		t.Fatalf("quiz filter: got %d items err=%v", len(filtered), err)
	}
	if _, err := svc.List(ctx, " ", ""); !errors.Is(err, results.ErrUsernameRequired) {
		t.Fatalf("expected ErrUsernameRequired, got %v", err)
	}
}

func TestServiceExportExcel(t *testing.T) {
	ctx := context.Background()
	svc, quizzes := newTestService(t)
	qz := seedQuiz(t, quizzes)

	a, err := svc.CreateResult(ctx, results.CreateInput{
		Username: "ana",
		QuizID:   qz.ID,
		Details: results.Details{Questions: []quiz.Question{
			{ID: "f1", Type: quiz.TypeFillInTheBlank, Word: "dog", Answer: "cat", Correct: boolPtr(false), Feedback: "Not quite."},
		}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	b, err := svc.ExportExcel(ctx, a.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if rows[0][1] != "Animals" || rows[2][1] != "0" {
		t.Fatalf("unexpected summary rows %v", rows[:3])
	}
	last := rows[len(rows)-1]
	if last[2] != "dog" || last[6] != "wrong" || last[8] != "Not quite." {
		t.Fatalf("unexpected question row %v", last)
	}
}
