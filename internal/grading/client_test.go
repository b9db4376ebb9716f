package grading

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/scoring"
)

func TestClientGrade(t *testing.T) {
	var gotToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken.Store(r.Header.Get(TokenHeader))
		switch r.URL.Path {
		case "/ai" + FillInTheBlankPath:
			var p scoring.FillInTheBlankPayload
			_ = json.NewDecoder(r.Body).Decode(&p)
			_ = json.NewEncoder(w).Encode(map[string]any{"correct": p.Answer == p.Word, "feedback": "checked " + p.Prompt})
		case "/ai" + SentencePath:
			var p scoring.SentencePayload
			_ = json.NewDecoder(r.Body).Decode(&p)
			_ = json.NewEncoder(w).Encode(map[string]any{"score": 3, "feedback": p.Definition})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/ai/", Token: "secret"})

	res, err := c.Grade(context.Background(), scoring.Task{
		QuestionID:     "f1",
		Type:           quiz.TypeFillInTheBlank,
		FillInTheBlank: &scoring.FillInTheBlankPayload{Prompt: "The ___.", Answer: "cat", Word: "cat"},
	})
	if err != nil {
		t.Fatalf("fill grade: %v", err)
	}
	if res.QuestionID != "f1" || res.Correct == nil || !*res.Correct || res.Feedback != "checked The ___." {
		t.Fatalf("unexpected fill result %+v", res)
	}
	if gotToken.Load() != "secret" {
		t.Fatalf("token header not sent")
	}

	res, err = c.Grade(context.Background(), scoring.Task{
		QuestionID: "s1",
		Type:       quiz.TypeSentence,
		Sentence:   &scoring.SentencePayload{Word: "sun", Sentence: "The sun rises.", Definition: "a star"},
	})
	if err != nil {
		t.Fatalf("sentence grade: %v", err)
	}
	if res.Score == nil || *res.Score != 3 || res.Feedback != "a star" {
		t.Fatalf("unexpected sentence result %+v", res)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
		malformed  bool
	}{
		{name: "internal scoring error", status: 500, body: `{"error":"internal scoring error: x"}`, wantStatus: 500, wantMsg: "internal scoring error: x"},
		{name: "plain text failure", status: 502, body: `bad gateway`, wantStatus: 502},
		{name: "validation failure", status: 400, body: `{"error":"missing word or sentence"}`, wantStatus: 400, wantMsg: "missing word or sentence"},
		{name: "unparseable success", status: 200, body: `not json`, malformed: true},
		{name: "missing field", status: 200, body: `{"feedback":"hi"}`, malformed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL})
			_, err := c.ScoreSentence(context.Background(), scoring.SentencePayload{Word: "w", Sentence: "s"})
			if tc.malformed {
				if !errors.Is(err, scoring.ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			var se *scoring.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.StatusCode != tc.wantStatus || se.Message != tc.wantMsg {
				t.Fatalf("unexpected status error %+v", se)
			}
		})
	}
}

func TestClientWithRetryPolicyFallsBack(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal scoring error: x"}`))
	}))
	defer srv.Close()

	p := &scoring.RetryPolicy{Grader: NewClient(Config{BaseURL: srv.URL}), Backoff: time.Millisecond}
	res := p.Grade(context.Background(), scoring.Task{
		QuestionID: "s1",
		Type:       quiz.TypeSentence,
		Sentence:   &scoring.SentencePayload{Word: "w", Sentence: "s"},
	})
	if atomic.LoadInt64(&calls) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", calls)
	}
	if res.Score == nil || *res.Score != 0 || res.Feedback != scoring.FeedbackScoringFailed {
		t.Fatalf("expected fallback, got %+v", res)
	}
}
