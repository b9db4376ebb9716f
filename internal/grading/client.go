package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/scoring"
)

const (
	FillInTheBlankPath = "/fill-in-blank-score"
	SentencePath       = "/sentence-score"
	TokenHeader        = "X-Grading-Token"
)

type Config struct {
	// BaseURL is the prefix both endpoints hang off, e.g. http://host/api/v1/ai.
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client calls the grading service. It reports failures as errors and leaves
// retrying to scoring.RetryPolicy.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		client:  client,
	}
}

type fillInTheBlankResponse struct {
	Correct  *bool   `json:"correct"`
	Feedback *string `json:"feedback"`
}

type sentenceResponse struct {
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Grade(ctx context.Context, t scoring.Task) (scoring.GradedResult, error) {
	var (
		res scoring.GradedResult
		err error
	)
	switch {
	case t.Type == quiz.TypeFillInTheBlank && t.FillInTheBlank != nil:
		res, err = c.ScoreFillInTheBlank(ctx, *t.FillInTheBlank)
	case t.Type == quiz.TypeSentence && t.Sentence != nil:
		res, err = c.ScoreSentence(ctx, *t.Sentence)
	default:
		return scoring.GradedResult{}, fmt.Errorf("task %s: no payload for type %q", t.QuestionID, t.Type)
	}
	res.QuestionID = t.QuestionID
	return res, err
}

func (c *Client) ScoreFillInTheBlank(ctx context.Context, p scoring.FillInTheBlankPayload) (scoring.GradedResult, error) {
	var out fillInTheBlankResponse
	if err := c.post(ctx, FillInTheBlankPath, p, &out); err != nil {
		return scoring.GradedResult{}, err
	}
	if out.Correct == nil || out.Feedback == nil {
		return scoring.GradedResult{}, fmt.Errorf("%w: expected correct and feedback", scoring.ErrMalformedResponse)
	}
	return scoring.GradedResult{Correct: out.Correct, Feedback: *out.Feedback}, nil
}

func (c *Client) ScoreSentence(ctx context.Context, p scoring.SentencePayload) (scoring.GradedResult, error) {
	var out sentenceResponse
	if err := c.post(ctx, SentencePath, p, &out); err != nil {
		return scoring.GradedResult{}, err
	}
	if out.Score == nil || out.Feedback == nil {
		return scoring.GradedResult{}, fmt.Errorf("%w: expected score and feedback", scoring.ErrMalformedResponse)
	}
	score := int(math.Round(*out.Score))
	return scoring.GradedResult{Score: &score, Feedback: *out.Feedback}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &scoring.StatusError{StatusCode: resp.StatusCode}
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil {
			se.Message = e.Error
		}
		return se
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", scoring.ErrMalformedResponse, err)
	}
	return nil
}
