package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vocabquiz/internal/quiz"
	"vocabquiz/internal/results"
)

var ErrRescoreMismatch = errors.New("server totals differ from local recompute")

// APIError is a non-2xx answer from the quiz API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api status %d", e.StatusCode)
	}
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// ServerMessage is the error field of the response body.
func (e *APIError) ServerMessage() string { return e.Message }

type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api/v1.
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// Client talks to the quiz and results endpoints with a learner token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		client:  client,
	}
}

type quizResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Data struct {
		Items []json.RawMessage `json:"items"`
	} `json:"data"`
}

func (c *Client) GetQuiz(ctx context.Context, id string) (*quiz.Quiz, error) {
	var out quizResponse
	if err := c.do(ctx, http.MethodGet, "/quizzes/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &quiz.Quiz{ID: out.ID, Name: out.Name, Items: out.Data.Items}, nil
}

func (c *Client) ImportQuiz(ctx context.Context, name string, items []json.RawMessage) (*quiz.Quiz, error) {
	var out quizResponse
	in := map[string]any{"name": name, "items": items}
	if err := c.do(ctx, http.MethodPost, "/quizzes", in, &out); err != nil {
		return nil, err
	}
	return &quiz.Quiz{ID: out.ID, Name: out.Name, Items: out.Data.Items}, nil
}

// CreateResult makes Client a submission persister.
func (c *Client) CreateResult(ctx context.Context, in results.CreateInput) (*results.Attempt, error) {
	var out results.Attempt
	if err := c.do(ctx, http.MethodPost, "/results", in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, errors.New("persistence endpoint returned no id")
	}
	return &out, nil
}

func (c *Client) GetResult(ctx context.Context, id string) (*results.Attempt, error) {
	var out results.Attempt
	if err := c.do(ctx, http.MethodGet, "/results/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Review(ctx context.Context, id string) (*results.Review, error) {
	var out results.Review
	if err := c.do(ctx, http.MethodGet, "/results/"+url.PathEscape(id)+"/review", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListResults(ctx context.Context, username, quizID string) ([]results.Summary, error) {
	q := url.Values{"username": {username}}
	if quizID != "" {
		q.Set("quiz_id", quizID)
	}
	var out []results.Summary
	if err := c.do(ctx, http.MethodGet, "/results?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rescore applies the update locally first, then on the server, and returns
// the server's attempt. If the two recomputations disagree the server wins and
// ErrRescoreMismatch is returned alongside it.
func (c *Client) Rescore(ctx context.Context, id string, index int, upd results.QuestionUpdate) (*results.Attempt, error) {
	current, err := c.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}
	_, optimistic, err := results.ApplyRescore(current.Details.Questions, index, upd)
	if err != nil {
		return nil, err
	}

	var out results.Attempt
	in := results.RescoreInput{QuestionIndex: &index, Update: upd}
	if err := c.do(ctx, http.MethodPatch, "/results/"+url.PathEscape(id)+"/rescore", in, &out); err != nil {
		return nil, err
	}
	if out.Score != optimistic.Score || out.TotalScore != optimistic.TotalScore {
		return &out, fmt.Errorf("%w: local %d/%d, server %d/%d",
			ErrRescoreMismatch, optimistic.Score, optimistic.TotalScore, out.Score, out.TotalScore)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
