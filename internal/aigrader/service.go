package aigrader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	maxFillAnswerLen = 50
	maxSentenceScore = 4

	SourceModel = "model"
	SourceLocal = "local"
)

const sentenceSystemPrompt = `You are an English teaching expert scoring a student's sentence that must use a target word.
Output English only.
Score 0 if the sentence contains profanity, sexual or sensitive content, does not contain the target word,
is not a complete sentence, contains non-English text, or does not show the meaning of the word (for the given definition when one is provided).

Scoring rubric (integer 0-4):
0: meaningless or not understandable, e.g. "I learned the word xxx today", the target word could be replaced by any word
1: serious or many grammar errors, but the target word matters in the sentence
2: only minor grammar slips, understandable overall
3: no grammar errors and complete, but a simple subject-verb-object structure
4: no grammar errors, varied and meaningful structure (clauses, parallelism) and accurately shows the word's meaning

In "feedback" give specific English comments on the mistakes and the minimally corrected sentence.
For a score of 4 just praise the sentence.
Return JSON only, e.g. {"feedback":"...","nogrammarissues":true,"score":3}`

const fillSystemPrompt = `You are a strict but fair English teacher grading a fill-in-the-blank quiz.
Evaluate the student's answer on two criteria:
1. Is the answer a valid grammatical form of the target word? (e.g. 'ducks' is a form of 'duck').
2. Is that form grammatically correct in the sentence? (e.g. for 'I saw five ___', 'ducks' is correct, but 'duck' is not).
The answer MUST satisfy BOTH criteria. Be strict about plurals, tenses and parts of speech.
Return a JSON object with two fields: "is_correct" (boolean) and "feedback" (string).
If correct, be encouraging. If incorrect, explain the grammatical error and state the correct answer.`

var (
	// ErrUpstream wraps failures reported by the chat completion API itself.
	ErrUpstream = errors.New("upstream model error")
	// ErrUnscorable means the model answered but no score could be read from it.
	ErrUnscorable = errors.New("model output could not be scored")
)

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ServiceConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// Service scores answers with an OpenAI-compatible chat model. Without an API
// key it answers from a deterministic local heuristic.
type Service struct {
	chat  completer
	model string
}

type FillInTheBlankResult struct {
	Correct  bool   `json:"correct"`
	Feedback string `json:"feedback"`
	Source   string `json:"source"`
}

type SentenceResult struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Source   string `json:"source"`
}

func NewService(cfg ServiceConfig) *Service {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "deepseek-chat"
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return &Service{model: model}
	}

	oc := openai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimRight(base, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: 45 * time.Second}
	}
	return &Service{chat: openai.NewClientWithConfig(oc), model: model}
}

func (s *Service) ScoreFillInTheBlank(ctx context.Context, prompt, answer, word string) (FillInTheBlankResult, error) {
	if len(answer) > maxFillAnswerLen {
		return FillInTheBlankResult{Correct: false, Feedback: "Answer is too long.", Source: SourceLocal}, nil
	}
	if s.chat == nil {
		correct, feedback := localFillInTheBlank(answer, word)
		return FillInTheBlankResult{Correct: correct, Feedback: feedback, Source: SourceLocal}, nil
	}

	user := fmt.Sprintf("Sentence: %q\nStudent's Answer: %q\nTarget Word: %q", prompt, answer, word)
	data, err := s.completeJSON(ctx, fillSystemPrompt, user)
	if err != nil {
		return FillInTheBlankResult{}, err
	}

	correct, ok := data["is_correct"].(bool)
	if !ok {
		correct, ok = data["correct"].(bool)
	}
	feedback, fok := data["feedback"].(string)
	if !ok || !fok {
		return FillInTheBlankResult{}, fmt.Errorf("%w: missing is_correct or feedback", ErrUnscorable)
	}
	return FillInTheBlankResult{Correct: correct, Feedback: strings.TrimSpace(feedback), Source: SourceModel}, nil
}

func (s *Service) ScoreSentence(ctx context.Context, word, sentence, definition string) (SentenceResult, error) {
	if s.chat == nil {
		score, feedback := localSentence(word, sentence)
		return SentenceResult{Score: score, Feedback: feedback, Source: SourceLocal}, nil
	}

	user := fmt.Sprintf("Original word: '%s'. Student's sentence: '%s'", word, sentence)
	if definition != "" {
		user = fmt.Sprintf("Original word: '%s'. Definition: '%s'. Student's sentence: '%s'", word, definition, sentence)
	}
	data, err := s.completeJSON(ctx, sentenceSystemPrompt, user)
	if err != nil {
		return SentenceResult{}, err
	}

	return SentenceResult{
		Score:    clampScore(coerceInt(data["score"])),
		Feedback: sentenceFeedback(data),
		Source:   SourceModel,
	}, nil
}

// completeJSON asks for a JSON object and tolerates prose around it. An empty
// or unparseable completion is asked for once more.
func (s *Service) completeJSON(ctx context.Context, system, user string) (map[string]any, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := s.chat.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, upstreamError(err)
		}
		content := ""
		if len(resp.Choices) > 0 {
			content = resp.Choices[0].Message.Content
		}
		if strings.TrimSpace(content) == "" {
			log.Printf("aigrader: empty completion (attempt %d)", attempt)
			lastErr = fmt.Errorf("%w: empty completion", ErrUnscorable)
			continue
		}
		data, err := parseJSONLoose(content)
		if err != nil {
			log.Printf("aigrader: unparseable completion (attempt %d): %v", attempt, err)
			lastErr = fmt.Errorf("%w: %v", ErrUnscorable, err)
			continue
		}
		return data, nil
	}
	return nil, lastErr
}

func upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s", ErrUpstream, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: %v", ErrUpstream, reqErr)
	}
	return err
}

func sentenceFeedback(data map[string]any) string {
	feedback, ok := data["feedback"].(string)
	if !ok {
		return "Scored."
	}
	feedback = strings.TrimSpace(feedback)
	fix, hasFix := data["minimal_fix"]
	corrected, hasCorrected := data["corrected_sentence"]
	if hasFix && hasCorrected {
		extra := fmt.Sprintf("Minimal Fix: %s\nCorrected: %s", stringify(fix), stringify(corrected))
		if feedback != "" {
			return feedback + "\n" + extra
		}
		return extra
	}
	return feedback
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func coerceInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(t), "%d", &n); err == nil {
			return n
		}
	}
	return 0
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxSentenceScore {
		return maxSentenceScore
	}
	return v
}
