package aigrader

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"vocabquiz/internal/app/apiresp"

	"github.com/go-playground/validator/v10"
)

type Handler struct {
	svc      graderService
	validate *validator.Validate
}

type graderService interface {
	ScoreFillInTheBlank(ctx context.Context, prompt, answer, word string) (FillInTheBlankResult, error)
	ScoreSentence(ctx context.Context, word, sentence, definition string) (SentenceResult, error)
}

type fillInTheBlankRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Answer string `json:"answer" validate:"required"`
	Word   string `json:"word" validate:"required"`
}

type sentenceRequest struct {
	Word       string `json:"word" validate:"required"`
	Sentence   string `json:"sentence" validate:"required"`
	Definition string `json:"definition"`
}

func NewHandler(svc graderService) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) FillInTheBlankScore(w http.ResponseWriter, r *http.Request) {
	var req fillInTheBlankRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Answer = strings.TrimSpace(req.Answer)
	req.Word = strings.TrimSpace(req.Word)
	if err := h.validate.Struct(req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "Missing required fields: prompt, answer, or word")
		return
	}

	res, err := h.svc.ScoreFillInTheBlank(r.Context(), req.Prompt, req.Answer, req.Word)
	if err != nil {
		writeScoringError(w, r, err, "Internal scoring error")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) SentenceScore(w http.ResponseWriter, r *http.Request) {
	var req sentenceRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	req.Word = strings.TrimSpace(req.Word)
	req.Sentence = strings.TrimSpace(req.Sentence)
	req.Definition = strings.TrimSpace(req.Definition)
	if err := h.validate.Struct(req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "missing word or sentence")
		return
	}

	res, err := h.svc.ScoreSentence(r.Context(), req.Word, req.Sentence, req.Definition)
	if err != nil {
		writeScoringError(w, r, err, "internal scoring error")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, res)
}

func writeScoringError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	if errors.Is(err, ErrUpstream) {
		log.Printf("aigrader: upstream error: %v", err)
		apiresp.WriteError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	log.Printf("aigrader: scoring failed: %v", err)
	apiresp.WriteError(w, r, http.StatusInternalServerError, internalMsg)
}
