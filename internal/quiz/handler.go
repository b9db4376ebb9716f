package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"vocabquiz/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	svc      quizService
	validate *validator.Validate
}

type quizService interface {
	Get(ctx context.Context, id string) (*Quiz, error)
	Create(ctx context.Context, name string, items []json.RawMessage) (*Quiz, error)
}

type importRequest struct {
	Name  string            `json:"name" validate:"required,max=200"`
	Items []json.RawMessage `json:"items" validate:"required"`
}

// quizResponse mirrors the stored document: the items sit under data.
type quizResponse struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Data quizData `json:"data"`
}

type quizData struct {
	Items []json.RawMessage `json:"items"`
}

func NewHandler(svc quizService) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func toResponse(q *Quiz) quizResponse {
	items := q.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	return quizResponse{ID: q.ID, Name: q.Name, Data: quizData{Items: items}}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, "quiz not found")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to load quiz")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, toResponse(q))
}

// Questions returns the normalized view of a quiz.
func (h *Handler) Questions(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, "quiz not found")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to load quiz")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, q.Categorize())
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "name and items are required")
		return
	}

	q, err := h.svc.Create(r.Context(), req.Name, req.Items)
	if err != nil {
		if errors.Is(err, ErrInvalidQuiz) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to store quiz")
		return
	}
	apiresp.WriteJSON(w, http.StatusCreated, toResponse(q))
}
