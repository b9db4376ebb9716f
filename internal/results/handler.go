package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"vocabquiz/internal/app/apiresp"
	"vocabquiz/internal/auth"
	"vocabquiz/internal/quiz"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc      resultService
	validate *validator.Validate
}

type resultService interface {
	CreateResult(ctx context.Context, in CreateInput) (*Attempt, error)
	Get(ctx context.Context, id string) (*Attempt, error)
	List(ctx context.Context, username, quizID string) ([]Summary, error)
	Rescore(ctx context.Context, id string, in RescoreInput) (*Attempt, error)
	Review(ctx context.Context, id string) (*Review, error)
	ExportExcel(ctx context.Context, id string) ([]byte, error)
}

func NewHandler(svc resultService) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Username = strings.TrimSpace(in.Username)
	in.QuizID = strings.TrimSpace(in.QuizID)
	if err := h.validate.Struct(in); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "username and quiz_id are required")
		return
	}
	if !canAccess(r.Context(), in.Username) {
		apiresp.WriteError(w, r, http.StatusForbidden, "cannot store results for another user")
		return
	}

	a, err := h.svc.CreateResult(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrQuizNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, "quiz not found")
		case errors.Is(err, ErrInvalidAttempt):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			log.Printf("results: create failed user=%s quiz=%s: %v", in.Username, in.QuizID, err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to save result")
		}
		return
	}
	apiresp.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		apiresp.WriteError(w, r, http.StatusBadRequest, "username required")
		return
	}
	if !canAccess(r.Context(), username) {
		apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
		return
	}

	items, err := h.svc.List(r.Context(), username, r.URL.Query().Get("quiz_id"))
	if err != nil {
		if errors.Is(err, ErrUsernameRequired) {
			apiresp.WriteError(w, r, http.StatusBadRequest, "username required")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to list results")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	var in RescoreInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(in); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "question_index out of range")
		return
	}

	a, err := h.svc.Rescore(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, "not found")
		case errors.Is(err, ErrIndexOutOfRange):
			apiresp.WriteError(w, r, http.StatusBadRequest, "question_index out of range")
		case errors.Is(err, ErrInvalidRescore):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			log.Printf("results: rescore failed id=%s: %v", chi.URLParam(r, "id"), err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to rescore")
		}
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	rv, err := h.svc.Review(r.Context(), a.ID)
	if err != nil {
		if errors.Is(err, ErrMalformedAttempt) {
			log.Printf("results: review of %s failed: %v", a.ID, err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "attempt record is malformed")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to load review")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, rv)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	a, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	b, err := h.svc.ExportExcel(r.Context(), a.ID)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to export result")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attempt-%s.xlsx"`, a.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*Attempt, bool) {
	a, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrAttemptNotFound):
			apiresp.WriteError(w, r, http.StatusNotFound, "not found")
		case errors.Is(err, ErrMalformedAttempt):
			apiresp.WriteError(w, r, http.StatusInternalServerError, "attempt record is malformed")
		default:
			apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to load result")
		}
		return nil, false
	}
	if !canAccess(r.Context(), a.Username) {
		apiresp.WriteError(w, r, http.StatusForbidden, ErrAttemptForbidden.Error())
		return nil, false
	}
	return a, true
}

// canAccess lets teachers see every attempt and students only their own.
// Requests without an authenticated user are left to the router's guards.
func canAccess(ctx context.Context, username string) bool {
	u, ok := auth.CurrentUser(ctx)
	if !ok {
		return true
	}
	return u.Role == auth.RoleTeacher || u.Username == username
}
