package draft

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"vocabquiz/internal/app/apiresp"
	"vocabquiz/internal/auth"
	"vocabquiz/internal/quiz"
	"vocabquiz/internal/scoring"
	"vocabquiz/internal/submission"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type quizService interface {
	Get(ctx context.Context, id string) (*quiz.Quiz, error)
}

type submitter interface {
	Submit(ctx context.Context, in submission.Input, onProgress func(scoring.Progress)) (*submission.Result, error)
}

type draftStore interface {
	Load(r *http.Request, quizID string) (*Draft, error)
	Save(r *http.Request, w http.ResponseWriter, d *Draft) error
}

type Handler struct {
	quizzes  quizService
	drafts   draftStore
	submit   submitter
	validate *validator.Validate
	now      func() time.Time
	shuffle  func([]string)

	mu       sync.Mutex
	inflight map[string]*scoring.Progress
	editing  map[string]int
}

type answerRequest struct {
	Section int    `json:"section" validate:"required"`
	Index   *int   `json:"index" validate:"required"`
	Value   string `json:"value"`
}

type sectionRequest struct {
	Target int `json:"target" validate:"required"`
}

type submitResponse struct {
	ID         string `json:"id"`
	Score      int    `json:"score"`
	TotalScore int    `json:"total_score"`
	Passed     bool   `json:"passed"`
	ReviewURL  string `json:"review_url"`
}

func NewHandler(quizzes quizService, drafts draftStore, submit submitter) *Handler {
	return &Handler{
		quizzes:  quizzes,
		drafts:   drafts,
		submit:   submit,
		validate: validator.New(),
		now:      time.Now,
		shuffle: func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
		inflight: make(map[string]*scoring.Progress),
		editing:  make(map[string]int),
	}
}

// Start creates a draft, or returns the learner's open draft for the quiz.
// A submitted draft is replaced by a fresh one.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	qz, ok := h.loadQuiz(w, r)
	if !ok {
		return
	}
	set := qz.Categorize()

	if d, err := h.drafts.Load(r, qz.ID); err == nil && d.Username == user.Username && !d.Submitted() {
		apiresp.WriteJSON(w, http.StatusOK, d.View(set))
		return
	}

	d := New(qz, set, user.Username, h.now(), h.shuffle)
	if err := h.drafts.Save(r, w, d); err != nil {
		log.Printf("draft: save failed user=%s quiz=%s: %v", user.Username, qz.ID, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to save draft")
		return
	}
	apiresp.WriteJSON(w, http.StatusCreated, d.View(set))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	qz, d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, d.View(qz.Categorize()))
}

// PutAnswer sets one answer. Submitted drafts are in review mode and ignore edits.
func (h *Handler) PutAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "section and index are required")
		return
	}
	qz, d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	done, ok := h.beginEdit(w, r, d)
	if !ok {
		return
	}
	defer done()

	if err := d.Tracker.SetAnswer(req.Section, *req.Index, req.Value); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.saveAndRespond(w, r, qz, d)
}

func (h *Handler) PutSection(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "target is required")
		return
	}
	qz, d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	done, ok := h.beginEdit(w, r, d)
	if !ok {
		return
	}
	defer done()

	if err := d.Tracker.ChangeSection(req.Target); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.saveAndRespond(w, r, qz, d)
}

// Progress reports the grading progress of a running submission.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.mu.Lock()
	p, running := h.inflight[inflightKey(user.Username, chi.URLParam(r, "id"))]
	var snapshot scoring.Progress
	if running {
		snapshot = *p
	}
	h.mu.Unlock()

	if !running {
		apiresp.WriteError(w, r, http.StatusNotFound, "no submission in progress")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	qz, d, ok := h.loadDraft(w, r)
	if !ok {
		return
	}
	if d.Submitted() {
		apiresp.WriteError(w, r, http.StatusConflict, ErrAlreadySubmitted.Error())
		return
	}

	key := inflightKey(d.Username, d.QuizID)
	progress, ok := h.begin(key)
	if !ok {
		apiresp.WriteError(w, r, http.StatusConflict, ErrSubmitInProgress.Error())
		return
	}
	defer h.end(key)

	res, err := h.submit.Submit(r.Context(), submission.Input{
		Username:  d.Username,
		QuizID:    d.QuizID,
		QuizName:  d.QuizName,
		TimeSpent: h.now().Sub(d.StartedAt),
		Questions: d.Questions(qz.Categorize()),
	}, func(p scoring.Progress) {
		h.mu.Lock()
		*progress = p
		h.mu.Unlock()
	})
	if err != nil {
		var pe *submission.PersistError
		switch {
		case errors.As(err, &pe):
			apiresp.WriteError(w, r, http.StatusBadGateway, pe.Message)
		case errors.Is(err, submission.ErrNothingToSubmit):
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
		default:
			log.Printf("draft: submit failed user=%s quiz=%s: %v", d.Username, d.QuizID, err)
			apiresp.WriteError(w, r, http.StatusInternalServerError, "submission failed")
		}
		return
	}

	d.AttemptID = res.Attempt.ID
	d.Tracker.Freeze()
	if err := h.drafts.Save(r, w, d); err != nil {
		// The attempt is stored; only the review-mode marker is lost.
		log.Printf("draft: save after submit failed user=%s quiz=%s: %v", d.Username, d.QuizID, err)
	}
	apiresp.WriteJSON(w, http.StatusOK, submitResponse{
		ID:         res.Attempt.ID,
		Score:      res.Attempt.Score,
		TotalScore: res.Attempt.TotalScore,
		Passed:     res.Attempt.Passed,
		ReviewURL:  "/api/v1/results/" + res.Attempt.ID + "/review",
	})
}

// begin claims the draft for a submit. It fails while another submit or an
// edit holds the draft.
func (h *Handler) begin(key string) (*scoring.Progress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inflight[key]; busy || h.editing[key] > 0 {
		return nil, false
	}
	p := &scoring.Progress{}
	h.inflight[key] = p
	return p, true
}

func (h *Handler) end(key string) {
	h.mu.Lock()
	delete(h.inflight, key)
	h.mu.Unlock()
}

// beginEdit refuses edits while the draft is being submitted. The draft is
// inert from the moment grading starts.
func (h *Handler) beginEdit(w http.ResponseWriter, r *http.Request, d *Draft) (func(), bool) {
	key := inflightKey(d.Username, d.QuizID)
	h.mu.Lock()
	if _, busy := h.inflight[key]; busy {
		h.mu.Unlock()
		apiresp.WriteError(w, r, http.StatusConflict, ErrSubmitInProgress.Error())
		return nil, false
	}
	h.editing[key]++
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		h.editing[key]--
		if h.editing[key] <= 0 {
			delete(h.editing, key)
		}
		h.mu.Unlock()
	}, true
}

func inflightKey(username, quizID string) string {
	return username + "\x00" + quizID
}

func (h *Handler) loadQuiz(w http.ResponseWriter, r *http.Request) (*quiz.Quiz, bool) {
	qz, err := h.quizzes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, quiz.ErrQuizNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, "quiz not found")
			return nil, false
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to load quiz")
		return nil, false
	}
	return qz, true
}

func (h *Handler) loadDraft(w http.ResponseWriter, r *http.Request) (*quiz.Quiz, *Draft, bool) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}
	qz, ok := h.loadQuiz(w, r)
	if !ok {
		return nil, nil, false
	}
	d, err := h.drafts.Load(r, qz.ID)
	if err != nil || d.Username != user.Username {
		apiresp.WriteError(w, r, http.StatusNotFound, ErrDraftNotFound.Error())
		return nil, nil, false
	}
	return qz, d, true
}

func (h *Handler) saveAndRespond(w http.ResponseWriter, r *http.Request, qz *quiz.Quiz, d *Draft) {
	if err := h.drafts.Save(r, w, d); err != nil {
		log.Printf("draft: save failed user=%s quiz=%s: %v", d.Username, d.QuizID, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to save draft")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, d.View(qz.Categorize()))
}
