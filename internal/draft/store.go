package draft

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/sessions"
)

const sessionName = "vocabquiz-draft"

// SessionStore keeps drafts in a gorilla session, one value per quiz.
type SessionStore struct {
	store sessions.Store
}

func NewSessionStore(store sessions.Store) *SessionStore {
	return &SessionStore{store: store}
}

// NewFilesystemSessionStore keeps session data on disk under dir; the cookie
// only carries the signed session id.
func NewFilesystemSessionStore(dir string, key []byte, secure bool) (*SessionStore, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}
	fs := sessions.NewFilesystemStore(dir, key)
	fs.MaxLength(1 << 20)
	fs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return NewSessionStore(fs), nil
}

func valueKey(quizID string) string {
	return "draft:" + quizID
}

// Load returns ErrDraftNotFound when the session holds no draft for quizID.
func (s *SessionStore) Load(r *http.Request, quizID string) (*Draft, error) {
	sess, err := s.store.Get(r, sessionName)
	if err != nil && sess == nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	raw, ok := sess.Values[valueKey(quizID)].(string)
	if !ok || raw == "" {
		return nil, ErrDraftNotFound
	}
	var d Draft
	if err := json.Unmarshal([]byte(raw), &d); err != nil || d.Tracker == nil {
		return nil, ErrDraftNotFound
	}
	return &d, nil
}

func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, d *Draft) error {
	sess, err := s.store.Get(r, sessionName)
	if err != nil && sess == nil {
		return fmt.Errorf("load session: %w", err)
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	sess.Values[valueKey(d.QuizID)] = string(b)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
