package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"vocabquiz/internal/app/apiresp"
)

type contextKey string

const (
	userContextKey   contextKey = "auth_user"
	holderContextKey contextKey = "auth_user_holder"
)

type userHolder struct {
	mu   sync.Mutex
	user *User
}

const (
	sessionCookieName  = "vocabquiz_token"
	ServiceTokenHeader = "X-Grading-Token"
)

type Handler struct {
	svc      *Service
	devLogin bool
}

type loginRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// NewHandler builds the auth endpoints. Learner accounts live elsewhere; when
// devLogin is set, Login mints a token for any username so the quiz can be
// exercised without an identity provider.
func NewHandler(svc *Service, devLogin bool) *Handler {
	return &Handler{svc: svc, devLogin: devLogin}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.devLogin {
		apiresp.WriteError(w, r, http.StatusNotFound, "")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := h.svc.IssueToken(req.Username, strings.ToLower(strings.TrimSpace(req.Role)))
	if err != nil {
		if errors.Is(err, ErrInvalidUser) || errors.Is(err, ErrInvalidRole) {
			apiresp.WriteError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}
	user, err := h.svc.Parse(token)
	if err != nil {
		apiresp.WriteError(w, r, http.StatusInternalServerError, "failed to issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	})
	apiresp.WriteJSON(w, http.StatusOK, loginResponse{AccessToken: token, ExpiresAt: expiresAt, User: *user})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	apiresp.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	apiresp.WriteJSON(w, http.StatusOK, user)
}

// RequireAuth accepts a bearer token or the token cookie.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.svc.Parse(readToken(r))
		if err != nil {
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func (h *Handler) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, exists := allowed[user.Role]; !exists {
				apiresp.WriteError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireServiceToken guards the grading endpoints with the shared grading
// token. A disabled verifier lets every request through.
func RequireServiceToken(v *ServiceTokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Verify(strings.TrimSpace(r.Header.Get(ServiceTokenHeader))) {
				apiresp.WriteError(w, r, http.StatusUnauthorized, "invalid grading token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CurrentUser(ctx context.Context) (*User, bool) {
	v := ctx.Value(userContextKey)
	if v == nil {
		return nil, false
	}
	u, ok := v.(*User)
	return u, ok
}

// ContextWithUser injects an authenticated user into context.
// Useful for tests and internal handlers.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	if h, ok := ctx.Value(holderContextKey).(*userHolder); ok {
		h.mu.Lock()
		h.user = user
		h.mu.Unlock()
	}
	return context.WithValue(ctx, userContextKey, user)
}

// TrackUser lets outer middleware learn which user an inner auth guard
// authenticated. The returned func reports nil until that happens.
func TrackUser(ctx context.Context) (context.Context, func() *User) {
	h := &userHolder{}
	return context.WithValue(ctx, holderContextKey, h), func() *User {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.user
	}
}

func readToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
