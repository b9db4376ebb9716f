package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"

	tokenIssuer     = "vocabquiz"
	defaultTokenTTL = 8 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role")
	ErrInvalidUser  = errors.New("invalid username")
)

// User is the learner identity carried by a request.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type ServiceConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &Service{secret: []byte(cfg.Secret), ttl: cfg.TokenTTL, now: time.Now}
}

func isValidRole(role string) bool {
	return role == RoleStudent || role == RoleTeacher
}

// IssueToken signs an HS256 token for username.
func (s *Service) IssueToken(username, role string) (string, time.Time, error) {
	username = normalizeUsername(username)
	if username == "" {
		return "", time.Time{}, ErrInvalidUser
	}
	if role == "" {
		role = RoleStudent
	}
	if !isValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		Sub:  username,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *Service) Parse(tokenStr string) (*User, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || c.Sub == "" || !isValidRole(c.Role) {
		return nil, ErrInvalidToken
	}
	return &User{Username: c.Sub, Role: c.Role}, nil
}

// HashServiceToken produces the bcrypt hash stored in GRADING_TOKEN_HASH.
func HashServiceToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token is empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(b), nil
}

// ServiceTokenVerifier checks presented tokens against one bcrypt hash.
// The last accepted token is remembered so bcrypt runs once per token.
type ServiceTokenVerifier struct {
	hash []byte

	mu       sync.Mutex
	accepted []byte
}

func NewServiceTokenVerifier(hash string) *ServiceTokenVerifier {
	return &ServiceTokenVerifier{hash: []byte(strings.TrimSpace(hash))}
}

func (v *ServiceTokenVerifier) Enabled() bool {
	return v != nil && len(v.hash) > 0
}

func (v *ServiceTokenVerifier) Verify(token string) bool {
	if !v.Enabled() {
		return true
	}
	if token == "" {
		return false
	}

	v.mu.Lock()
	cached := v.accepted
	v.mu.Unlock()
	if cached != nil && subtle.ConstantTimeCompare(cached, []byte(token)) == 1 {
		return true
	}

	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return false
	}
	v.mu.Lock()
	v.accepted = []byte(token)
	v.mu.Unlock()
	return true
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
