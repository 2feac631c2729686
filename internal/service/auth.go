// auth.go — локальный вход администратора и выпуск HS256-токенов.
package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/dongrigo/internal/domain/rbac"
)

var (
	// ErrUnauthorized — неверные учётные данные.
	ErrUnauthorized = errors.New("неверный логин или пароль")
	// ErrLoginDisabled — локальный вход не настроен.
	ErrLoginDisabled = errors.New("локальный вход отключён")
)

// AccessClaims — claims токенов admin API.
// Role заполняется в токенах, выпущенных DongriGo; токены внешнего IdP
// несут группы, роль по ним вычисляет middleware.
type AccessClaims struct {
	Role              string   `json:"role,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Groups            []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

// TokenResponse — ответ POST /api/v1/auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthService проверяет логин администратора и выпускает токены.
type AuthService struct {
	username     string
	passwordHash []byte
	secret       []byte
	issuer       string
	ttl          time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewAuthService создаёт AuthService. Пустой passwordHash или secret
// отключают локальный вход.
func NewAuthService(username, passwordHash, secret, issuer string, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		issuer:       issuer,
		ttl:          ttl,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "auth_service")),
	}
}

// Enabled сообщает, настроен ли локальный вход.
func (s *AuthService) Enabled() bool {
	return len(s.passwordHash) > 0 && len(s.secret) > 0
}

// Login проверяет учётные данные и выпускает токен с ролью admin.
func (s *AuthService) Login(username, password string) (*TokenResponse, error) {
	if !s.Enabled() {
		return nil, ErrLoginDisabled
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	if !userOK || !passOK {
		s.logger.Warn("Неудачная попытка входа", slog.String("username", username))
		return nil, ErrUnauthorized
	}

	token, err := s.Issue(username, rbac.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Выпущен токен администратора", slog.String("username", username))
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
	}, nil
}

// Issue подписывает HS256-токен для subject с ролью role.
func (s *AuthService) Issue(subject, role string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrLoginDisabled
	}
	now := s.now()
	claims := AccessClaims{
		Role:              role,
		PreferredUsername: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}
