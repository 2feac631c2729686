package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/dongrigo/internal/domain/rbac"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuth(t *testing.T, password string) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return NewAuthService("admin", string(hash), testSecret, "dongrigo", time.Hour, testLogger())
}

func TestLogin(t *testing.T) {
	svc := newAuth(t, "s3cret")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	resp, err := svc.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 3600 {
		t.Errorf("ответ = %+v", resp)
	}

	claims := &AccessClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("разбор токена: %v", err)
	}
	if claims.Role != rbac.RoleAdmin || claims.Subject != "admin" || claims.Issuer != "dongrigo" || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(time.Hour)) {
		t.Errorf("exp = %v", claims.ExpiresAt)
	}
}

func TestLogin_Rejected(t *testing.T) {
	svc := newAuth(t, "s3cret")
	tests := []struct {
		name, user, pass string
	}{
		{"неверный пароль", "admin", "wrong"},
		{"неверный логин", "root", "s3cret"},
		{"пустые данные", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(tt.user, tt.pass); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("ожидалась ErrUnauthorized, получено %v", err)
			}
		})
	}
}

func TestLogin_Disabled(t *testing.T) {
	svc := NewAuthService("admin", "", testSecret, "dongrigo", time.Hour, testLogger())
	if svc.Enabled() {
		t.Error("Enabled() = true без хеша пароля")
	}
	if _, err := svc.Login("admin", "x"); !errors.Is(err, ErrLoginDisabled) {
		t.Errorf("ожидалась ErrLoginDisabled, получено %v", err)
	}

	noSecret := NewAuthService("admin", "", "", "dongrigo", time.Hour, testLogger())
	if _, err := noSecret.Issue("admin", rbac.RoleEditor); !errors.Is(err, ErrLoginDisabled) {
		t.Errorf("Issue без секрета: %v", err)
	}
}
