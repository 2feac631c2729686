// auth.go — JWT-аутентификация и авторизация admin API.
// Локальный режим: HS256-токены, выпущенные POST /api/v1/auth/token (claim role).
// Режим IdP: RS256-токены внешнего провайдера, ключи из JWKS,
// роль вычисляется по группам.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/dongrigo/internal/api/errors"
	"github.com/bigkaa/dongrigo/internal/domain/rbac"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyClaims — claims аутентифицированного субъекта.
	ContextKeyClaims contextKey = "jwt_claims"
	// ContextKeyRequestID — идентификатор запроса.
	ContextKeyRequestID contextKey = "request_id"
)

// AuthClaims — claims субъекта, помещаемые в контекст запроса.
type AuthClaims struct {
	Subject           string
	PreferredUsername string
	Groups            []string
	// Role — итоговая роль (editor, admin или пустая)
	Role string
}

// Allows проверяет, достаточно ли роли субъекта для required.
func (c *AuthClaims) Allows(required string) bool {
	return rbac.Allows(c.Role, required)
}

// tokenClaims — raw claims токена для парсинга.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role              string   `json:"role,omitempty"`
	PreferredUsername string   `json:"preferred_username,omitempty"`
	Groups            []string `json:"groups,omitempty"`
}

// JWTAuth проверяет Bearer-токены admin API.
type JWTAuth struct {
	keyfunc      jwt.Keyfunc
	methods      []string
	issuer       string
	leeway       time.Duration
	groupRoles   bool
	adminGroups  []string
	editorGroups []string
	logger       *slog.Logger
}

// NewJWTAuthHS256 создаёт middleware для токенов, подписанных secret.
func NewJWTAuthHS256(secret, issuer string, leeway time.Duration, logger *slog.Logger) *JWTAuth {
	key := []byte(secret)
	return &JWTAuth{
		keyfunc: func(*jwt.Token) (any, error) { return key, nil },
		methods: []string{"HS256"},
		issuer:  issuer,
		leeway:  leeway,
		logger:  logger.With(slog.String("component", "jwt_auth")),
	}
}

// NewJWTAuthJWKS создаёт middleware для RS256-токенов внешнего IdP.
// Ключи загружаются из jwksURL и обновляются в фоне; сервер стартует,
// даже если IdP ещё недоступен.
func NewJWTAuthJWKS(
	jwksURL string,
	issuer string,
	adminGroups, editorGroups []string,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	a := NewJWTAuthWithKeyfunc(k, issuer, adminGroups, editorGroups, logger)
	a.leeway = leeway
	return a, nil
}

// NewJWTAuthWithKeyfunc создаёт middleware режима IdP с готовой keyfunc.
// Используется в тестах для подстановки JWKS.
func NewJWTAuthWithKeyfunc(
	kf keyfunc.Keyfunc,
	issuer string,
	adminGroups, editorGroups []string,
	logger *slog.Logger,
) *JWTAuth {
	return &JWTAuth{
		keyfunc:      kf.Keyfunc,
		methods:      []string{"RS256"},
		issuer:       issuer,
		groupRoles:   true,
		adminGroups:  adminGroups,
		editorGroups: editorGroups,
		logger:       logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware извлекает Bearer-токен, проверяет подпись и срок действия
// и помещает AuthClaims в контекст.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			raw := &tokenClaims{}
			parserOpts := []jwt.ParserOption{
				jwt.WithValidMethods(j.methods),
				jwt.WithExpirationRequired(),
				jwt.WithLeeway(j.leeway),
			}
			if j.issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
			}

			token, err := jwt.ParseWithClaims(tokenString, raw, j.keyfunc, parserOpts...)
			if err != nil || !token.Valid {
				j.logger.Debug("JWT валидация не пройдена",
					slog.Any("error", err),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			if raw.Subject == "" {
				apierrors.Unauthorized(w, "Отсутствует sub в токене")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, j.buildAuthClaims(raw))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// buildAuthClaims вычисляет роль: в режиме IdP по группам
// (claim role используется, если группы не дали роли).
func (j *JWTAuth) buildAuthClaims(raw *tokenClaims) *AuthClaims {
	claims := &AuthClaims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Groups:            raw.Groups,
	}
	if j.groupRoles {
		claims.Role = rbac.MapGroupsToRole(raw.Groups, j.adminGroups, j.editorGroups)
	}
	if claims.Role == "" && rbac.IsValidRole(raw.Role) {
		claims.Role = raw.Role
	}
	return claims
}

// RequireRole пропускает субъектов с ролью не ниже required.
// Используется после JWTAuth.Middleware().
func RequireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				apierrors.Unauthorized(w, "Отсутствуют claims в контексте")
				return
			}
			if !claims.Allows(required) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль "+required)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext извлекает AuthClaims из контекста запроса.
// Возвращает nil, если claims не найдены.
func ClaimsFromContext(ctx context.Context) *AuthClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*AuthClaims)
	return claims
}

// SubjectFromContext возвращает sub или пустую строку.
func SubjectFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
