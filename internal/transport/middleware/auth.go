package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// OperatorAuth защищает ручной запуск пайплайна: JWT или API ключ
type OperatorAuth struct {
	jwtSecret  []byte
	apiKeyHash []byte
}

// NewOperatorAuth создает middleware. Пустые секреты отключают соответствующий способ.
func NewOperatorAuth(jwtSecret, apiKeyHash string) *OperatorAuth {
	return &OperatorAuth{
		jwtSecret:  []byte(jwtSecret),
		apiKeyHash: []byte(apiKeyHash),
	}
}

// Enabled - настроен ли хотя бы один способ аутентификации
func (m *OperatorAuth) Enabled() bool {
	return len(m.jwtSecret) > 0 || len(m.apiKeyHash) > 0
}

// RequireOperator пропускает запрос с действительным JWT или API ключом
func (m *OperatorAuth) RequireOperator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.Enabled() {
			return next(c)
		}

		if key := c.Request().Header.Get("X-API-Key"); key != "" && len(m.apiKeyHash) > 0 {
			if bcrypt.CompareHashAndPassword(m.apiKeyHash, []byte(key)) == nil {
				c.Set("operator", "api-key")
				return next(c)
			}
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
		}

		token := extractToken(c.Request())
		if token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing token"})
		}
		if len(m.jwtSecret) == 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}

		claims, err := m.validateJWT(token)
		if err != nil {
			log.Warn().Err(err).Str("component", "auth").Msg("Rejected operator token")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}

		c.Set("operator", claims["sub"])
		return next(c)
	}
}

// GenerateJWT выпускает токен оператора
func (m *OperatorAuth) GenerateJWT(subject string, ttl time.Duration) (string, error) {
	if len(m.jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": "operator",
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.jwtSecret)
}

func (m *OperatorAuth) validateJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, echo.ErrUnauthorized
	}
	if role, _ := claims["role"].(string); role != "operator" {
		return nil, errors.New("token is not an operator token")
	}
	return claims, nil
}

// HashAPIKey - bcrypt хеш ключа для OPERATOR_API_KEY_HASH
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(hash), err
}

func extractToken(r *http.Request) string {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}
