package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/exam-api/pkg/auth"
)

// Ключи контекста Gin, которые заполняет RequireAuth
const (
	ContextUserID  = "user_id"
	ContextRole    = "role"
	ContextIsStaff = "is_staff"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	jwtService *auth.JWTService
	log        *zap.Logger
}

// NewAuthMiddleware создает новый middleware
func NewAuthMiddleware(jwtService *auth.JWTService, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, log: log.Named("auth")}
}

// RequireAuth проверяет bearer-токен из заголовка Authorization
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			return
		}

		m.authenticate(c, parts[1])
	}
}

// RequireWSAuth проверяет токен из query-параметра token.
// Браузер не позволяет задать заголовки при открытии WebSocket.
func (m *AuthMiddleware) RequireWSAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token query parameter is required", "error_type": "token_missing"})
			return
		}
		m.authenticate(c, token)
	}
}

func (m *AuthMiddleware) authenticate(c *gin.Context, token string) {
	claims, err := m.jwtService.ParseToken(token)
	if err != nil {
		errType := "token_invalid"
		if errors.Is(err, auth.ErrTokenExpired) {
			errType = "token_expired"
		}
		m.log.Debug("Token rejected", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": errType})
		return
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextIsStaff, claims.IsStaff())
	c.Next()
}

// StaffOnly пропускает только преподавателей и администраторов. Применяется после RequireAuth.
func (m *AuthMiddleware) StaffOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			return
		}
		if !c.GetBool(ContextIsStaff) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Staff rights required", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}
