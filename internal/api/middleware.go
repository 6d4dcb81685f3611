package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
)

const (
	authTypeBearer = "bearer"
	authTypeAPIKey = "apikey"
	userContextKey = "user"
	apiKeyKey      = "api_key"
	authTypeKey    = "auth_type"
	langKey        = "lang"
	requestIDKey   = "request_id"

	requestIDHeader = "X-Request-ID"
)

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// Check for API Key in header
		if key := c.GetHeader("X-API-Key"); key != "" {
			apiKey, err := s.authService.ValidateAPIKey(ctx, key)
			if err != nil {
				s.abortAuth(c, err, "Invalid API key")
				return
			}

			c.Set(userContextKey, &apiKey.User)
			c.Set(authTypeKey, authTypeAPIKey)
			c.Set(apiKeyKey, apiKey)
			s.bindActor(c, &apiKey.User)
			c.Next()
			return
		}

		// Check for Bearer token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != authTypeBearer {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid authorization format"})
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(s.config.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid token claims"})
			return
		}
		userID, ok := claims["user_id"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid token claims"})
			return
		}

		user, err := s.authService.GetUser(ctx, uint(userID))
		if err != nil {
			s.abortAuth(c, err, "User not found")
			return
		}

		c.Set(userContextKey, user)
		c.Set(authTypeKey, authTypeBearer)
		s.bindActor(c, user)
		c.Next()
	}
}

func (s *Server) abortAuth(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrInvalidCredentials) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msg})
		return
	}
	s.logger.Error().Err(err).Msg("Authentication lookup failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Authentication failed"})
}

// requirePermission limits API key callers to what the key grants. Bearer
// sessions act as the user and are not restricted.
func requirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyAllows(c, perm) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Error:   "API key lacks permission " + perm,
			ExcType: "PermissionError",
		})
	}
}

// keyAllows reports whether the caller may use perm. Only API keys are restricted.
func keyAllows(c *gin.Context, perm string) bool {
	if getAuthType(c) != authTypeAPIKey {
		return true
	}
	v, _ := c.Get(apiKeyKey)
	key, ok := v.(*models.APIKey)
	return ok && key.HasPermission(perm)
}

// bindActor resolves the caller's language and stores the actor on the
// request context so services can read it
func (s *Server) bindActor(c *gin.Context, user *models.User) {
	actor := services.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	userLang := ""
	if user != nil {
		id := user.ID
		actor.UserID = &id
		userLang = user.Language
	}
	actor.Lang = s.resolver.Resolve(c.Query("_lang"), c.GetHeader("Accept-Language"), userLang)
	c.Set(langKey, actor.Lang)

	c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), actor))
}

// LocaleMiddleware resolves the language of anonymous requests
func (s *Server) LocaleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.bindActor(c, nil)
		c.Next()
	}
}

// RequestIDMiddleware propagates or assigns X-Request-ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// LoggerMiddleware logs each request and puts a request scoped logger on the context
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		reqLogger := logger.With().Str("request_id", c.GetString(requestIDKey)).Logger()
		c.Request = c.Request.WithContext(utils.WithContext(c.Request.Context(), reqLogger))

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		event := reqLogger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = reqLogger.Error()
		}
		event.
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("lang", c.GetString(langKey)).
			Str("error", c.Errors.ByType(gin.ErrorTypePrivate).String()).
			Msg("HTTP request")
	}
}

// metricsMiddleware records request counts and latency by route template
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func getUserFromContext(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get(userContextKey)
	if !exists {
		return nil, false
	}

	u, ok := user.(*models.User)
	return u, ok
}

func getAuthType(c *gin.Context) string {
	authType, _ := c.Get(authTypeKey)
	t, _ := authType.(string)
	return t
}
