package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ksred/linkdesk/internal/models"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required,min=8" example:"password123"`
	Language string `json:"language,omitempty" example:"fr"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

type UserInfo struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Language string `json:"language,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name        string     `json:"name" binding:"required" example:"Link search widget"`
	Permissions []string   `json:"permissions,omitempty" example:"search,patch_log:read"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" example:"2027-12-31T23:59:59Z"`
}

type APIKeyResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Key         string     `json:"key,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	IsActive    bool       `json:"is_active"`
	Permissions []string   `json:"permissions"`
}

func userInfo(user *models.User) UserInfo {
	return UserInfo{ID: user.ID, Email: user.Email, Language: user.Language}
}

// registerHandler godoc
// @Summary Register a new user
// @Description Create a new user account with an optional preferred language
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} UserInfo
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (s *Server) registerHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := s.authService.RegisterUser(c.Request.Context(), req.Email, req.Password, req.Language)
	if err != nil {
		s.respondError(c, err, "Failed to register user")
		return
	}

	c.JSON(http.StatusCreated, userInfo(user))
}

// loginHandler godoc
// @Summary Login user
// @Description Authenticate user and get JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *Server) loginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := s.authService.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
			return
		}
		s.respondError(c, err, "Failed to authenticate")
		return
	}

	expiresAt := time.Now().Add(s.config.JWT.TTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate JWT token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate token"})
		return
	}

	s.bindActor(c, user)
	s.logActivity(c, models.ActivityLogin, map[string]interface{}{
		"email": user.Email,
	})

	c.JSON(http.StatusOK, LoginResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt,
		User:      userInfo(user),
	})
}

// listAPIKeysHandler godoc
// @Summary List API keys
// @Tags keys
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} APIKeyResponse
// @Failure 401 {object} ErrorResponse
// @Router /keys [get]
func (s *Server) listAPIKeysHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not found"})
		return
	}

	keys, err := s.authService.ListUserAPIKeys(c.Request.Context(), user.ID)
	if err != nil {
		s.respondError(c, err, "Failed to list API keys")
		return
	}

	response := make([]APIKeyResponse, len(keys))
	for i, key := range keys {
		response[i] = APIKeyResponse{
			ID:          key.ID,
			Name:        key.Name,
			CreatedAt:   key.CreatedAt,
			ExpiresAt:   key.ExpiresAt,
			LastUsedAt:  key.LastUsedAt,
			IsActive:    key.IsActive,
			Permissions: key.GetPermissions(),
		}
	}

	c.JSON(http.StatusOK, response)
}

// createAPIKeyHandler godoc
// @Summary Create an API key
// @Description The key itself is only returned once
// @Tags keys
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body CreateAPIKeyRequest true "Key details"
// @Success 201 {object} APIKeyResponse
// @Failure 400 {object} ErrorResponse
// @Router /keys [post]
func (s *Server) createAPIKeyHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not found"})
		return
	}

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	apiKey, err := s.authService.GenerateAPIKey(c.Request.Context(), user.ID, req.Name, req.Permissions, req.ExpiresAt)
	if err != nil {
		s.respondError(c, err, "Failed to create API key")
		return
	}

	s.logActivity(c, models.ActivityAPIKeyCreated, map[string]interface{}{
		"api_key_id":  apiKey.ID,
		"name":        apiKey.Name,
		"permissions": apiKey.GetPermissions(),
	})

	c.JSON(http.StatusCreated, APIKeyResponse{
		ID:          apiKey.ID,
		Name:        apiKey.Name,
		Key:         apiKey.Key, // Only shown once during creation
		CreatedAt:   apiKey.CreatedAt,
		ExpiresAt:   apiKey.ExpiresAt,
		IsActive:    apiKey.IsActive,
		Permissions: apiKey.GetPermissions(),
	})
}

// deleteAPIKeyHandler godoc
// @Summary Delete an API key
// @Tags keys
// @Security ApiKeyAuth
// @Param id path int true "Key ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /keys/{id} [delete]
func (s *Server) deleteAPIKeyHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not found"})
		return
	}

	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		badRequest(c, "Invalid key ID")
		return
	}

	if err := s.authService.DeleteAPIKey(c.Request.Context(), user.ID, uint(keyID)); err != nil {
		s.respondError(c, err, "Failed to delete API key")
		return
	}

	s.logActivity(c, models.ActivityAPIKeyDeleted, map[string]interface{}{
		"api_key_id": uint(keyID),
	})

	c.Status(http.StatusNoContent)
}
