package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/ksred/linkdesk/internal/database"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// API key permissions
const (
	PermSearch        = "search"
	PermPatchLogRead  = "patch_log:read"
	PermPatchLogRerun = "patch_log:rerun"
	PermRegistryWrite = "registry:write"
)

const (
	minPasswordLength  = 8
	apiKeyRandomLength = 32
)

// DefaultKeyPermissions are granted to keys created without an explicit list
var DefaultKeyPermissions = []string{PermSearch, PermPatchLogRead}

// ErrInvalidCredentials is returned for unknown users, wrong passwords and bad keys
var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	db     *database.Database
	logger zerolog.Logger
}

func NewAuthService(db *database.Database, logger zerolog.Logger) *AuthService {
	return &AuthService{
		db:     db,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

func (s *AuthService) RegisterUser(ctx context.Context, email, password, language string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, utils.RequiredFieldError("email")
	}
	if password == "" {
		return nil, utils.RequiredFieldError("password")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, utils.InvalidFieldError("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		return nil, utils.InvalidFieldError("password", "must be at least 8 characters long")
	}

	db := s.db.DB().WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, utils.WrapDatabaseError("check user", err)
	}
	if count > 0 {
		return nil, utils.WrapConflictError("user", "email", email)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		Language: strings.TrimSpace(language),
	}
	if err := db.Create(user).Error; err != nil {
		return nil, utils.WrapDatabaseError("create user", err)
	}

	return user, nil
}

func (s *AuthService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User

	err := s.db.DB().WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, utils.WrapDatabaseError("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &user, nil
}

// GetUser loads a user by id, for bearer tokens
func (s *AuthService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.DB().WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, utils.WrapDatabaseError("load user", err)
	}
	return &user, nil
}

func (s *AuthService) GenerateAPIKey(ctx context.Context, userID uint, name string, permissions []string, expiresAt *time.Time) (*models.APIKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, utils.RequiredFieldError("name")
	}
	if len(permissions) == 0 {
		permissions = DefaultKeyPermissions
	}

	keyBytes := make([]byte, apiKeyRandomLength)
	if _, err := rand.Read(keyBytes); err != nil {
		return nil, err
	}

	apiKey := &models.APIKey{
		UserID:    userID,
		Key:       "ld_" + hex.EncodeToString(keyBytes),
		Name:      strings.TrimSpace(name),
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
	apiKey.SetPermissions(permissions)

	if err := s.db.DB().WithContext(ctx).Create(apiKey).Error; err != nil {
		return nil, utils.WrapDatabaseError("create api key", err)
	}

	return apiKey, nil
}

func (s *AuthService) ValidateAPIKey(ctx context.Context, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	db := s.db.DB().WithContext(ctx)

	err := db.Where("key = ? AND is_active = ?", key, true).First(&apiKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, utils.WrapDatabaseError("load api key", err)
	}

	now := time.Now()
	if !apiKey.Usable(now) {
		return nil, ErrInvalidCredentials
	}

	if err := db.First(&apiKey.User, apiKey.UserID).Error; err != nil {
		return nil, ErrInvalidCredentials
	}

	apiKey.LastUsedAt = &now
	if err := db.Model(&apiKey).Update("last_used_at", now).Error; err != nil {
		s.logger.Warn().Err(err).Uint("key_id", apiKey.ID).Msg("Failed to touch api key")
	}

	return &apiKey, nil
}

func (s *AuthService) ListUserAPIKeys(ctx context.Context, userID uint) ([]models.APIKey, error) {
	var keys []models.APIKey

	err := s.db.DB().WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&keys).Error
	if err != nil {
		return nil, utils.WrapDatabaseError("list api keys", err)
	}
	return keys, nil
}

func (s *AuthService) DeleteAPIKey(ctx context.Context, userID uint, keyID uint) error {
	result := s.db.DB().WithContext(ctx).
		Where("id = ? AND user_id = ?", keyID, userID).
		Delete(&models.APIKey{})
	if result.Error != nil {
		return utils.WrapDatabaseError("delete api key", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.WrapNotFoundError("API key", strconv.FormatUint(uint64(keyID), 10))
	}
	return nil
}
