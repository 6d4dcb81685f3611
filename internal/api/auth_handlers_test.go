package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/linkdesk/internal/config"
	"github.com/ksred/linkdesk/internal/database"
	"github.com/ksred/linkdesk/internal/i18n"
	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the patches the API asks to re-run
type fakeRunner struct {
	calls []string
	force []bool
}

func (f *fakeRunner) RunSingle(_ context.Context, identifier string, force bool) (bool, error) {
	f.calls = append(f.calls, identifier)
	f.force = append(f.force, force)
	return true, nil
}

type testEnv struct {
	server  *Server
	db      *database.Database
	runner  *fakeRunner
	metrics *metrics.Collector
}

func setupTestServer(t *testing.T, developerMode bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.NewDefault()
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = ":memory:"
	cfg.JWT.Secret = "test-secret"
	cfg.Server.DeveloperMode = developerMode

	logger := utils.NewLogger(utils.LoggerConfig{
		Level:  "error",
		Pretty: false,
	})

	db := database.NewDatabase(cfg.Database, logger)
	require.NoError(t, db.Connect())
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.SyncModels(db.DB()))

	collector := metrics.NewCollector("test")
	translator := i18n.NewTranslator(db.DB(), nil, cfg.Locale.Default, time.Minute, logger)
	activity := services.NewActivityService(db.DB(), logger)
	searchService := search.NewService(db.DB(), translator, cfg.Search, logger)
	searchService.SetMetrics(collector)
	runner := &fakeRunner{}

	server, err := NewServer(cfg, db, Dependencies{
		Search:     searchService,
		PatchLogs:  services.NewPatchLogService(db.DB(), runner, translator, activity, developerMode, logger),
		DocTypes:   services.NewDocTypeService(db.DB(), logger),
		Records:    services.NewRecordService(db.DB(), logger),
		Activity:   activity,
		Translator: translator,
		Metrics:    collector,
	}, logger)
	require.NoError(t, err)

	return &testEnv{server: server, db: db, runner: runner, metrics: collector}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)
	return rec
}

// login registers a user and returns a bearer header for it
func (e *testEnv) login(t *testing.T, email, language string) map[string]string {
	t.Helper()

	_, err := e.server.authService.RegisterUser(context.Background(), email, "password123", language)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: email, Password: "password123"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return map[string]string{"Authorization": "Bearer " + resp.Token}
}

func TestRegisterHandler(t *testing.T) {
	env := setupTestServer(t, false)

	tests := []struct {
		name       string
		body       RegisterRequest
		wantStatus int
		wantError  bool
	}{
		{
			name: "successful registration",
			body: RegisterRequest{
				Email:    "test@example.com",
				Password: "password123",
				Language: "fr",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "duplicate email",
			body: RegisterRequest{
				Email:    "test@example.com",
				Password: "password123",
			},
			wantStatus: http.StatusConflict,
			wantError:  true,
		},
		{
			name: "short password",
			body: RegisterRequest{
				Email:    "test2@example.com",
				Password: "short",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  true,
		},
		{
			name: "invalid email",
			body: RegisterRequest{
				Email:    "invalid-email",
				Password: "password123",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/register", tt.body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantError {
				var response ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				assert.NotEmpty(t, response.Error)
				return
			}

			var response UserInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Equal(t, tt.body.Email, response.Email)
			assert.Equal(t, tt.body.Language, response.Language)
			assert.NotZero(t, response.ID)
		})
	}
}

func TestLoginHandler(t *testing.T) {
	env := setupTestServer(t, false)

	_, err := env.server.authService.RegisterUser(context.Background(), "test@example.com", "password123", "")
	require.NoError(t, err)

	tests := []struct {
		name       string
		body       LoginRequest
		wantStatus int
	}{
		{
			name:       "successful login",
			body:       LoginRequest{Email: "test@example.com", Password: "password123"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "email is case insensitive",
			body:       LoginRequest{Email: "Test@Example.com", Password: "password123"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			body:       LoginRequest{Email: "test@example.com", Password: "wrongpassword"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-existent user",
			body:       LoginRequest{Email: "nonexistent@example.com", Password: "password123"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "system user cannot log in",
			body:       LoginRequest{Email: "system@linkdesk.local", Password: "no-login"},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/auth/login", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				var response LoginResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
				assert.NotEmpty(t, response.Token)
				assert.Equal(t, "test@example.com", response.User.Email)
			}
		})
	}

	var logins int64
	env.db.DB().Model(&models.ActivityLog{}).Where("type = ?", models.ActivityLogin).Count(&logins)
	assert.Equal(t, int64(2), logins)
}

func TestAPIKeyHandlers(t *testing.T) {
	env := setupTestServer(t, false)
	auth := env.login(t, "keys@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/v1/keys", CreateAPIKeyRequest{Name: "widget"}, auth)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created APIKeyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Key)
	assert.Equal(t, DefaultKeyPermissions, created.Permissions)

	t.Run("key authenticates", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/keys", nil, map[string]string{"X-API-Key": created.Key})
		require.Equal(t, http.StatusOK, rec.Code)

		var keys []APIKeyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
		require.Len(t, keys, 1)
		assert.Empty(t, keys[0].Key, "the key is only shown on creation")
		assert.NotNil(t, keys[0].LastUsedAt)
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/keys", nil, map[string]string{"X-API-Key": "ld_nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/v1/keys", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/keys", nil, map[string]string{"Authorization": "Token abc"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = env.do(t, http.MethodGet, "/api/v1/keys", nil, map[string]string{"Authorization": "Bearer not-a-jwt"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/v1/keys/" + strconv.FormatUint(uint64(created.ID), 10)

		rec := env.do(t, http.MethodDelete, path, nil, auth)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(t, http.MethodDelete, path, nil, auth)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/v1/keys/abc", nil, auth)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var activities []models.ActivityLog
	require.NoError(t, env.db.DB().Order("id").Find(&activities).Error)
	types := make([]string, len(activities))
	for i, a := range activities {
		types[i] = a.Type
	}
	assert.Equal(t, []string{models.ActivityLogin, models.ActivityAPIKeyCreated, models.ActivityAPIKeyDeleted}, types)
}

func TestAuthService_ValidateAPIKey(t *testing.T) {
	env := setupTestServer(t, false)
	ctx := context.Background()

	user, err := env.server.authService.RegisterUser(ctx, "svc@example.com", "password123", "")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	expired, err := env.server.authService.GenerateAPIKey(ctx, user.ID, "old", nil, &past)
	require.NoError(t, err)

	_, err = env.server.authService.ValidateAPIKey(ctx, expired.Key)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.server.authService.GenerateAPIKey(ctx, user.ID, " ", nil, nil)
	assert.True(t, utils.IsValidationError(err))

	key, err := env.server.authService.GenerateAPIKey(ctx, user.ID, "all", []string{"*"}, nil)
	require.NoError(t, err)
	valid, err := env.server.authService.ValidateAPIKey(ctx, key.Key)
	require.NoError(t, err)
	assert.Equal(t, user.ID, valid.User.ID)
	assert.True(t, valid.HasPermission(PermPatchLogRerun))
}
