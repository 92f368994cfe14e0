package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/middleware"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

func init() {
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 8*1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func sessionFixture(t *testing.T) (*SessionService, *store.AccountStore) {
	t.Helper()

	credential, err := HashCredential("password")
	assert.NoError(t, err)

	s := store.NewAccountStore(store.NewMemoryStorage())
	err = s.Load(context.Background(), []models.Account{
		{
			ID:          "acct-1",
			ExternalID:  "E12345",
			DisplayName: "Alex Doe",
			Role:        models.RoleCardholder,
			Credential:  credential,
			LastUpdated: time.Now().UTC(),
		},
		{
			ID:          "admin-1",
			ExternalID:  "A00001",
			DisplayName: "Main Admin",
			Role:        models.RoleAdmin,
			LastUpdated: time.Now().UTC(),
		},
	})
	assert.NoError(t, err)

	return NewSessionService(s, nil), s
}

func TestSessionLogin(t *testing.T) {
	t.Run("cardholder with correct credential", func(t *testing.T) {
		svc, accounts := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"acct-1","credential":"password"}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp SessionResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "acct-1", resp.Account.ID)
		assert.Equal(t, "E12345", resp.Account.ExternalID)

		current, err := accounts.Session(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "acct-1", current)
	})

	t.Run("cardholder with wrong credential", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"acct-1","credential":"wrong"}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin authenticates by selection", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"admin-1"}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("external id resolves too", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"E12345","credential":"password"}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"nobody"}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("credential never serialized", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"acct-1","credential":"password"}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.NotContains(t, w.Body.String(), "credential")
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login",
			strings.NewReader(`{"accountId":"acct-1","isAdmin":true}`))
		w := httptest.NewRecorder()
		svc.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSessionCurrent(t *testing.T) {
	t.Run("returns the token subject", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/session/current", nil)
		ctx := context.WithValue(req.Context(), middleware.AccountIDKey, "acct-1")
		w := httptest.NewRecorder()
		svc.Current(w, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp SessionAccount
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Alex Doe", resp.DisplayName)
	})

	t.Run("unauthorized without subject", func(t *testing.T) {
		svc, _ := sessionFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/session/current", nil)
		w := httptest.NewRecorder()
		svc.Current(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestSessionLogout(t *testing.T) {
	svc, accounts := sessionFixture(t)
	assert.NoError(t, accounts.SetSession(context.Background(), "acct-1"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/logout", nil)
	w := httptest.NewRecorder()
	svc.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	current, _ := accounts.Session(context.Background())
	assert.Empty(t, current)
}

func TestCredentialHashing(t *testing.T) {
	hash, err := HashCredential("password")
	assert.NoError(t, err)
	assert.Contains(t, hash, "$")

	assert.True(t, verifyCredential("password", hash))
	assert.False(t, verifyCredential("wrong", hash))
	assert.False(t, verifyCredential("password", "not-a-valid-hash"))

	// Fresh salt per hash.
	other, err := HashCredential("password")
	assert.NoError(t, err)
	assert.NotEqual(t, hash, other)
}
