package services

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/middleware"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
)

// SessionService handles session switching. Cardholders with a stored
// credential must present it; vendor and administrator accounts authenticate
// by selection only, exactly as the original device app behaved. That
// weakness is documented, not hidden.
type SessionService struct {
	store     *store.AccountStore
	redis     *redis.Client
	validator *ValidationHelper
}

// LoginRequest selects the session subject, optionally with a credential.
type LoginRequest struct {
	AccountID  string `json:"accountId" validate:"required"`
	Credential string `json:"credential,omitempty"`
}

// SessionResponse carries the issued token and the subject's public fields.
type SessionResponse struct {
	Token   string         `json:"token"`
	Account SessionAccount `json:"account"`
}

// SessionAccount is the credential-free view of an account.
type SessionAccount struct {
	ID          string      `json:"id"`
	ExternalID  string      `json:"employee_id"`
	DisplayName string      `json:"name"`
	Role        models.Role `json:"role"`
	Balance     int64       `json:"balance"`
}

func NewSessionService(accounts *store.AccountStore, redisClient *redis.Client) *SessionService {
	return &SessionService{
		store:     accounts,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// Login switches the active session to the selected account
// @Summary Switch session
// @Description Select the active account, presenting a credential when the account has one
// @Tags session
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} SessionResponse "Session established"
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /session/login [post]
func (s *SessionService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Session switch attempt from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := s.store.Get(req.AccountID)
	if err != nil {
		account, err = s.store.ByExternalID(req.AccountID)
	}
	if err != nil {
		log.Printf("[AUTH] Session switch failed, account not found: %s", req.AccountID)
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	if account.Role == models.RoleCardholder && account.Credential != "" {
		if !verifyCredential(req.Credential, account.Credential) {
			log.Printf("[AUTH] Invalid credential for account %s", account.ID)
			SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
			return
		}
	}

	token, err := generateJWT(account.ID, string(account.Role))
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for %s: %v", account.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	if err := s.store.SetSession(r.Context(), account.ID); err != nil {
		log.Printf("[AUTH] Failed to persist session subject: %v", err)
	}

	log.Printf("[AUTH] Session established for %s (%s)", account.DisplayName, account.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SessionResponse{
		Token:   token,
		Account: publicView(account),
	})
}

// Logout ends the session and blacklists the token
// @Summary Logout
// @Description Clear the active session and blacklist the presented token
// @Tags session
// @Produce json
// @Success 200 {object} map[string]string "Logout successful"
// @Router /session/logout [post]
func (s *SessionService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 {
		token = token[7:] // strip "Bearer "
		if s.redis != nil {
			key := fmt.Sprintf("blacklist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(r.Context(), key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to blacklist token: %v", err)
			}
		}
	}

	if err := s.store.ClearSession(r.Context()); err != nil {
		log.Printf("[AUTH] Failed to clear session subject: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// Current returns the active session subject
// @Summary Current session
// @Description Return the account the presented token belongs to
// @Tags session
// @Produce json
// @Success 200 {object} SessionAccount "Session account"
// @Failure 401 {object} ErrorResponse
// @Router /session/current [get]
func (s *SessionService) Current(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value(middleware.AccountIDKey).(string)
	if !ok || accountID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	account, err := s.store.Get(accountID)
	if err != nil {
		SendErrorResponse(w, "Account not found", StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(publicView(account))
}

func publicView(a *models.Account) SessionAccount {
	return SessionAccount{
		ID:          a.ID,
		ExternalID:  a.ExternalID,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		Balance:     a.Balance,
	}
}

func generateJWT(accountID, role string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"role":       role,
		"exp":        time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// HashCredential hashes a cardholder credential with argon2id for storage.
func HashCredential(credential string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(credential), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyCredential(credential, stored string) bool {
	parts := splitCredential(stored)
	if parts == nil {
		return false
	}
	saltB64, hashB64 := parts[0], parts[1]

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	hash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(credential), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computed)
}

func splitCredential(stored string) []string {
	for i := range stored {
		if stored[i] == '$' {
			return []string{stored[:i], stored[i+1:]}
		}
	}
	return nil
}

// IsBlacklisted reports whether a token was invalidated by logout.
func IsBlacklisted(ctx context.Context, redisClient *redis.Client, token string) bool {
	if redisClient == nil {
		return false
	}
	exists, err := redisClient.Exists(ctx, fmt.Sprintf("blacklist:%s", token)).Result()
	return err == nil && exists > 0
}
