package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kwiatekh/docpanel-be/internal/auth"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for registration, login and account
// self-service.
type UserHandler struct {
	users         services.UserServiceProvider
	sessions      *auth.Service
	audit         services.AuditServiceProvider
	secureCookies bool
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users services.UserServiceProvider, sessions *auth.Service, audit services.AuditServiceProvider, secureCookies bool) *UserHandler {
	return &UserHandler{users: users, sessions: sessions, audit: audit, secureCookies: secureCookies}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	AccessKey        string `json:"accessKey"`
	ReferralCode     string `json:"referralCode,omitempty"`
	MarkTutorialSeen bool   `json:"markTutorialSeen,omitempty"`
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles new user registration gated by an access key.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.users.Register(payload.Username, payload.Password, payload.AccessKey, payload.ReferralCode, payload.MarkTutorialSeen)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed registration attempt")
		h.audit.Record("user.register.fail", "warn", "Registration rejected", nil)
		serviceError(w, err)
		return
	}

	h.audit.Record("user.register", "info", "User registered", &result.User.Username)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user": result.User,
		// Shown exactly once; the server keeps it only for recovery matching.
		"recoveryToken":    result.RecoveryToken,
		"referralCredited": result.ReferralCredited,
	})
}

// Login handles user authentication and session token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.Authenticate(payload.Username, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("username", payload.Username).Msg("Failed authentication attempt")
		h.audit.Record("user.login.fail", "warn", "Login rejected", nil)
		serviceError(w, err)
		return
	}

	token, err := h.sessions.MintUserToken(user.Username)
	if err != nil {
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to mint session token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.audit.Record("user.login", "info", "User logged in", &user.Username)
	setSessionCookie(w, token, h.secureCookies)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// GetMe retrieves the currently authenticated user from the session.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve session identity from context")
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}

	user, err := h.users.GetUser(claims.Subject)
	if err != nil {
		log.Error().Err(err).Str("username", claims.Subject).Msg("User from session not found in DB")
		serviceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// MarkTutorialSeen records that the user has dismissed the intro tutorial.
func (h *UserHandler) MarkTutorialSeen(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Could not retrieve user from token", http.StatusInternalServerError)
		return
	}
	if err := h.users.MarkTutorialSeen(claims.Subject); err != nil {
		serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset issues a reset token for out-of-band delivery. The
// response is identical whether or not the username exists.
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.users.RequestPasswordReset(payload.Username)
	if err != nil && err != services.ErrNotFound {
		log.Error().Err(err).Msg("Failed to issue password reset token")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if err == nil {
		h.audit.Record("user.password_reset.request", "info", "Password reset requested", &payload.Username)
		// The token would normally leave through an out-of-band channel;
		// there is no mail collaborator, so it is logged for the operator.
		log.Info().Str("username", payload.Username).Str("token", token).Msg("Password reset token issued")
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "If the account exists, a reset token has been issued"})
}

// ResetPassword consumes a single-use reset token.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.users.ResetPassword(payload.Token, payload.NewPassword); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// RecoveryReset resets a password using the permanent recovery token from
// registration.
func (h *UserHandler) RecoveryReset(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username      string `json:"username"`
		RecoveryToken string `json:"recoveryToken"`
		NewPassword   string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.users.ResetPasswordWithRecoveryToken(payload.Username, payload.RecoveryToken, payload.NewPassword); err != nil {
		serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// setSessionCookie attaches the session token as an http-only cookie.
func setSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
}
