package services

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kwiatekh/docpanel-be/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen  = 3
	maxUsernameLen  = 50
	minPasswordLen  = 6
	maxPasswordLen  = 100
	maxAccessKeyLen = 256

	resetTokenTTL = time.Hour
)

// FileRemover removes the backing content of tracked files. The actual
// storage is outside this service; failures are logged, not fatal.
type FileRemover interface {
	Remove(filepath string) error
}

// RegisterResult carries everything a successful registration produces.
type RegisterResult struct {
	User             models.User
	RecoveryToken    string
	ReferralCredited bool
}

// UserServiceProvider defines the interface for user account services.
type UserServiceProvider interface {
	Register(username, password, accessKey, referralCode string, markTutorialSeen bool) (RegisterResult, error)
	Authenticate(username, password string) (models.User, error)
	GetUser(username string) (models.User, error)
	GetAllUsers() ([]models.User, error)
	ToggleUserStatus(username string) (bool, error)
	DeleteUser(username string, deleteFiles bool) error
	UpdateHubertCoins(username string, amount int) (int, error)
	RequestPasswordReset(username string) (string, error)
	ResetPassword(token, newPassword string) error
	ResetPasswordWithRecoveryToken(username, recoveryToken, newPassword string) error
	AdminResetPassword(username, newPassword string) error
	MarkTutorialSeen(username string) error
	ClearExpiredResetTokens() (int64, error)
}

// UserService implements registration, authentication and account
// management on top of the access key service.
type UserService struct {
	db            *sql.DB
	keys          AccessKeyServiceProvider
	notifications NotificationServiceProvider
	fileRemover   FileRemover // optional
	bcryptCost    int

	// dummyHash is compared against when a login targets an unknown user.
	// It is generated at the same cost as real password hashes, so the
	// rejection takes as long as a wrong-password check.
	dummyHash []byte
}

// NewUserService creates a new UserService. fileRemover may be nil when no
// backing file storage is attached.
func NewUserService(db *sql.DB, keys AccessKeyServiceProvider, notifications NotificationServiceProvider, fileRemover FileRemover, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("docpanel-timing-pad"), bcryptCost)
	return &UserService{
		db:            db,
		keys:          keys,
		notifications: notifications,
		fileRemover:   fileRemover,
		bcryptCost:    bcryptCost,
		dummyHash:     dummyHash,
	}
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func checkPasswordLen(password string) error {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d characters", ErrValidation, minPasswordLen, maxPasswordLen)
	}
	return nil
}

// newOpaqueToken returns a url-safe random token of n bytes of entropy.
func newOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Register creates a new account gated by an access key. Key consumption,
// user creation and the optional referral credit happen in one transaction;
// the welcome notification is sent best effort after commit.
func (s *UserService) Register(username, password, accessKey, referralCode string, markTutorialSeen bool) (RegisterResult, error) {
	username = strings.TrimSpace(username)

	if len(accessKey) == 0 || len(accessKey) > maxAccessKeyLen {
		return RegisterResult{}, ErrInvalidAccessKey
	}
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return RegisterResult{}, fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLen, maxUsernameLen)
	}
	if err := checkPasswordLen(password); err != nil {
		return RegisterResult{}, err
	}

	// Cheap pre-checks so most rejects never pay for a bcrypt hash. Both
	// are re-enforced inside the transaction below.
	if err := s.keys.Validate(accessKey); err != nil {
		return RegisterResult{}, err
	}
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&exists); err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if exists > 0 {
		return RegisterResult{}, ErrUsernameTaken
	}

	// Hash before opening the transaction; bcrypt is slow and must not
	// hold a connection or any row lock.
	passwordHash, err := s.hashPassword(password)
	if err != nil {
		return RegisterResult{}, err
	}
	recoveryToken, err := newOpaqueToken(16)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	// The guarded update settles concurrent registrations on the same key:
	// the loser sees ErrInvalidAccessKey here and nothing is committed.
	if err := s.keys.ConsumeInTx(tx, accessKey); err != nil {
		return RegisterResult{}, err
	}

	user := models.User{
		Username:        username,
		PasswordHash:    passwordHash,
		CreatedAt:       time.Now(),
		IsActive:        true,
		AccessKeyUsed:   &accessKey,
		RecoveryToken:   &recoveryToken,
		HasSeenTutorial: markTutorialSeen,
	}

	_, err = tx.Exec(`
		INSERT INTO users (username, password_hash, created_at, is_active, access_key_used, recovery_token, has_seen_tutorial)
		VALUES (?, ?, ?, 1, ?, ?, ?)`,
		user.Username, user.PasswordHash, user.CreatedAt, accessKey, recoveryToken, user.HasSeenTutorial)
	if err != nil {
		if strings.Contains(err.Error(), "users.username") {
			return RegisterResult{}, ErrUsernameTaken
		}
		if strings.Contains(err.Error(), "users.access_key_used") {
			return RegisterResult{}, ErrInvalidAccessKey
		}
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	result := RegisterResult{User: user, RecoveryToken: recoveryToken}

	// Referral bonus: the referral code is the referrer's username.
	if referralCode != "" && referralCode != username {
		res, err := tx.Exec(
			"UPDATE users SET hubert_coins = hubert_coins + 1 WHERE username = ? AND is_active = 1", referralCode)
		if err != nil {
			return RegisterResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			result.ReferralCredited = true
		}
	}

	if err := tx.Commit(); err != nil {
		return RegisterResult{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	// Best effort: a failed welcome notification must not undo the account.
	if err := s.notifications.Notify(username, "Welcome! Thank you for registering."); err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to create welcome notification")
	}

	log.Info().Str("username", username).Msg("User registered")
	result.User.PasswordHash = ""
	return result, nil
}

// Authenticate verifies a user's credentials and updates last_login on
// success. Unknown user and wrong password return the same error.
func (s *UserService) Authenticate(username, password string) (models.User, error) {
	user, err := s.getUserRow(username)
	if err != nil {
		if err == ErrNotFound {
			// Equalize timing with a real compare before rejecting.
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("username", username).Msg("Failed authentication attempt")
		return models.User{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, ErrAccountDisabled
	}

	now := time.Now()
	if _, err := s.db.Exec("UPDATE users SET last_login = ? WHERE username = ?", now, username); err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	user.LastLogin = &now

	user.PasswordHash = ""
	return user, nil
}

const userColumns = `username, password_hash, created_at, is_active, last_login,
	access_key_used, hubert_coins, password_reset_hash, password_reset_expires,
	recovery_token, has_seen_tutorial`

func scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.Username, &user.PasswordHash, &user.CreatedAt, &user.IsActive,
		&user.LastLogin, &user.AccessKeyUsed, &user.HubertCoins, &user.PasswordResetHash,
		&user.PasswordResetExpires, &user.RecoveryToken, &user.HasSeenTutorial)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return user, nil
}

func (s *UserService) getUserRow(username string) (models.User, error) {
	return scanUser(s.db.QueryRow("SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// GetUser retrieves a single user without their password hash.
func (s *UserService) GetUser(username string) (models.User, error) {
	user, err := s.getUserRow(username)
	if err != nil {
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// GetAllUsers retrieves every user, newest first, for the admin panel.
func (s *UserService) GetAllUsers() ([]models.User, error) {
	rows, err := s.db.Query("SELECT " + userColumns + " FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.CreatedAt, &user.IsActive,
			&user.LastLogin, &user.AccessKeyUsed, &user.HubertCoins, &user.PasswordResetHash,
			&user.PasswordResetExpires, &user.RecoveryToken, &user.HasSeenTutorial); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	return users, rows.Err()
}

// ToggleUserStatus flips a user's active flag and returns the new state.
func (s *UserService) ToggleUserStatus(username string) (bool, error) {
	res, err := s.db.Exec("UPDATE users SET is_active = NOT is_active WHERE username = ?", username)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, ErrNotFound
	}
	var active bool
	if err := s.db.QueryRow("SELECT is_active FROM users WHERE username = ?", username).Scan(&active); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return active, nil
}

// DeleteUser removes a user; notifications and file rows cascade with the
// foreign keys. With deleteFiles set, the backing content of tracked files
// is removed best effort through the attached FileRemover.
func (s *UserService) DeleteUser(username string, deleteFiles bool) error {
	if deleteFiles && s.fileRemover != nil {
		rows, err := s.db.Query("SELECT filepath FROM files WHERE username = ?", username)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		var paths []string
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
			paths = append(paths, p)
		}
		rows.Close()
		for _, p := range paths {
			if err := s.fileRemover.Remove(p); err != nil {
				log.Error().Err(err).Str("filepath", p).Msg("Failed to remove file content for deleted user")
			}
		}
	}

	res, err := s.db.Exec("DELETE FROM users WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	log.Info().Str("username", username).Bool("delete_files", deleteFiles).Msg("User deleted")
	return nil
}

// UpdateHubertCoins adjusts a user's balance by amount and returns the new
// balance. The update is guarded so the balance can never go negative.
func (s *UserService) UpdateHubertCoins(username string, amount int) (int, error) {
	res, err := s.db.Exec(
		"UPDATE users SET hubert_coins = hubert_coins + ? WHERE username = ? AND hubert_coins + ? >= 0",
		amount, username, amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&exists); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if exists == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrInsufficientBalance
	}
	var balance int
	if err := s.db.QueryRow("SELECT hubert_coins FROM users WHERE username = ?", username).Scan(&balance); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return balance, nil
}

// RequestPasswordReset issues a single-use reset token valid for one hour.
// Only its SHA-256 digest is stored; the caller delivers the token
// out-of-band.
func (s *UserService) RequestPasswordReset(username string) (string, error) {
	token, err := newOpaqueToken(32)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	expires := time.Now().Add(resetTokenTTL)
	res, err := s.db.Exec(
		"UPDATE users SET password_reset_hash = ?, password_reset_expires = ? WHERE username = ?",
		hashToken(token), expires, username)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// ResetPassword consumes a reset token. The token digest and expiry are
// cleared in the same update that sets the new hash, so a second call with
// the same token fails.
func (s *UserService) ResetPassword(token, newPassword string) error {
	if err := checkPasswordLen(newPassword); err != nil {
		return err
	}

	var username string
	var expires *time.Time
	err := s.db.QueryRow(
		"SELECT username, password_reset_expires FROM users WHERE password_reset_hash = ?",
		hashToken(token)).Scan(&username, &expires)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if expires == nil || time.Now().After(*expires) {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE users SET password_hash = ?, password_reset_hash = NULL, password_reset_expires = NULL
		WHERE username = ? AND password_reset_hash = ?`,
		passwordHash, username, hashToken(token))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Token consumed by a concurrent reset between read and update.
		return ErrInvalidOrExpiredToken
	}
	log.Info().Str("username", username).Msg("Password reset via token")
	return nil
}

// ResetPasswordWithRecoveryToken resets a password using the permanent
// recovery token handed out at registration.
func (s *UserService) ResetPasswordWithRecoveryToken(username, recoveryToken, newPassword string) error {
	if err := checkPasswordLen(newPassword); err != nil {
		return err
	}
	if recoveryToken == "" {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		"UPDATE users SET password_hash = ? WHERE username = ? AND recovery_token = ?",
		passwordHash, username, recoveryToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidOrExpiredToken
	}
	log.Info().Str("username", username).Msg("Password reset via recovery token")
	return nil
}

// AdminResetPassword sets a user's password directly from the admin panel.
func (s *UserService) AdminResetPassword(username, newPassword string) error {
	if err := checkPasswordLen(newPassword); err != nil {
		return err
	}
	passwordHash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	res, err := s.db.Exec("UPDATE users SET password_hash = ? WHERE username = ?", passwordHash, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkTutorialSeen flags that the user has dismissed the intro tutorial.
func (s *UserService) MarkTutorialSeen(username string) error {
	res, err := s.db.Exec("UPDATE users SET has_seen_tutorial = 1 WHERE username = ?", username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredResetTokens drops reset digests whose expiry has passed.
// Run from the maintenance sweep.
func (s *UserService) ClearExpiredResetTokens() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE users SET password_reset_hash = NULL, password_reset_expires = NULL
		WHERE password_reset_expires IS NOT NULL AND password_reset_expires <= ?`, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return res.RowsAffected()
}
