package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	users, keys, notifications := newTestUserService(t, db)

	result := registerTestUser(t, users, keys, "alice", "correct-horse")
	assert.Equal(t, "alice", result.User.Username)
	assert.NotEmpty(t, result.RecoveryToken)
	assert.Empty(t, result.User.PasswordHash)

	// Registration leaves a welcome notification behind.
	ns, err := notifications.GetForUser("alice")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.False(t, ns[0].IsRead)

	user, err := users.Authenticate("alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	require.NotNil(t, user.LastLogin)
	assert.WithinDuration(t, time.Now(), *user.LastLogin, time.Minute)
}

func TestLoginFailureIsUniform(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "correct-horse")

	_, errWrongPassword := users.Authenticate("alice", "wrong")
	_, errNoSuchUser := users.Authenticate("nobody", "wrong")

	assert.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, errNoSuchUser, ErrInvalidCredentials)
	// The caller-visible error must not reveal which case happened.
	assert.Equal(t, errNoSuchUser.Error(), errWrongPassword.Error())
}

func TestUnknownUserPadMatchesConfiguredCost(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyService(db)
	notifications := NewNotificationService(db, nil)
	users := NewUserService(db, keys, notifications, nil, bcrypt.MinCost+2)

	// The pad compared against for unknown usernames must cost the same
	// as a real hash, or rejection timing reveals whether the user exists.
	cost, err := bcrypt.Cost(users.dummyHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+2, cost)
}

func TestRegisterValidation(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)

	key, err := keys.Generate("validation", 1)
	require.NoError(t, err)

	cases := []struct {
		name     string
		username string
		password string
		key      string
		want     error
	}{
		{"short username", "ab", "password", key.Key, ErrValidation},
		{"short password", "validname", "pw", key.Key, ErrValidation},
		{"missing key", "validname", "password", "", ErrInvalidAccessKey},
		{"unknown key", "validname", "password", "bogus", ErrInvalidAccessKey},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := users.Register(tc.username, tc.password, tc.key, "", false)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// None of the rejects consumed the key.
	assert.NoError(t, keys.Validate(key.Key))
}

func TestRegisterUsernameTaken(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "password1")

	key, err := keys.Generate("second key", 1)
	require.NoError(t, err)

	_, err = users.Register("alice", "password2", key.Key, "", false)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	// The loser's key must survive the failed attempt.
	assert.NoError(t, keys.Validate(key.Key))
}

func TestRegisterKeyLifecycleScenario(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)

	key, err := keys.Generate("one day", 1)
	require.NoError(t, err)

	_, err = users.Register("alice", "password1", key.Key, "", false)
	require.NoError(t, err)

	// The key is consumed: inactive with exactly one recorded use.
	assert.ErrorIs(t, keys.Validate(key.Key), ErrInvalidAccessKey)
	all, err := keys.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].UsedCount)
	assert.False(t, all[0].IsActive)

	// And no one else can register with it.
	_, err = users.Register("bob", "password2", key.Key, "", false)
	assert.ErrorIs(t, err, ErrInvalidAccessKey)
}

func TestConcurrentRegisterOnOneKey(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)

	key, err := keys.Generate("contended", 1)
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = users.Register(fmt.Sprintf("user%02d", i), "password1", key.Key, "", false)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrInvalidAccessKey)
		}
	}
	assert.Equal(t, 1, winners)

	// Exactly one user row exists; the losers left nothing behind.
	var userCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount))
	assert.Equal(t, 1, userCount)
}

func TestReferralCredit(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "referrer", "password1")

	key, err := keys.Generate("referred", 1)
	require.NoError(t, err)
	result, err := users.Register("newuser", "password2", key.Key, "referrer", false)
	require.NoError(t, err)
	assert.True(t, result.ReferralCredited)

	referrer, err := users.GetUser("referrer")
	require.NoError(t, err)
	assert.Equal(t, 1, referrer.HubertCoins)

	// Self-referral and unknown codes credit nothing.
	key2, err := keys.Generate("self", 1)
	require.NoError(t, err)
	result, err = users.Register("selfref", "password3", key2.Key, "selfref", false)
	require.NoError(t, err)
	assert.False(t, result.ReferralCredited)
}

func TestPasswordResetFlow(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "old-password")

	token, err := users.RequestPasswordReset("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The raw token never touches the store.
	var stored string
	require.NoError(t, db.QueryRow("SELECT password_reset_hash FROM users WHERE username = 'alice'").Scan(&stored))
	assert.NotEqual(t, token, stored)

	require.NoError(t, users.ResetPassword(token, "new-password"))

	_, err = users.Authenticate("alice", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = users.Authenticate("alice", "new-password")
	assert.NoError(t, err)

	// Single use: the same token cannot be replayed.
	assert.ErrorIs(t, users.ResetPassword(token, "another-password"), ErrInvalidOrExpiredToken)
}

func TestPasswordResetExpiredToken(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "old-password")

	token, err := users.RequestPasswordReset("alice")
	require.NoError(t, err)

	_, err = db.Exec("UPDATE users SET password_reset_expires = ? WHERE username = 'alice'",
		time.Now().Add(-time.Minute))
	require.NoError(t, err)

	assert.ErrorIs(t, users.ResetPassword(token, "new-password"), ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, users.ResetPassword("bogus-token", "new-password"), ErrInvalidOrExpiredToken)
}

func TestRecoveryTokenReset(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	result := registerTestUser(t, users, keys, "alice", "old-password")

	err := users.ResetPasswordWithRecoveryToken("alice", result.RecoveryToken, "new-password")
	require.NoError(t, err)

	_, err = users.Authenticate("alice", "new-password")
	assert.NoError(t, err)

	assert.ErrorIs(t,
		users.ResetPasswordWithRecoveryToken("alice", "wrong-token", "other-password"),
		ErrInvalidOrExpiredToken)
}

func TestDeleteUserCascades(t *testing.T) {
	db := newTestDB(t)
	users, keys, notifications := newTestUserService(t, db)
	files := NewFileService(db)

	registerTestUser(t, users, keys, "alice", "password1")
	require.NoError(t, files.AddOrUpdate("alice", "doc.pdf", "/data/alice/doc.pdf", 2048, "abc123"))
	require.NoError(t, notifications.Notify("alice", "extra notification"))

	require.NoError(t, users.DeleteUser("alice", false))

	var fileCount, notificationCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM files WHERE username = 'alice'").Scan(&fileCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM notifications WHERE username = 'alice'").Scan(&notificationCount))
	assert.Zero(t, fileCount)
	assert.Zero(t, notificationCount)

	// The username and a fresh key are usable again.
	registerTestUser(t, users, keys, "alice", "password2")
}

func TestDeleteUserRemovesBackingFiles(t *testing.T) {
	db := newTestDB(t)
	keys := NewAccessKeyService(db)
	notifications := NewNotificationService(db, nil)
	remover := &fakeFileRemover{}
	users := NewUserService(db, keys, notifications, remover, 4)
	files := NewFileService(db)

	registerTestUser(t, users, keys, "alice", "password1")
	require.NoError(t, files.AddOrUpdate("alice", "doc.pdf", "/data/alice/doc.pdf", 2048, ""))

	require.NoError(t, users.DeleteUser("alice", true))
	assert.Equal(t, []string{"/data/alice/doc.pdf"}, remover.removed)
}

type fakeFileRemover struct {
	removed []string
}

func (f *fakeFileRemover) Remove(filepath string) error {
	f.removed = append(f.removed, filepath)
	return nil
}

func TestToggleUserStatusBlocksLogin(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "password1")

	active, err := users.ToggleUserStatus("alice")
	require.NoError(t, err)
	assert.False(t, active)

	_, err = users.Authenticate("alice", "password1")
	assert.ErrorIs(t, err, ErrAccountDisabled)

	active, err = users.ToggleUserStatus("alice")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = users.ToggleUserStatus("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateHubertCoins(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "password1")

	balance, err := users.UpdateHubertCoins("alice", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)

	balance, err = users.UpdateHubertCoins("alice", -3)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	_, err = users.UpdateHubertCoins("alice", -10)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = users.UpdateHubertCoins("nobody", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearExpiredResetTokens(t *testing.T) {
	db := newTestDB(t)
	users, keys, _ := newTestUserService(t, db)
	registerTestUser(t, users, keys, "alice", "password1")
	registerTestUser(t, users, keys, "bob", "password2")

	_, err := users.RequestPasswordReset("alice")
	require.NoError(t, err)
	bobToken, err := users.RequestPasswordReset("bob")
	require.NoError(t, err)

	_, err = db.Exec("UPDATE users SET password_reset_expires = ? WHERE username = 'alice'",
		time.Now().Add(-time.Minute))
	require.NoError(t, err)

	n, err := users.ClearExpiredResetTokens()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Bob's token still works.
	assert.NoError(t, users.ResetPassword(bobToken, "new-password"))
}
