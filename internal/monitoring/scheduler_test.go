package monitoring

import (
	"testing"
	"time"

	"github.com/kwiatekh/docpanel-be/internal/database"
	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceSweep(t *testing.T) {
	db, err := database.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.Migrate(db))

	keys := services.NewAccessKeyService(db)
	announcements := services.NewAnnouncementService(db, nil)
	notifications := services.NewNotificationService(db, nil)
	users := services.NewUserService(db, keys, notifications, nil, 4)

	// An expired-but-active key, and an expired announcement.
	key, err := keys.Generate("stale", 1)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE access_keys SET expires_at = ? WHERE key = ?",
		time.Now().Add(-time.Hour), key.Key)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = announcements.Create("Over", "finished maintenance window", "maintenance", &past)
	require.NoError(t, err)

	m, err := NewMaintenance("*/15 * * * *", keys, announcements, users)
	require.NoError(t, err)
	m.Sweep()

	all, err := keys.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)

	active, err := announcements.GetActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestNewMaintenanceRejectsBadSchedule(t *testing.T) {
	_, err := NewMaintenance("not a cron spec", nil, nil, nil)
	assert.Error(t, err)
}
