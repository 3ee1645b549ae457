package monitoring

import (
	"time"

	"github.com/kwiatekh/docpanel-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Maintenance runs the periodic store sweeps: deactivating expired access
// keys and announcements and clearing stale password-reset tokens. Key
// validation itself is a pure read, so expiry only becomes visible in the
// rows through this sweep or at consumption time.
type Maintenance struct {
	keys          services.AccessKeyServiceProvider
	announcements services.AnnouncementServiceProvider
	users         services.UserServiceProvider
	schedule      cron.Schedule
	done          chan bool
}

// NewMaintenance creates a maintenance runner from a standard cron
// expression.
func NewMaintenance(spec string, keys services.AccessKeyServiceProvider, announcements services.AnnouncementServiceProvider, users services.UserServiceProvider) (*Maintenance, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &Maintenance{
		keys:          keys,
		announcements: announcements,
		users:         users,
		schedule:      schedule,
		done:          make(chan bool),
	}, nil
}

// Run starts the maintenance loop. It sweeps once immediately, then at
// every cron tick until Stop is called.
func (m *Maintenance) Run() {
	log.Info().Msg("Starting maintenance scheduler")
	m.Sweep()

	for {
		next := m.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-m.done:
			timer.Stop()
			log.Info().Msg("Stopping maintenance scheduler")
			return
		case <-timer.C:
			m.Sweep()
		}
	}
}

// Stop halts the maintenance loop.
func (m *Maintenance) Stop() {
	m.done <- true
}

// Sweep runs every maintenance task once.
func (m *Maintenance) Sweep() {
	if n, err := m.keys.DeactivateExpired(); err != nil {
		log.Error().Err(err).Msg("Maintenance: failed to deactivate expired access keys")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Maintenance: deactivated expired access keys")
	}

	if n, err := m.announcements.DeactivateExpired(); err != nil {
		log.Error().Err(err).Msg("Maintenance: failed to deactivate expired announcements")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Maintenance: deactivated expired announcements")
	}

	if n, err := m.users.ClearExpiredResetTokens(); err != nil {
		log.Error().Err(err).Msg("Maintenance: failed to clear expired reset tokens")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("Maintenance: cleared expired password reset tokens")
	}
}
