// services/scheduler.go
package services

import (
	"log"
	"time"

	"loyalty-points-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartMaintenanceScheduler runs the periodic housekeeping jobs: expiring
// announcements off the banner and flagging outbox rows that ran out of
// delivery attempts.
func (s *AnnouncementService) StartMaintenanceScheduler(maxAttempts int) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: deactivate expired announcements
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()
			res := s.DB.Model(&models.Announcement{}).
				Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
				Update("active", false)
			if res.Error != nil {
				log.Printf("❌ [Scheduler] DB error expiring announcements: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("✅ [Scheduler] Deactivated %d expired announcement(s)", res.RowsAffected)
			}
		}),
	)

	// Every 5 minutes: fail outbox rows stuck past the attempt budget
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			res := s.DB.Model(&models.NotificationOutbox{}).
				Where("status = ? AND attempts >= ?", models.OutboxStatusPending, maxAttempts).
				Update("status", models.OutboxStatusFailed)
			if res.Error != nil {
				log.Printf("❌ [Scheduler] DB error sweeping outbox: %v", res.Error)
				return
			}
			if res.RowsAffected > 0 {
				log.Printf("⚠️ [Scheduler] Marked %d outbox row(s) as failed", res.RowsAffected)
			}
		}),
	)
}
