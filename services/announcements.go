package services

import (
	"errors"
	"time"

	"loyalty-points-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnnouncementService manages the staff broadcast banner. Creating an
// announcement also drops a broadcast row into the notification outbox so
// subscribed devices hear about it.
type AnnouncementService struct {
	DB     *gorm.DB
	Notify *NotifyService
}

func NewAnnouncementService(db *gorm.DB, notify *NotifyService) *AnnouncementService {
	return &AnnouncementService{DB: db, Notify: notify}
}

// ListActive returns the announcements the app banner should show.
func (s *AnnouncementService) ListActive() ([]models.Announcement, error) {
	now := time.Now()
	var anns []models.Announcement
	err := s.DB.Where("active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at DESC").
		Find(&anns).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return anns, nil
}

// Create publishes an announcement and queues the broadcast notification.
func (s *AnnouncementService) Create(title, body, createdBy string, expiresAt *time.Time) (*models.Announcement, error) {
	if title == "" {
		return nil, errors.New("title is required")
	}
	ann := &models.Announcement{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Active:    true,
		ExpiresAt: expiresAt,
		CreatedBy: createdBy,
	}
	if err := s.DB.Create(ann).Error; err != nil {
		return nil, storeErr(err)
	}
	if s.Notify != nil {
		if err := s.Notify.Broadcast("announcement", title, body); err != nil {
			return ann, err
		}
	}
	return ann, nil
}

// Deactivate pulls an announcement from the banner.
func (s *AnnouncementService) Deactivate(id string) error {
	res := s.DB.Model(&models.Announcement{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("announcement not found")
	}
	return nil
}
