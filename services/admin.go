package services

import (
	"errors"

	"loyalty-points-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService covers the staff-only data management: role grants,
// announcements and the balances overview. Point adjustments stay on the
// engine; this never writes balance columns itself.
type AdminService struct {
	DB     *gorm.DB
	Notify *NotifyService
}

func NewAdminService(db *gorm.DB, notify *NotifyService) *AdminService {
	return &AdminService{DB: db, Notify: notify}
}

// IsAdmin reports whether the user has a staff role row.
func (s *AdminService) IsAdmin(userID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.StaffRole{}).
		Where("external_user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, storeErr(err)
	}
	return count > 0, nil
}

// AssignRole grants the admin role; granting twice is a no-op.
func (s *AdminService) AssignRole(userID, role, grantedBy string) (*models.StaffRole, error) {
	if role == "" {
		role = "admin"
	}
	existing := models.StaffRole{}
	err := s.DB.Where("external_user_id = ?", userID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err)
	}

	grant := models.StaffRole{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Role:           role,
		GrantedBy:      grantedBy,
	}
	if err := s.DB.Create(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.AssignRole(userID, role, grantedBy)
		}
		return nil, storeErr(err)
	}
	return &grant, nil
}

// RevokeRole removes a user's staff role.
func (s *AdminService) RevokeRole(userID string) error {
	res := s.DB.Where("external_user_id = ?", userID).Delete(&models.StaffRole{})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	return nil
}

// ListAccounts returns all points accounts for the staff users view,
// largest balances first.
func (s *AdminService) ListAccounts(limit, offset int) ([]models.UserPointsAccount, int64, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.DB.Model(&models.UserPointsAccount{}).Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	var accounts []models.UserPointsAccount
	err := s.DB.Order("current_points DESC").
		Limit(limit).Offset(offset).
		Find(&accounts).Error
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return accounts, total, nil
}
