package services

import (
	"loyalty-points-system/models"

	"gorm.io/gorm"
)

// HistoryService is the read side of the ledger. Writes happen only inside
// engine transactions; this never mutates anything.
type HistoryService struct {
	DB *gorm.DB
}

func NewHistoryService(db *gorm.DB) *HistoryService {
	return &HistoryService{DB: db}
}

// ListForUser returns a user's transactions newest-first with pagination.
func (s *HistoryService) ListForUser(userID string, limit, offset int) ([]models.Transaction, int64, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.DB.Model(&models.Transaction{}).
		Where("external_user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, storeErr(err)
	}

	var txs []models.Transaction
	err := s.DB.Where("external_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return txs, total, nil
}

// ListRecent returns the latest transactions across all users for the staff
// overview.
func (s *HistoryService) ListRecent(limit int) ([]models.Transaction, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var txs []models.Transaction
	err := s.DB.Order("created_at DESC").Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return txs, nil
}

// CountByType returns how many transactions of the given type a user has.
// The achievement evaluator uses this for visit/redemption criteria.
func (s *HistoryService) CountByType(userID string, txType models.TransactionType) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Transaction{}).
		Where("external_user_id = ? AND type = ?", userID, txType).
		Count(&count).Error
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}
