package repository

import (
	"context"

	"listing-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines data access for market participants.
type UserRepository interface {
	Upsert(ctx context.Context, user *models.User) error
	FindByPiUID(ctx context.Context, piUID string) (*models.User, error)
	SetWelcomeCreditPaymentID(ctx context.Context, piUID, paymentID string) error
}

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

// Upsert inserts the user or updates its mutable profile attributes when a
// row with the same piUid already exists.
func (r *GormUserRepository) Upsert(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pi_uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "country", "updated_at"}),
		}).
		Create(user).Error
}

// FindByPiUID retrieves a user by its Pi uid.
func (r *GormUserRepository) FindByPiUID(ctx context.Context, piUID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("pi_uid = ?", piUID).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetWelcomeCreditPaymentID records the one-time welcome credit payment.
func (r *GormUserRepository) SetWelcomeCreditPaymentID(ctx context.Context, piUID, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("pi_uid = ?", piUID).
		Update("welcome_credit_payment_id", paymentID).
		Error
}
