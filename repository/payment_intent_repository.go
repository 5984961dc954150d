package repository

import (
	"context"

	"listing-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentIntentRepository defines data access for payment saga records.
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByPaymentID(ctx context.Context, paymentID string) (*models.PaymentIntent, error)
	UpdateStatus(ctx context.Context, paymentID string, status models.IntentStatus) error
}

// GormPaymentIntentRepository implements PaymentIntentRepository using GORM.
type GormPaymentIntentRepository struct {
	db *gorm.DB
}

// NewGormPaymentIntentRepository creates a new GormPaymentIntentRepository.
func NewGormPaymentIntentRepository(db *gorm.DB) PaymentIntentRepository {
	return &GormPaymentIntentRepository{db: db}
}

// Create records a payment intent. A duplicate paymentID is silently
// ignored; the payment network already deduplicates by that id.
func (r *GormPaymentIntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(intent).Error
}

// FindByPaymentID retrieves the intent for a payment.
func (r *GormPaymentIntentRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// UpdateStatus advances the intent status for a payment.
func (r *GormPaymentIntentRepository) UpdateStatus(ctx context.Context, paymentID string, status models.IntentStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("payment_id = ?", paymentID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
