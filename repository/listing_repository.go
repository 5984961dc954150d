package repository

import (
	"context"
	"time"

	"listing-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingRepository defines data access for listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Listing, error)
	FindActive(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// GormListingRepository implements ListingRepository using GORM.
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository.
func NewGormListingRepository(db *gorm.DB) ListingRepository {
	return &GormListingRepository{db: db}
}

// Create inserts a new listing. The unique index on payment_id guards
// against double-insertion when a completion is delivered twice.
func (r *GormListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// FindByID retrieves a listing by its id.
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindByPaymentID retrieves the listing persisted for a payment, if any.
func (r *GormListingRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&listing).Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindActive retrieves currently visible listings newest-first, optionally
// narrowed by country and category.
func (r *GormListingRepository) FindActive(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, error) {
	var listings []models.Listing
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("visibility = ?", models.VisibilityActive)

	if filter.Country != "" {
		query = query.Where("country = ?", filter.Country)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&listings).Error; err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

// Delete removes a listing row.
func (r *GormListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Listing{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ExpireStale transitions every active listing past its expiry into the
// expired state in one batch update and returns how many rows changed.
// Expiration is monotonic, so re-running with no newly-expired rows is a
// no-op.
func (r *GormListingRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("visibility = ? AND expires_at < ?", models.VisibilityActive, now).
		Update("visibility", models.VisibilityExpired)
	return result.RowsAffected, result.Error
}
