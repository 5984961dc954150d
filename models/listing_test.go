package models_test

import (
	"testing"
	"time"

	"listing-service/models"

	"github.com/stretchr/testify/assert"
)

func draft() *models.ListingDraft {
	return &models.ListingDraft{
		Title:       "Garden table",
		Description: "Solid wood",
		PriceInPi:   4,
		Category:    models.CategoryHome,
		Country:     "FR",
		Region:      "IDF",
		PhoneNumber: "+33150000",
	}
}

func TestDraftValidate(t *testing.T) {
	assert.NoError(t, draft().Validate())

	bad := draft()
	bad.Category = "not-a-category"
	assert.Error(t, bad.Validate())

	bad = draft()
	bad.PriceInPi = 0
	assert.Error(t, bad.Validate())

	bad = draft()
	bad.Images = make(models.ImageList, models.MaxListingImages+1)
	assert.Error(t, bad.Validate())
}

func TestNewActiveListing_DerivesExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 30 * 24 * time.Hour

	l := models.NewActiveListing(draft(), "U1", "pay-1", now, ttl)

	assert.Equal(t, models.PaymentStatePaid, l.PaymentState)
	assert.Equal(t, models.VisibilityActive, l.Visibility)
	assert.Equal(t, now, l.CreatedAt)
	assert.Equal(t, now.Add(ttl), l.ExpiresAt)
	assert.Equal(t, "U1", l.SellerUID)
	assert.Equal(t, "pay-1", l.PaymentID)
	assert.NotEqual(t, l.ID.String(), "00000000-0000-0000-0000-000000000000")
}
