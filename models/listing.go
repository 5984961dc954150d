package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentState tracks how far a listing's fee has progressed through the
// Pi payment network.
type PaymentState string

const (
	PaymentStateUnpaid   PaymentState = "unpaid"
	PaymentStateApproved PaymentState = "approved"
	PaymentStatePaid     PaymentState = "paid"
)

// Visibility controls whether a listing appears in the public query set.
type Visibility string

const (
	VisibilityInactive Visibility = "inactive"
	VisibilityActive   Visibility = "active"
	VisibilityExpired  Visibility = "expired"
)

// Category is the fixed set of listing categories.
type Category string

const (
	CategoryVehicles    Category = "vehicles"
	CategoryElectronics Category = "electronics"
	CategoryRealEstate  Category = "real_estate"
	CategoryFashion     Category = "fashion"
	CategoryHome        Category = "home"
	CategoryServices    Category = "services"
	CategoryOther       Category = "other"
)

// ValidCategory reports whether c is one of the known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryVehicles, CategoryElectronics, CategoryRealEstate,
		CategoryFashion, CategoryHome, CategoryServices, CategoryOther:
		return true
	}
	return false
}

// MaxListingImages caps the number of image URIs per listing.
const MaxListingImages = 6

// ImageList stores an ordered list of image URIs as a JSONB column.
type ImageList []string

func (l ImageList) Value() (driver.Value, error) {
	if l == nil {
		l = ImageList{}
	}
	return json.Marshal(l)
}

func (l *ImageList) Scan(value interface{}) error {
	if value == nil {
		*l = ImageList{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported image list type %T", value)
	}
	return json.Unmarshal(b, l)
}

// Listing represents a published classified ad. Rows only ever exist in the
// paid/active state or later; nothing is persisted before the listing fee
// completes.
type Listing struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PaymentID    string       `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	SellerUID    string       `gorm:"type:varchar(64);not null;index" json:"sellerUid"`
	Title        string       `gorm:"type:varchar(140);not null" json:"title"`
	Description  string       `gorm:"type:text;not null" json:"description"`
	PriceInPi    float64      `gorm:"not null" json:"priceInPi"`
	Category     Category     `gorm:"type:varchar(32);not null;index:idx_listings_query,priority:3" json:"category"`
	Make         string       `gorm:"type:varchar(64)" json:"make,omitempty"`
	Model        string       `gorm:"type:varchar(64)" json:"model,omitempty"`
	Year         int          `json:"year,omitempty"`
	Mileage      int          `json:"mileage,omitempty"`
	Country      string       `gorm:"type:varchar(2);not null;index:idx_listings_query,priority:2" json:"country"`
	Region       string       `gorm:"type:varchar(64);not null" json:"region"`
	PhoneNumber  string       `gorm:"type:varchar(32);not null" json:"phoneNumber"`
	Images       ImageList    `gorm:"type:jsonb" json:"images"`
	PaymentState PaymentState `gorm:"type:varchar(16);not null" json:"-"`
	Visibility   Visibility   `gorm:"type:varchar(16);not null;index:idx_listings_expiry,priority:1;index:idx_listings_query,priority:1" json:"-"`
	CreatedAt    time.Time    `gorm:"autoCreateTime;index:idx_listings_query,priority:4,sort:desc" json:"created_at"`
	ExpiresAt    time.Time    `gorm:"not null;index:idx_listings_expiry,priority:2" json:"expires_at"`
}

// ListingDraft is the seller-supplied portion of a listing, carried on the
// payment completion request. Everything else on Listing is derived
// server-side.
type ListingDraft struct {
	Title       string    `json:"title" binding:"required,min=3,max=140"`
	Description string    `json:"description" binding:"required"`
	PriceInPi   float64   `json:"priceInPi" binding:"required,gt=0"`
	Category    Category  `json:"category" binding:"required"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	Mileage     int       `json:"mileage"`
	Country     string    `json:"country" binding:"required,len=2"`
	Region      string    `json:"region" binding:"required"`
	PhoneNumber string    `json:"phoneNumber" binding:"required"`
	Images      ImageList `json:"images" binding:"max=6"`
}

// Validate enforces draft invariants that binding tags cannot express.
func (d *ListingDraft) Validate() error {
	if !ValidCategory(d.Category) {
		return fmt.Errorf("unknown category %q", d.Category)
	}
	if len(d.Images) > MaxListingImages {
		return fmt.Errorf("at most %d images allowed", MaxListingImages)
	}
	if d.PriceInPi <= 0 {
		return fmt.Errorf("price must be positive")
	}
	return nil
}

// NewActiveListing builds a paid, active listing for a completed payment.
// ExpiresAt is always derived from the creation time, never caller-supplied.
func NewActiveListing(draft *ListingDraft, sellerUID, paymentID string, now time.Time, ttl time.Duration) *Listing {
	return &Listing{
		ID:           uuid.New(),
		PaymentID:    paymentID,
		SellerUID:    sellerUID,
		Title:        draft.Title,
		Description:  draft.Description,
		PriceInPi:    draft.PriceInPi,
		Category:     draft.Category,
		Make:         draft.Make,
		Model:        draft.Model,
		Year:         draft.Year,
		Mileage:      draft.Mileage,
		Country:      draft.Country,
		Region:       draft.Region,
		PhoneNumber:  draft.PhoneNumber,
		Images:       draft.Images,
		PaymentState: PaymentStatePaid,
		Visibility:   VisibilityActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

// ListingFilter narrows the public listing query.
type ListingFilter struct {
	Country  string
	Category Category
}

// QuoteRequest asks for the fee a seller must pay to publish a listing.
type QuoteRequest struct {
	PiUID string `json:"piUid" binding:"required"`
}

// QuoteResponse mirrors the payment data a Pi wallet needs to start the
// listing fee payment.
type QuoteResponse struct {
	Amount   float64         `json:"amount"`
	Memo     string          `json:"memo"`
	Metadata PaymentMetadata `json:"metadata"`
}

// PaymentMetadata is echoed back by the Pi network on payment callbacks and
// correlates a payment with its purpose.
type PaymentMetadata struct {
	Type  string `json:"type"`
	PiUID string `json:"piUid"`
}

// CompletePaymentRequest finalizes a listing fee payment and publishes the ad.
type CompletePaymentRequest struct {
	TxID  string       `json:"txid" binding:"required"`
	Draft ListingDraft `json:"listing" binding:"required"`
}

// RemoveListingRequest asks to take down a listing the caller owns.
type RemoveListingRequest struct {
	PiUID string `json:"piUid" binding:"required"`
}
