package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentPurpose distinguishes the two server-initiated payment flavours.
type PaymentPurpose string

const (
	PurposeListingFee    PaymentPurpose = "listing_fee"
	PurposeWelcomeCredit PaymentPurpose = "welcome_credit"
)

// IntentStatus tracks a payment through the approve/complete handshake.
type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "created"
	IntentStatusApproved  IntentStatus = "approved"
	IntentStatusCompleted IntentStatus = "completed"
)

// PaymentIntent is the saga record for one Pi payment. It is written when the
// server approves the payment and advanced when the payment completes, so the
// complete step can verify ordering without trusting the client.
type PaymentIntent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PaymentID string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"payment_id"`
	PayerUID  string         `gorm:"type:varchar(64);not null;index" json:"payer_uid"`
	Amount    float64        `gorm:"not null" json:"amount"`
	Memo      string         `gorm:"type:varchar(140)" json:"memo"`
	Purpose   PaymentPurpose `gorm:"type:varchar(32);not null" json:"purpose"`
	Status    IntentStatus   `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
