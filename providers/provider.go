package providers

import (
	"context"
	"errors"
)

// Sentinel errors mapped from the payment network's responses. Callers decide
// the HTTP status for each.
var (
	// ErrPaymentNotFound means the paymentId is unknown to the network.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentAlreadyFinalized means approve/complete was already done.
	ErrPaymentAlreadyFinalized = errors.New("payment already finalized")
	// ErrPaymentNotApproved means complete was called before approve.
	ErrPaymentNotApproved = errors.New("payment not approved")
	// ErrReceiptMismatch means the txid does not match the payment.
	ErrReceiptMismatch = errors.New("transaction receipt mismatch")
	// ErrProviderUnavailable covers transport failures and 5xx responses.
	ErrProviderUnavailable = errors.New("payment network unavailable")
	// ErrInvalidAccessToken means the user bearer token failed verification.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// PiUser is the identity returned by the Pi platform for a bearer token.
type PiUser struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// PaymentProvider is the server-side contract against the external payment
// network. The network deduplicates by paymentID, so every call is idempotent
// from the caller's perspective.
type PaymentProvider interface {
	// CreatePayment requests a new app-to-user payment and returns its id.
	CreatePayment(ctx context.Context, payerUID string, amount float64, memo string, metadata map[string]string) (string, error)

	// Approve signals server-side acceptance of a wallet-initiated payment.
	// Must precede Complete for the same paymentID.
	Approve(ctx context.Context, paymentID string) error

	// Complete finalizes the payment on-chain given the transfer txid.
	Complete(ctx context.Context, paymentID, txid string) error
}

// IdentityVerifier resolves a user bearer credential to a stable identity.
type IdentityVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*PiUser, error)
}
