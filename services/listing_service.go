package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"listing-service/models"
	"listing-service/providers"
	"listing-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Fee schedule, fixed by the marketplace.
const (
	ListingFeePi    = 0.5
	WelcomeCreditPi = 0.1

	listingFeeMemo = "CexPi Listing Fee - 0.5 Pi"
)

// persistRetries bounds how often listing persistence is re-attempted after
// the payment has already completed. The payment step itself is never
// re-attempted.
const persistRetries = 3

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// ListingService owns the payment-gated listing lifecycle.
type ListingService interface {
	Quote(sellerUID string) *models.QuoteResponse
	ApprovePayment(ctx context.Context, paymentID, payerUID string) *ServiceError
	CompletePayment(ctx context.Context, paymentID, payerUID, txid string, draft *models.ListingDraft) (*models.Listing, *ServiceError)
	RemoveListing(ctx context.Context, listingID uuid.UUID, requesterUID string) *ServiceError
	ListListings(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, *ServiceError)
}

// listingServiceImpl implements ListingService.
type listingServiceImpl struct {
	listings   repository.ListingRepository
	intents    repository.PaymentIntentRepository
	provider   providers.PaymentProvider
	publisher  EventPublisher
	cache      *listingCache
	listingTTL time.Duration
	logger     *zap.Logger
}

// NewListingService creates a new ListingService. publisher and rdb may be
// nil; events and caching are then skipped.
func NewListingService(
	listings repository.ListingRepository,
	intents repository.PaymentIntentRepository,
	provider providers.PaymentProvider,
	publisher EventPublisher,
	rdb RedisCmdable,
	listingTTL time.Duration,
	logger *zap.Logger,
) ListingService {
	return &listingServiceImpl{
		listings:   listings,
		intents:    intents,
		provider:   provider,
		publisher:  publisher,
		cache:      newListingCache(rdb, logger),
		listingTTL: listingTTL,
		logger:     logger,
	}
}

// Quote returns the fixed listing fee a seller must pay. Deterministic and
// stateless; nothing is persisted until the payment completes.
func (s *listingServiceImpl) Quote(sellerUID string) *models.QuoteResponse {
	return &models.QuoteResponse{
		Amount: ListingFeePi,
		Memo:   listingFeeMemo,
		Metadata: models.PaymentMetadata{
			Type:  string(models.PurposeListingFee),
			PiUID: sellerUID,
		},
	}
}

// ApprovePayment forwards the server-side approval to the payment network
// and records the saga intent. Provider errors propagate unchanged.
func (s *listingServiceImpl) ApprovePayment(ctx context.Context, paymentID, payerUID string) *ServiceError {
	if err := s.provider.Approve(ctx, paymentID); err != nil {
		s.logger.Warn("payment approval failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return providerError(err)
	}

	intent := &models.PaymentIntent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		PayerUID:  payerUID,
		Amount:    ListingFeePi,
		Memo:      listingFeeMemo,
		Purpose:   models.PurposeListingFee,
		Status:    models.IntentStatusApproved,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		// The network has the approval on record; completion still works
		// without the local intent row.
		s.logger.Warn("failed to record payment intent",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	s.logger.Info("payment approved", zap.String("payment_id", paymentID))
	return nil
}

// CompletePayment finalizes the listing fee and, only on success, persists
// the listing as paid and active. Duplicate deliveries of the same payment
// resolve to the already-persisted listing.
func (s *listingServiceImpl) CompletePayment(ctx context.Context, paymentID, payerUID, txid string, draft *models.ListingDraft) (*models.Listing, *ServiceError) {
	// Validate before any external call; a rejected draft must leave no
	// side effects.
	if err := draft.Validate(); err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: err.Error()}
	}

	// Idempotency guard: a listing already keyed on this payment means a
	// previous delivery won the race. Anything other than a clean miss is a
	// storage fault, and finalizing the payment blind could double-charge.
	existing, err := s.listings.FindByPaymentID(ctx, paymentID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("idempotency check failed",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
		return nil, &ServiceError{StatusCode: 500, Message: "Failed to verify payment state"}
	}

	// The intent recorded at approval ties the payment to its payer. A
	// completion arriving under a different identity is rejected without
	// touching the network; a missing intent is tolerated, the approval
	// may have been recorded by another instance.
	if intent, err := s.intents.FindByPaymentID(ctx, paymentID); err == nil {
		if intent.PayerUID != payerUID {
			s.logger.Warn("payment completion by non-payer rejected",
				zap.String("payment_id", paymentID),
			)
			return nil, &ServiceError{StatusCode: 404, Message: "Payment not found"}
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("failed to load payment intent",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	if err := s.provider.Complete(ctx, paymentID, txid); err != nil {
		// A payment the network reports as finalized but with no listing
		// on our side is an earlier run that died between completion and
		// persistence. Retry only the persistence step.
		if !errors.Is(err, providers.ErrPaymentAlreadyFinalized) {
			s.logger.Warn("payment completion failed",
				zap.String("payment_id", paymentID),
				zap.Error(err),
			)
			return nil, providerError(err)
		}
		s.logger.Warn("payment already finalized, resuming listing persistence",
			zap.String("payment_id", paymentID),
		)
	}

	listing := models.NewActiveListing(draft, payerUID, paymentID, time.Now().UTC(), s.listingTTL)

	if svcErr := s.persistPaidListing(ctx, listing); svcErr != nil {
		return nil, svcErr
	}

	if err := s.intents.UpdateStatus(ctx, paymentID, models.IntentStatusCompleted); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("failed to advance payment intent",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	s.publishEvent(ctx, EventListingActivated, map[string]interface{}{
		"listing_id": listing.ID.String(),
		"seller_uid": listing.SellerUID,
		"payment_id": paymentID,
		"expires_at": listing.ExpiresAt,
	})
	s.cache.Invalidate(ctx)

	s.logger.Info("listing activated",
		zap.String("listing_id", listing.ID.String()),
		zap.String("payment_id", paymentID),
		zap.Time("expires_at", listing.ExpiresAt),
	)
	return listing, nil
}

// persistPaidListing stores a listing whose fee has already been taken. A
// failure here is a reconciliation incident: money collected, listing not
// delivered.
func (s *listingServiceImpl) persistPaidListing(ctx context.Context, listing *models.Listing) *ServiceError {
	var err error
	for attempt := 1; attempt <= persistRetries; attempt++ {
		err = s.listings.Create(ctx, listing)
		if err == nil {
			return nil
		}
		if isDuplicateKey(err) {
			// A concurrent completion for the same payment got there first.
			if existing, findErr := s.listings.FindByPaymentID(ctx, listing.PaymentID); findErr == nil {
				*listing = *existing
				return nil
			}
		}
		s.logger.Warn("listing persistence attempt failed",
			zap.Int("attempt", attempt),
			zap.String("payment_id", listing.PaymentID),
			zap.Error(err),
		)
	}

	s.logger.Error("RECONCILIATION: payment completed but listing persistence failed",
		zap.String("payment_id", listing.PaymentID),
		zap.String("seller_uid", listing.SellerUID),
		zap.Error(err),
	)
	s.publishEvent(ctx, EventReconciliationIncident, map[string]interface{}{
		"payment_id": listing.PaymentID,
		"seller_uid": listing.SellerUID,
		"reason":     err.Error(),
	})
	return &ServiceError{StatusCode: 500, Message: "Payment confirmed but listing could not be saved; support has been notified"}
}

// RemoveListing deletes a listing on behalf of its owner. A non-owner gets
// the same not-found answer as a missing id, so existence is never disclosed.
func (s *listingServiceImpl) RemoveListing(ctx context.Context, listingID uuid.UUID, requesterUID string) *ServiceError {
	notFound := &ServiceError{StatusCode: 404, Message: "Listing not found"}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		s.logger.Error("failed to load listing", zap.String("listing_id", listingID.String()), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to remove listing"}
	}

	if listing.SellerUID != requesterUID {
		return notFound
	}

	if err := s.listings.Delete(ctx, listingID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound
		}
		s.logger.Error("failed to delete listing", zap.String("listing_id", listingID.String()), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to remove listing"}
	}

	s.publishEvent(ctx, EventListingRemoved, map[string]interface{}{
		"listing_id": listingID.String(),
		"seller_uid": requesterUID,
	})
	s.cache.Invalidate(ctx)

	s.logger.Info("listing removed", zap.String("listing_id", listingID.String()))
	return nil
}

// ListListings returns active listings newest-first, optionally narrowed by
// country and category.
func (s *listingServiceImpl) ListListings(ctx context.Context, filter models.ListingFilter, page, limit int) ([]models.Listing, int64, *ServiceError) {
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		return nil, 0, &ServiceError{StatusCode: 400, Message: "Unknown category"}
	}

	if listings, total, ok := s.cache.Get(ctx, filter, page, limit); ok {
		return listings, total, nil
	}

	listings, total, err := s.listings.FindActive(ctx, filter, page, limit)
	if err != nil {
		s.logger.Error("failed to query listings", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "Failed to fetch listings"}
	}

	s.cache.Set(ctx, filter, page, limit, listings, total)
	return listings, total, nil
}

// publishEvent sends a marketplace event, tolerating a missing publisher.
func (s *listingServiceImpl) publishEvent(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.publisher == nil {
		s.logger.Warn("event publisher not configured, skipping event", zap.String("event_type", eventType))
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		s.logger.Error("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}

// providerError maps a payment network error onto the HTTP status surfaced
// to the caller. The upstream payload stays inside the wrapped message.
func providerError(err error) *ServiceError {
	switch {
	case errors.Is(err, providers.ErrPaymentNotFound):
		return &ServiceError{StatusCode: 404, Message: err.Error()}
	case errors.Is(err, providers.ErrPaymentAlreadyFinalized),
		errors.Is(err, providers.ErrPaymentNotApproved):
		return &ServiceError{StatusCode: 409, Message: err.Error()}
	case errors.Is(err, providers.ErrReceiptMismatch):
		return &ServiceError{StatusCode: 400, Message: err.Error()}
	default:
		return &ServiceError{StatusCode: 502, Message: err.Error()}
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
