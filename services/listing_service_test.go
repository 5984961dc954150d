package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"listing-service/models"
	"listing-service/providers"
	"listing-service/repository"
	"listing-service/services"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- Mock Listing Repository ---

type mockListingRepo struct {
	byID        map[uuid.UUID]*models.Listing
	byPaymentID map[string]*models.Listing
	createErrs  []error // consumed one per Create call; nil slice means success
	createCalls int
	findErr     error // returned by FindByPaymentID when set
}

func newMockListingRepo() *mockListingRepo {
	return &mockListingRepo{
		byID:        make(map[uuid.UUID]*models.Listing),
		byPaymentID: make(map[string]*models.Listing),
	}
}

func (m *mockListingRepo) Create(_ context.Context, l *models.Listing) error {
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, exists := m.byPaymentID[l.PaymentID]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	cp := *l
	m.byID[l.ID] = &cp
	m.byPaymentID[l.PaymentID] = &cp
	return nil
}

func (m *mockListingRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Listing, error) {
	if l, ok := m.byID[id]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockListingRepo) FindByPaymentID(_ context.Context, paymentID string) (*models.Listing, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if l, ok := m.byPaymentID[paymentID]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockListingRepo) FindActive(_ context.Context, filter models.ListingFilter, _, _ int) ([]models.Listing, int64, error) {
	var result []models.Listing
	for _, l := range m.byID {
		if l.Visibility != models.VisibilityActive {
			continue
		}
		if filter.Country != "" && l.Country != filter.Country {
			continue
		}
		if filter.Category != "" && l.Category != filter.Category {
			continue
		}
		result = append(result, *l)
	}
	return result, int64(len(result)), nil
}

func (m *mockListingRepo) Delete(_ context.Context, id uuid.UUID) error {
	l, ok := m.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.byPaymentID, l.PaymentID)
	delete(m.byID, id)
	return nil
}

func (m *mockListingRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, l := range m.byID {
		if l.Visibility == models.VisibilityActive && l.ExpiresAt.Before(now) {
			l.Visibility = models.VisibilityExpired
			count++
		}
	}
	return count, nil
}

// --- Mock PaymentIntent Repository ---

type mockIntentRepo struct {
	intents map[string]*models.PaymentIntent
}

func newMockIntentRepo() *mockIntentRepo {
	return &mockIntentRepo{intents: make(map[string]*models.PaymentIntent)}
}

func (m *mockIntentRepo) Create(_ context.Context, i *models.PaymentIntent) error {
	if _, exists := m.intents[i.PaymentID]; exists {
		return nil // duplicate paymentID is a no-op, like ON CONFLICT DO NOTHING
	}
	m.intents[i.PaymentID] = i
	return nil
}

func (m *mockIntentRepo) FindByPaymentID(_ context.Context, paymentID string) (*models.PaymentIntent, error) {
	if i, ok := m.intents[paymentID]; ok {
		return i, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockIntentRepo) UpdateStatus(_ context.Context, paymentID string, status models.IntentStatus) error {
	i, ok := m.intents[paymentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	i.Status = status
	return nil
}

// --- Mock Payment Provider ---

type mockProvider struct {
	approveFn     func(paymentID string) error
	completeFn    func(paymentID, txid string) error
	completeCalls int
}

func (m *mockProvider) CreatePayment(_ context.Context, _ string, _ float64, _ string, _ map[string]string) (string, error) {
	return "created-payment", nil
}

func (m *mockProvider) Approve(_ context.Context, paymentID string) error {
	if m.approveFn != nil {
		return m.approveFn(paymentID)
	}
	return nil
}

func (m *mockProvider) Complete(_ context.Context, paymentID, txid string) error {
	m.completeCalls++
	if m.completeFn != nil {
		return m.completeFn(paymentID, txid)
	}
	return nil
}

// --- Mock Event Publisher ---

type mockPublisher struct {
	events []string
}

func (m *mockPublisher) Publish(_ context.Context, eventType string, _ map[string]interface{}) error {
	m.events = append(m.events, eventType)
	return nil
}

// --- Failing Redis stub ---

type failingRedis struct {
	calls int
}

func (r *failingRedis) Get(_ context.Context, _ string) *redis.StringCmd {
	r.calls++
	return redis.NewStringResult("", errors.New("redis: connection refused"))
}

func (r *failingRedis) Set(_ context.Context, _ string, _ interface{}, _ time.Duration) *redis.StatusCmd {
	r.calls++
	return redis.NewStatusResult("", errors.New("redis: connection refused"))
}

func (r *failingRedis) Incr(_ context.Context, _ string) *redis.IntCmd {
	r.calls++
	return redis.NewIntResult(0, errors.New("redis: connection refused"))
}

// --- Helpers ---

func newTestService(listings repository.ListingRepository, intents repository.PaymentIntentRepository, provider providers.PaymentProvider, pub *mockPublisher) services.ListingService {
	logger, _ := zap.NewDevelopment()
	return services.NewListingService(listings, intents, provider, pub, nil, 30*24*time.Hour, logger)
}

func validDraft() *models.ListingDraft {
	return &models.ListingDraft{
		Title:       "2014 Toyota Corolla",
		Description: "Well maintained, one owner",
		PriceInPi:   1200,
		Category:    models.CategoryVehicles,
		Make:        "Toyota",
		Model:       "Corolla",
		Year:        2014,
		Mileage:     90000,
		Country:     "US",
		Region:      "CA",
		PhoneNumber: "+15550100",
		Images:      models.ImageList{"https://img.example/1.jpg"},
	}
}

// --- Tests ---

func TestQuote_FixedFeeAndMetadata(t *testing.T) {
	svc := newTestService(newMockListingRepo(), newMockIntentRepo(), &mockProvider{}, &mockPublisher{})

	quote := svc.Quote("U1")
	assert.Equal(t, 0.5, quote.Amount)
	assert.Equal(t, "listing_fee", quote.Metadata.Type)
	assert.Equal(t, "U1", quote.Metadata.PiUID)
	assert.Contains(t, quote.Memo, "Listing Fee")
}

func TestApprovePayment_RecordsIntent(t *testing.T) {
	intents := newMockIntentRepo()
	svc := newTestService(newMockListingRepo(), intents, &mockProvider{}, &mockPublisher{})

	svcErr := svc.ApprovePayment(context.Background(), "pay-1", "U1")
	require.Nil(t, svcErr)

	intent, err := intents.FindByPaymentID(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, models.IntentStatusApproved, intent.Status)
	assert.Equal(t, 0.5, intent.Amount)
}

func TestApprovePayment_UnknownPayment(t *testing.T) {
	provider := &mockProvider{
		approveFn: func(string) error { return providers.ErrPaymentNotFound },
	}
	svc := newTestService(newMockListingRepo(), newMockIntentRepo(), provider, &mockPublisher{})

	svcErr := svc.ApprovePayment(context.Background(), "X", "U1")
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
}

func TestApprovePayment_NetworkDown(t *testing.T) {
	provider := &mockProvider{
		approveFn: func(string) error { return providers.ErrProviderUnavailable },
	}
	svc := newTestService(newMockListingRepo(), newMockIntentRepo(), provider, &mockPublisher{})

	svcErr := svc.ApprovePayment(context.Background(), "pay-1", "U1")
	require.NotNil(t, svcErr)
	assert.Equal(t, 502, svcErr.StatusCode)
}

func TestCompletePayment_ActivatesListing(t *testing.T) {
	listings := newMockListingRepo()
	pub := &mockPublisher{}
	svc := newTestService(listings, newMockIntentRepo(), &mockProvider{}, pub)

	listing, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)
	require.NotNil(t, listing)

	assert.Equal(t, models.PaymentStatePaid, listing.PaymentState)
	assert.Equal(t, models.VisibilityActive, listing.Visibility)
	assert.Equal(t, "U1", listing.SellerUID)
	assert.Equal(t, listing.CreatedAt.Add(30*24*time.Hour), listing.ExpiresAt)
	assert.Contains(t, pub.events, services.EventListingActivated)

	visible, _, qErr := svc.ListListings(context.Background(), models.ListingFilter{Country: "US"}, 1, 20)
	require.Nil(t, qErr)
	assert.Len(t, visible, 1)
}

func TestCompletePayment_InvalidDraftHasNoSideEffects(t *testing.T) {
	listings := newMockListingRepo()
	provider := &mockProvider{}
	svc := newTestService(listings, newMockIntentRepo(), provider, &mockPublisher{})

	draft := validDraft()
	draft.Category = "weird"

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", draft)
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
	assert.Zero(t, provider.completeCalls, "no external call on validation failure")
	assert.Zero(t, listings.createCalls, "no persistence on validation failure")
}

func TestCompletePayment_ProviderFailureLeavesNoListing(t *testing.T) {
	listings := newMockListingRepo()
	provider := &mockProvider{
		completeFn: func(string, string) error { return providers.ErrPaymentNotApproved },
	}
	svc := newTestService(listings, newMockIntentRepo(), provider, &mockPublisher{})

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.NotNil(t, svcErr)
	assert.Equal(t, 409, svcErr.StatusCode)
	assert.Empty(t, listings.byPaymentID, "no partial writes after a failed completion")
}

func TestCompletePayment_ReceiptMismatch(t *testing.T) {
	provider := &mockProvider{
		completeFn: func(string, string) error { return providers.ErrReceiptMismatch },
	}
	svc := newTestService(newMockListingRepo(), newMockIntentRepo(), provider, &mockPublisher{})

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "bad-tx", validDraft())
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestCompletePayment_DuplicateDeliveryIsIdempotent(t *testing.T) {
	listings := newMockListingRepo()
	provider := &mockProvider{}
	svc := newTestService(listings, newMockIntentRepo(), provider, &mockPublisher{})

	first, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)

	second, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, listings.byPaymentID, 1, "exactly one listing per payment")
	assert.Equal(t, 1, provider.completeCalls, "payment step is not re-attempted")
}

func TestCompletePayment_AlreadyFinalizedResumesPersistence(t *testing.T) {
	// An earlier run completed the payment but died before persisting.
	listings := newMockListingRepo()
	provider := &mockProvider{
		completeFn: func(string, string) error { return providers.ErrPaymentAlreadyFinalized },
	}
	svc := newTestService(listings, newMockIntentRepo(), provider, &mockPublisher{})

	listing, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)
	require.NotNil(t, listing)
	assert.Equal(t, models.VisibilityActive, listing.Visibility)
}

func TestCompletePayment_PersistenceFailureIsReconciliationIncident(t *testing.T) {
	listings := newMockListingRepo()
	listings.createErrs = []error{
		errors.New("storage down"),
		errors.New("storage down"),
		errors.New("storage down"),
	}
	provider := &mockProvider{}
	pub := &mockPublisher{}
	svc := newTestService(listings, newMockIntentRepo(), provider, pub)

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.NotNil(t, svcErr)
	assert.Equal(t, 500, svcErr.StatusCode)
	assert.Equal(t, 1, provider.completeCalls, "payment is taken exactly once")
	assert.Equal(t, 3, listings.createCalls, "persistence alone is retried")
	assert.Contains(t, pub.events, services.EventReconciliationIncident)
}

func TestCompletePayment_TransientPersistenceFailureRecovers(t *testing.T) {
	listings := newMockListingRepo()
	listings.createErrs = []error{errors.New("storage blip"), nil}
	svc := newTestService(listings, newMockIntentRepo(), &mockProvider{}, &mockPublisher{})

	listing, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)
	assert.Equal(t, models.VisibilityActive, listing.Visibility)
	assert.Equal(t, 2, listings.createCalls)
}

func TestRemoveListing_OwnerSucceeds(t *testing.T) {
	listings := newMockListingRepo()
	pub := &mockPublisher{}
	svc := newTestService(listings, newMockIntentRepo(), &mockProvider{}, pub)

	listing, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)

	svcErr = svc.RemoveListing(context.Background(), listing.ID, "U1")
	require.Nil(t, svcErr)
	assert.Contains(t, pub.events, services.EventListingRemoved)

	visible, _, qErr := svc.ListListings(context.Background(), models.ListingFilter{}, 1, 20)
	require.Nil(t, qErr)
	assert.Empty(t, visible)
}

func TestRemoveListing_NonOwnerLooksLikeNotFound(t *testing.T) {
	listings := newMockListingRepo()
	svc := newTestService(listings, newMockIntentRepo(), &mockProvider{}, &mockPublisher{})

	listing, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)

	nonOwner := svc.RemoveListing(context.Background(), listing.ID, "U2")
	missing := svc.RemoveListing(context.Background(), uuid.New(), "U2")

	require.NotNil(t, nonOwner)
	require.NotNil(t, missing)
	assert.Equal(t, missing.StatusCode, nonOwner.StatusCode)
	assert.Equal(t, missing.Message, nonOwner.Message)
}

func TestListListings_FilterByCountryAndCategory(t *testing.T) {
	listings := newMockListingRepo()
	svc := newTestService(listings, newMockIntentRepo(), &mockProvider{}, &mockPublisher{})

	us := validDraft()
	_, svcErr := svc.CompletePayment(context.Background(), "pay-us", "U1", "tx-1", us)
	require.Nil(t, svcErr)

	de := validDraft()
	de.Country = "DE"
	de.Category = models.CategoryElectronics
	_, svcErr = svc.CompletePayment(context.Background(), "pay-de", "U2", "tx-2", de)
	require.Nil(t, svcErr)

	byCountry, total, qErr := svc.ListListings(context.Background(), models.ListingFilter{Country: "DE"}, 1, 20)
	require.Nil(t, qErr)
	assert.Equal(t, int64(1), total)
	require.Len(t, byCountry, 1)
	assert.Equal(t, "DE", byCountry[0].Country)

	byCategory, _, qErr := svc.ListListings(context.Background(), models.ListingFilter{Category: models.CategoryVehicles}, 1, 20)
	require.Nil(t, qErr)
	require.Len(t, byCategory, 1)
	assert.Equal(t, models.CategoryVehicles, byCategory[0].Category)
}

func TestListListings_UnknownCategoryRejected(t *testing.T) {
	svc := newTestService(newMockListingRepo(), newMockIntentRepo(), &mockProvider{}, &mockPublisher{})

	_, _, svcErr := svc.ListListings(context.Background(), models.ListingFilter{Category: "bogus"}, 1, 20)
	require.NotNil(t, svcErr)
	assert.Equal(t, 400, svcErr.StatusCode)
}

func TestActiveImpliesPaid(t *testing.T) {
	listings := newMockListingRepo()
	svc := newTestService(listings, newMockIntentRepo(), &mockProvider{}, &mockPublisher{})

	for i, payment := range []string{"p1", "p2", "p3"} {
		draft := validDraft()
		draft.Title = draft.Title + string(rune('A'+i))
		_, svcErr := svc.CompletePayment(context.Background(), payment, "U1", "tx", draft)
		require.Nil(t, svcErr)
	}

	for _, l := range listings.byID {
		if l.Visibility == models.VisibilityActive {
			assert.Equal(t, models.PaymentStatePaid, l.PaymentState)
		}
	}
}

func TestCompletePayment_IdempotencyCheckFailureBlocksPayment(t *testing.T) {
	listings := newMockListingRepo()
	listings.findErr = errors.New("storage down")
	provider := &mockProvider{}
	svc := newTestService(listings, newMockIntentRepo(), provider, &mockPublisher{})

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.NotNil(t, svcErr)
	assert.Equal(t, 500, svcErr.StatusCode)
	assert.Zero(t, provider.completeCalls, "payment must not finalize when prior state is unknown")
	assert.Zero(t, listings.createCalls)
}

func TestCompletePayment_NonPayerRejected(t *testing.T) {
	intents := newMockIntentRepo()
	provider := &mockProvider{}
	svc := newTestService(newMockListingRepo(), intents, provider, &mockPublisher{})

	require.Nil(t, svc.ApprovePayment(context.Background(), "pay-1", "U1"))

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U2", "tx-1", validDraft())
	require.NotNil(t, svcErr)
	assert.Equal(t, 404, svcErr.StatusCode)
	assert.Zero(t, provider.completeCalls, "foreign completion never reaches the network")

	// The recorded payer can still finish normally.
	listing, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)
	assert.Equal(t, models.VisibilityActive, listing.Visibility)
}

func TestListListings_CacheOutageFallsBackToRepository(t *testing.T) {
	listings := newMockListingRepo()
	rdb := &failingRedis{}
	logger, _ := zap.NewDevelopment()
	svc := services.NewListingService(listings, newMockIntentRepo(), &mockProvider{}, &mockPublisher{}, rdb, 30*24*time.Hour, logger)

	_, svcErr := svc.CompletePayment(context.Background(), "pay-1", "U1", "tx-1", validDraft())
	require.Nil(t, svcErr)

	visible, total, qErr := svc.ListListings(context.Background(), models.ListingFilter{Country: "US"}, 1, 20)
	require.Nil(t, qErr)
	assert.Equal(t, int64(1), total)
	assert.Len(t, visible, 1)
	assert.Positive(t, rdb.calls, "cache was consulted before degrading")
}
