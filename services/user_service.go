package services

import (
	"context"
	"errors"

	"listing-service/models"
	"listing-service/providers"
	"listing-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService handles user registration and the one-time welcome credit.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterUserRequest) *ServiceError
}

// userServiceImpl implements UserService.
type userServiceImpl struct {
	users         repository.UserRepository
	intents       repository.PaymentIntentRepository
	provider      providers.PaymentProvider
	welcomeCredit bool
	logger        *zap.Logger
}

// NewUserService creates a new UserService. When welcomeCredit is set, a
// first-time registration triggers a 0.1 Pi app-to-user payment.
func NewUserService(
	users repository.UserRepository,
	intents repository.PaymentIntentRepository,
	provider providers.PaymentProvider,
	welcomeCredit bool,
	logger *zap.Logger,
) UserService {
	return &userServiceImpl{
		users:         users,
		intents:       intents,
		provider:      provider,
		welcomeCredit: welcomeCredit,
		logger:        logger,
	}
}

// Register upserts the user profile by Pi uid and grants the welcome credit
// on first sight. Credit failures never fail registration.
func (s *userServiceImpl) Register(ctx context.Context, req *models.RegisterUserRequest) *ServiceError {
	_, findErr := s.users.FindByPiUID(ctx, req.PiUID)
	firstSeen := errors.Is(findErr, gorm.ErrRecordNotFound)

	user := &models.User{
		PiUID:    req.PiUID,
		Username: req.Username,
		Country:  req.Country,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		s.logger.Error("failed to upsert user", zap.String("pi_uid", req.PiUID), zap.Error(err))
		return &ServiceError{StatusCode: 500, Message: "Failed to register user"}
	}

	if firstSeen && s.welcomeCredit {
		s.grantWelcomeCredit(ctx, req.PiUID)
	}

	s.logger.Info("user registered", zap.String("pi_uid", req.PiUID))
	return nil
}

// grantWelcomeCredit starts a 0.1 Pi app-to-user payment for a new user.
func (s *userServiceImpl) grantWelcomeCredit(ctx context.Context, piUID string) {
	const memo = "CexPi Welcome Credit - 0.1 Pi"

	paymentID, err := s.provider.CreatePayment(ctx, piUID, WelcomeCreditPi, memo, map[string]string{
		"type":  string(models.PurposeWelcomeCredit),
		"piUid": piUID,
	})
	if err != nil {
		s.logger.Warn("welcome credit payment failed",
			zap.String("pi_uid", piUID),
			zap.Error(err),
		)
		return
	}

	if err := s.users.SetWelcomeCreditPaymentID(ctx, piUID, paymentID); err != nil {
		s.logger.Warn("failed to record welcome credit payment",
			zap.String("pi_uid", piUID),
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	intent := &models.PaymentIntent{
		ID:        uuid.New(),
		PaymentID: paymentID,
		PayerUID:  piUID,
		Amount:    WelcomeCreditPi,
		Memo:      memo,
		Purpose:   models.PurposeWelcomeCredit,
		Status:    models.IntentStatusCreated,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		s.logger.Warn("failed to record welcome credit intent",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}

	s.logger.Info("welcome credit granted",
		zap.String("pi_uid", piUID),
		zap.String("payment_id", paymentID),
	)
}
