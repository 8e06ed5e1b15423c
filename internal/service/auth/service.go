package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	mqcontracts "minimail/contracts/mq"
	"minimail/internal/model"
	"minimail/internal/repository"
	"minimail/internal/service"
	"minimail/pkg/logger"
	"minimail/pkg/metrics"
	"minimail/pkg/util"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")
)

// Throttle counts login attempts. util.LoginThrottle implements it on Redis.
// Attempt reserves an attempt before the password is checked; Reset clears
// the count after a successful login.
type Throttle interface {
	Attempt(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, email string) error
}

type Service struct {
	userRepo  *repository.UserRepository
	issuer    *util.SessionIssuer
	throttle  Throttle
	publisher service.EventPublisher
	logger    *zap.Logger
}

// NewService wires the auth service. throttle and publisher may be nil.
func NewService(
	userRepo *repository.UserRepository,
	issuer *util.SessionIssuer,
	throttle Throttle,
	publisher service.EventPublisher,
	logger *zap.Logger,
) *Service {
	return &Service{
		userRepo:  userRepo,
		issuer:    issuer,
		throttle:  throttle,
		publisher: publisher,
		logger:    logger,
	}
}

// Register creates a new user.
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	hash, err := util.HashPassword(password)
	if err != nil {
		metrics.IncrementSignup("error")
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			metrics.IncrementSignup("conflict")
			return nil, ErrEmailExists
		}
		metrics.IncrementSignup("error")
		return nil, err
	}

	metrics.IncrementSignup("success")
	logger.WithTrace(ctx, s.logger).Info("User signed up",
		zap.String("user_id", u.ID),
		zap.String("email", u.Email),
	)
	service.PublishEvent(ctx, s.publisher, s.logger, mqcontracts.EventUserRegistered, mqcontracts.UserRegisteredPayload{
		UserID: u.ID,
		Email:  u.Email,
	})
	return u, nil
}

// Login checks user credentials and returns a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	log := logger.WithTrace(ctx, s.logger)
	email = model.NormalizeEmail(email)

	if !s.allowAttempt(ctx, email) {
		metrics.IncrementLogin("throttled")
		log.Warn("Login throttled", zap.String("email", email))
		return "", nil, ErrTooManyAttempts
	}

	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil || !util.CheckPassword(password, u.PasswordHash) {
		metrics.IncrementLogin("invalid")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(u.ID, u.Email)
	if err != nil {
		metrics.IncrementLogin("error")
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, email); err != nil {
			log.Warn("Failed to reset login throttle", zap.String("email", email), zap.Error(err))
		}
	}

	metrics.IncrementLogin("success")
	log.Info("User logged in", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return token, u, nil
}

// Authenticate verifies a session token.
func (s *Service) Authenticate(token string) (*util.SessionClaims, error) {
	return s.issuer.Verify(token)
}

// allowAttempt fails open: an unreachable Redis must not lock everybody out.
func (s *Service) allowAttempt(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return true
	}
	allowed, err := s.throttle.Attempt(ctx, email)
	if err != nil {
		s.logger.Warn("Login throttle check failed, allowing attempt", zap.Error(err))
		return true
	}
	return allowed
}
