package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/core/events"
)

// UserRepository is the storage surface the lifecycle operations need.
type UserRepository interface {
	Create(account *Account) error
	GetByID(id string) (*Account, error)
	GetByEmail(email string) (*Account, error)
	GetByUsername(username string) (*Account, error)
	UpdatePassword(userID, hashedPassword string) error
	UpdateLastLogin(userID string, at time.Time) error
	SetVerificationToken(userID, token string, expires time.Time) error
	MarkEmailVerified(userID string) error
	SetPasswordResetToken(userID, token string, expires time.Time) error
	ResetPassword(userID, hashedPassword string) error
	GetUserWithPermissions(userID string) (*Principal, error)
}

// RoleAssigner attaches the default role to newly registered users.
type RoleAssigner interface {
	AssignDefaultRole(userID string) error
}

// EventPublisher decouples side effects like email dispatch from the
// lifecycle operations.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	users      UserRepository
	roles      RoleAssigner
	tokens     TokenGenerator
	eventBus   EventPublisher
	bcryptCost int
	logger     *slog.Logger
}

func NewService(users UserRepository, roles RoleAssigner, tokens TokenGenerator, eventBus EventPublisher, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		roles:      roles,
		tokens:     tokens,
		eventBus:   eventBus,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates an active, unverified account. Duplicate email or
// username is rejected before any write. The verification email is
// dispatched through the event bus and never blocks registration.
func (s *Service) Register(dto RegisterDTO) (*Account, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.users.GetByEmail(dto.Email); err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		s.logger.Error("register: email lookup failed", "error", err)
		return nil, apperrors.NewInternalError("could not register user", err)
	} else if existing != nil {
		return nil, apperrors.ErrEmailExists
	}

	if dto.Username != nil {
		if existing, err := s.users.GetByUsername(*dto.Username); err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.Error("register: username lookup failed", "error", err)
			return nil, apperrors.NewInternalError("could not register user", err)
		} else if existing != nil {
			return nil, apperrors.ErrUsernameExists
		}
	}

	hashedPassword, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error("register: password hashing failed", "error", err)
		return nil, apperrors.NewInternalError("could not register user", err)
	}

	account := NewAccount(dto, hashedPassword)

	verificationToken, err := s.tokens.GenerateEmailVerificationToken(account.Email)
	if err != nil {
		s.logger.Error("register: verification token generation failed", "error", err)
		return nil, apperrors.NewInternalError("could not register user", err)
	}
	expires := time.Now().Add(s.tokens.VerifyTTL())
	account.VerificationToken = &verificationToken
	account.VerificationTokenExpires = &expires

	if err := s.users.Create(account); err != nil {
		s.logger.Error("register: create failed", "email", account.Email, "error", err)
		if appErr, ok := apperrors.IsAppError(err); ok {
			return nil, appErr
		}
		return nil, apperrors.NewInternalError("could not register user", err)
	}

	if err := s.roles.AssignDefaultRole(account.ID); err != nil {
		s.logger.Error("register: default role assignment failed", "user_id", account.ID, "error", err)
	}

	s.eventBus.Publish(context.Background(), events.NewUserRegisteredEvent(account.ID, account.Email, verificationToken))

	s.logger.Info("user registered", "user_id", account.ID)
	return account, nil
}

// Login verifies credentials and returns a fresh token pair. An unknown
// email and a wrong password are indistinguishable to the caller; the
// deactivated state is only revealed after the password proof.
func (s *Service) Login(dto LoginDTO) (*TokenResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	account, err := s.users.GetByEmail(dto.Email)
	if err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !VerifyPassword(account.HashedPassword, dto.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, apperrors.ErrAccountDeactivated
	}

	if err := s.users.UpdateLastLogin(account.ID, time.Now()); err != nil {
		s.logger.Error("login: last login update failed", "user_id", account.ID, "error", err)
	}

	return s.issueTokens(account)
}

// RefreshTokens exchanges a refresh token for a new pair. The presented
// token stays usable until its own expiry.
func (s *Service) RefreshTokens(refreshToken string) (*TokenResponse, error) {
	claims, err := s.tokens.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	account, err := s.users.GetByID(claims.Subject)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	if !account.IsActive {
		return nil, apperrors.ErrAccountDeactivated
	}

	return s.issueTokens(account)
}

func (s *Service) issueTokens(account *Account) (*TokenResponse, error) {
	accessToken, err := s.tokens.GenerateAccessToken(account.ID, account.Email)
	if err != nil {
		s.logger.Error("access token generation failed", "user_id", account.ID, "error", err)
		return nil, apperrors.NewInternalError("could not issue tokens", err)
	}

	refreshToken, err := s.tokens.GenerateRefreshToken(account.ID, account.Email)
	if err != nil {
		s.logger.Error("refresh token generation failed", "user_id", account.ID, "error", err)
		return nil, apperrors.NewInternalError("could not issue tokens", err)
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// VerifyEmail marks the account behind a verification token as verified.
// Verifying an already verified account is a successful no-op.
func (s *Service) VerifyEmail(token string) error {
	claims, err := s.tokens.ValidateToken(token, TokenTypeEmailVerification)
	if err != nil {
		return err
	}

	account, err := s.users.GetByEmail(claims.Subject)
	if err != nil {
		return apperrors.ErrInvalidToken
	}

	if account.IsVerified {
		return nil
	}

	if err := s.users.MarkEmailVerified(account.ID); err != nil {
		s.logger.Error("verify email: update failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not verify email", err)
	}

	s.eventBus.Publish(context.Background(), events.NewUserEmailVerifiedEvent(account.ID, account.Email))
	return nil
}

// ResendVerification rotates the stored verification token and re-sends the
// email. Unknown addresses and already verified accounts are silent no-ops
// so the endpoint cannot be used to enumerate accounts.
func (s *Service) ResendVerification(email string) error {
	account, err := s.users.GetByEmail(email)
	if err != nil {
		return nil
	}

	if account.IsVerified {
		return nil
	}

	verificationToken, err := s.tokens.GenerateEmailVerificationToken(account.Email)
	if err != nil {
		s.logger.Error("resend verification: token generation failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not resend verification", err)
	}

	if err := s.users.SetVerificationToken(account.ID, verificationToken, time.Now().Add(s.tokens.VerifyTTL())); err != nil {
		s.logger.Error("resend verification: token store failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not resend verification", err)
	}

	s.eventBus.Publish(context.Background(), events.NewVerificationResentEvent(account.ID, account.Email, verificationToken))
	return nil
}

// ForgotPassword issues a reset token for the account. Unknown addresses
// are silent no-ops. Verification state is not checked so locked-out users
// can still recover.
func (s *Service) ForgotPassword(email string) error {
	account, err := s.users.GetByEmail(email)
	if err != nil {
		return nil
	}

	resetToken, err := s.tokens.GeneratePasswordResetToken(account.Email)
	if err != nil {
		s.logger.Error("forgot password: token generation failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not process request", err)
	}

	if err := s.users.SetPasswordResetToken(account.ID, resetToken, time.Now().Add(s.tokens.ResetTTL())); err != nil {
		s.logger.Error("forgot password: token store failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not process request", err)
	}

	s.eventBus.Publish(context.Background(), events.NewPasswordResetRequestedEvent(account.Email, resetToken))
	return nil
}

// ResetPassword sets a new password from a reset token. The token must
// both verify and equal the stored one, so a token superseded by a newer
// request or already spent is rejected.
func (s *Service) ResetPassword(dto ResetPasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	claims, err := s.tokens.ValidateToken(dto.Token, TokenTypePasswordReset)
	if err != nil {
		return err
	}

	account, err := s.users.GetByEmail(claims.Subject)
	if err != nil {
		return apperrors.ErrInvalidToken
	}

	if !account.MatchesResetToken(dto.Token) {
		return apperrors.ErrInvalidToken
	}
	if account.ResetTokenExpired(time.Now()) {
		return apperrors.ErrTokenExpired
	}

	hashedPassword, err := HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		s.logger.Error("reset password: hashing failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not reset password", err)
	}

	if err := s.users.ResetPassword(account.ID, hashedPassword); err != nil {
		s.logger.Error("reset password: update failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not reset password", err)
	}

	s.eventBus.Publish(context.Background(), events.NewUserPasswordChangedEvent(account.ID, account.Email))
	return nil
}

// ChangePassword rotates the password of an authenticated user after
// proving the current one.
func (s *Service) ChangePassword(userID string, dto ChangePasswordDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	account, err := s.users.GetByID(userID)
	if err != nil {
		return apperrors.ErrUserNotFound
	}

	if !VerifyPassword(account.HashedPassword, dto.CurrentPassword) {
		return apperrors.NewValidationError("Current password is incorrect", apperrors.ErrCodeWrongPassword)
	}

	hashedPassword, err := HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		s.logger.Error("change password: hashing failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not change password", err)
	}

	if err := s.users.UpdatePassword(account.ID, hashedPassword); err != nil {
		s.logger.Error("change password: update failed", "user_id", account.ID, "error", err)
		return apperrors.NewInternalError("could not change password", err)
	}

	s.eventBus.Publish(context.Background(), events.NewUserPasswordChangedEvent(account.ID, account.Email))
	return nil
}

// ValidateAccessToken resolves a bearer token into the principal guards
// decide on. The principal is loaded regardless of active state; the
// activity gate is a separate layer.
func (s *Service) ValidateAccessToken(token string) (*Principal, error) {
	claims, err := s.tokens.ValidateToken(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	principal, err := s.users.GetUserWithPermissions(claims.Subject)
	if err != nil {
		return nil, apperrors.ErrCouldNotValidate
	}

	return principal, nil
}
