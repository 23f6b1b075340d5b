package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/core/events"
	"github.com/fajarnugraha/identity-service/pkg/logger"
)

func TestAuth(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Auth Module Suite")
}

// Mock UserRepository for testing
type mockUserRepository struct {
	accounts       map[string]*Account   // userID -> account
	principals     map[string]*Principal // userID -> principal with permissions
	verifiedCalls  int
	lastLoginCalls int
	returnError    bool
	errorToReturn  error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		accounts:   make(map[string]*Account),
		principals: make(map[string]*Principal),
	}
}

func (m *mockUserRepository) addAccount(a *Account) {
	m.accounts[a.ID] = a
}

func (m *mockUserRepository) Create(account *Account) error {
	if m.returnError {
		return m.errorToReturn
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *mockUserRepository) GetByID(id string) (*Account, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(email string) (*Account, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *mockUserRepository) GetByUsername(username string) (*Account, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	for _, a := range m.accounts {
		if a.Username != nil && *a.Username == username {
			return a, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *mockUserRepository) UpdatePassword(userID, hashedPassword string) error {
	if m.returnError {
		return m.errorToReturn
	}
	if a, ok := m.accounts[userID]; ok {
		a.HashedPassword = hashedPassword
		return nil
	}
	return apperrors.ErrUserNotFound
}

func (m *mockUserRepository) UpdateLastLogin(userID string, at time.Time) error {
	if m.returnError {
		return m.errorToReturn
	}
	if a, ok := m.accounts[userID]; ok {
		a.LastLogin = &at
		m.lastLoginCalls++
		return nil
	}
	return apperrors.ErrUserNotFound
}

func (m *mockUserRepository) SetVerificationToken(userID, token string, expires time.Time) error {
	if m.returnError {
		return m.errorToReturn
	}
	if a, ok := m.accounts[userID]; ok {
		a.VerificationToken = &token
		a.VerificationTokenExpires = &expires
		return nil
	}
	return apperrors.ErrUserNotFound
}

func (m *mockUserRepository) MarkEmailVerified(userID string) error {
	if m.returnError {
		return m.errorToReturn
	}
	if a, ok := m.accounts[userID]; ok {
		a.IsVerified = true
		a.VerificationToken = nil
		a.VerificationTokenExpires = nil
		m.verifiedCalls++
		return nil
	}
	return apperrors.ErrUserNotFound
}

func (m *mockUserRepository) SetPasswordResetToken(userID, token string, expires time.Time) error {
	if m.returnError {
		return m.errorToReturn
	}
	if a, ok := m.accounts[userID]; ok {
		a.PasswordResetToken = &token
		a.PasswordResetTokenExpires = &expires
		return nil
	}
	return apperrors.ErrUserNotFound
}

func (m *mockUserRepository) ResetPassword(userID, hashedPassword string) error {
	if m.returnError {
		return m.errorToReturn
	}
	if a, ok := m.accounts[userID]; ok {
		a.HashedPassword = hashedPassword
		a.PasswordResetToken = nil
		a.PasswordResetTokenExpires = nil
		return nil
	}
	return apperrors.ErrUserNotFound
}

func (m *mockUserRepository) GetUserWithPermissions(userID string) (*Principal, error) {
	if m.returnError {
		return nil, m.errorToReturn
	}
	if p, ok := m.principals[userID]; ok {
		return p, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *mockUserRepository) setError(err error) {
	m.returnError = true
	m.errorToReturn = err
}

type mockRoleAssigner struct {
	assigned []string
	err      error
}

func (m *mockRoleAssigner) AssignDefaultRole(userID string) error {
	if m.err != nil {
		return m.err
	}
	m.assigned = append(m.assigned, userID)
	return nil
}

type mockEventPublisher struct {
	published []events.Event
}

func (m *mockEventPublisher) Publish(_ context.Context, event events.Event) error {
	m.published = append(m.published, event)
	return nil
}

func (m *mockEventPublisher) lastEventType() string {
	if len(m.published) == 0 {
		return ""
	}
	return m.published[len(m.published)-1].EventType()
}

var _ = ginkgo.Describe("AuthService", func() {
	var (
		service  *Service
		mockRepo *mockUserRepository
		roles    *mockRoleAssigner
		eventBus *mockEventPublisher
		tokenGen *JWTTokenGenerator
	)

	const secret = "test-secret-key-with-enough-length"
	const accessTTL = 15 * time.Minute
	const refreshTTL = 24 * time.Hour
	const verifyTTL = 24 * time.Hour
	const resetTTL = time.Hour

	strPtr := func(s string) *string { return &s }

	hash := func(password string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		return string(h)
	}

	ginkgo.BeforeEach(func() {
		mockRepo = newMockUserRepository()
		roles = &mockRoleAssigner{}
		eventBus = &mockEventPublisher{}
		tokenGen = NewJWTTokenGenerator(secret, accessTTL, refreshTTL, verifyTTL, resetTTL)
		service = NewService(mockRepo, roles, tokenGen, eventBus, bcrypt.MinCost, logger.LoggerWrapper())

		mockRepo.addAccount(&Account{
			ID:             "user-1",
			Email:          "user@example.com",
			Username:       strPtr("regular_user"),
			HashedPassword: hash("correct_password"),
			IsActive:       true,
			IsVerified:     true,
		})
		mockRepo.addAccount(&Account{
			ID:             "user-2",
			Email:          "pending@example.com",
			HashedPassword: hash("correct_password"),
			IsActive:       true,
			IsVerified:     false,
		})
		mockRepo.addAccount(&Account{
			ID:             "user-3",
			Email:          "locked@example.com",
			HashedPassword: hash("correct_password"),
			IsActive:       false,
			IsVerified:     true,
		})

		mockRepo.principals["user-1"] = &Principal{
			ID:          "user-1",
			Email:       "user@example.com",
			IsActive:    true,
			IsVerified:  true,
			Roles:       []string{"user"},
			Permissions: []string{"profile.view_own", "profile.update_own"},
		}
	})

	ginkgo.Describe("Register", func() {
		validDTO := func() RegisterDTO {
			return RegisterDTO{
				Email:           "new@example.com",
				Password:        "secure_password",
				ConfirmPassword: "secure_password",
			}
		}

		ginkgo.Context("when registration data is valid", func() {
			ginkgo.It("should create an active, unverified account", func() {
				// When
				account, err := service.Register(validDTO())

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(account.ID).ToNot(gomega.BeEmpty())
				gomega.Expect(account.IsActive).To(gomega.BeTrue())
				gomega.Expect(account.IsVerified).To(gomega.BeFalse())
				gomega.Expect(account.HashedPassword).ToNot(gomega.Equal("secure_password"))
			})

			ginkgo.It("should store a verification token with an expiry", func() {
				// When
				account, err := service.Register(validDTO())

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				stored := mockRepo.accounts[account.ID]
				gomega.Expect(stored.VerificationToken).ToNot(gomega.BeNil())
				gomega.Expect(stored.VerificationTokenExpires).ToNot(gomega.BeNil())
			})

			ginkgo.It("should assign the default role", func() {
				// When
				account, err := service.Register(validDTO())

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(roles.assigned).To(gomega.ContainElement(account.ID))
			})

			ginkgo.It("should publish a registration event carrying the verification token", func() {
				// When
				account, err := service.Register(validDTO())

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(eventBus.lastEventType()).To(gomega.Equal(events.EventTypeUserRegistered))

				evt, ok := eventBus.published[0].(*events.UserRegisteredEvent)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(evt.UserID).To(gomega.Equal(account.ID))
				gomega.Expect(evt.VerificationToken).ToNot(gomega.BeEmpty())
			})

			ginkgo.It("should still register when default role assignment fails", func() {
				// Given
				roles.err = errors.New("no default role configured")

				// When
				account, err := service.Register(validDTO())

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(account).ToNot(gomega.BeNil())
			})
		})

		ginkgo.Context("when the email is already registered", func() {
			ginkgo.It("should return a conflict error", func() {
				// Given
				dto := validDTO()
				dto.Email = "user@example.com"

				// When
				account, err := service.Register(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrEmailExists))
				gomega.Expect(account).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when the username is already taken", func() {
			ginkgo.It("should return a conflict error", func() {
				// Given
				dto := validDTO()
				dto.Username = strPtr("regular_user")

				// When
				account, err := service.Register(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrUsernameExists))
				gomega.Expect(account).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when validation fails", func() {
			ginkgo.It("should reject mismatched password confirmation", func() {
				// Given
				dto := validDTO()
				dto.ConfirmPassword = "different_password"

				// When
				account, err := service.Register(dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(account).To(gomega.BeNil())
			})

			ginkgo.It("should reject a short password", func() {
				// Given
				dto := validDTO()
				dto.Password = "short"
				dto.ConfirmPassword = "short"

				// When
				account, err := service.Register(dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(account).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("Login", func() {
		ginkgo.Context("when credentials are valid", func() {
			ginkgo.It("should return a bearer token pair", func() {
				// Given
				dto := LoginDTO{Email: "user@example.com", Password: "correct_password"}

				// When
				tokens, err := service.Login(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.TokenType).To(gomega.Equal("bearer"))
				gomega.Expect(tokens.ExpiresIn).To(gomega.Equal(int64(accessTTL / time.Second)))
			})

			ginkgo.It("should issue an access token identifying the user", func() {
				// When
				tokens, err := service.Login(LoginDTO{Email: "user@example.com", Password: "correct_password"})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				claims, err := tokenGen.ValidateToken(tokens.AccessToken, TokenTypeAccess)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.Subject).To(gomega.Equal("user-1"))
				gomega.Expect(claims.Email).To(gomega.Equal("user@example.com"))
			})

			ginkgo.It("should record the login time", func() {
				// When
				_, err := service.Login(LoginDTO{Email: "user@example.com", Password: "correct_password"})

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.lastLoginCalls).To(gomega.Equal(1))
				gomega.Expect(mockRepo.accounts["user-1"].LastLogin).ToNot(gomega.BeNil())
			})
		})

		ginkgo.Context("when credentials are invalid", func() {
			ginkgo.It("should return the same error for unknown email and wrong password", func() {
				// When
				_, unknownErr := service.Login(LoginDTO{Email: "nobody@example.com", Password: "correct_password"})
				_, wrongErr := service.Login(LoginDTO{Email: "user@example.com", Password: "wrong_password"})

				// Then
				gomega.Expect(unknownErr).To(gomega.Equal(apperrors.ErrInvalidCredentials))
				gomega.Expect(wrongErr).To(gomega.Equal(apperrors.ErrInvalidCredentials))
			})
		})

		ginkgo.Context("when the account is deactivated", func() {
			ginkgo.It("should reveal the deactivated state only after password proof", func() {
				// When
				_, provenErr := service.Login(LoginDTO{Email: "locked@example.com", Password: "correct_password"})
				_, unprovenErr := service.Login(LoginDTO{Email: "locked@example.com", Password: "wrong_password"})

				// Then
				gomega.Expect(provenErr).To(gomega.Equal(apperrors.ErrAccountDeactivated))
				gomega.Expect(unprovenErr).To(gomega.Equal(apperrors.ErrInvalidCredentials))
			})
		})
	})

	ginkgo.Describe("RefreshTokens", func() {
		var validRefreshToken string

		ginkgo.BeforeEach(func() {
			tokens, err := service.Login(LoginDTO{Email: "user@example.com", Password: "correct_password"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			validRefreshToken = tokens.RefreshToken
		})

		ginkgo.Context("when the refresh token is valid", func() {
			ginkgo.It("should issue a new token pair", func() {
				// When
				tokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(tokens.AccessToken).ToNot(gomega.BeEmpty())
				gomega.Expect(tokens.RefreshToken).ToNot(gomega.BeEmpty())

				claims, err := tokenGen.ValidateToken(tokens.AccessToken, TokenTypeAccess)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(claims.Subject).To(gomega.Equal("user-1"))
			})
		})

		ginkgo.Context("when an access token is presented instead", func() {
			ginkgo.It("should reject it", func() {
				// Given
				accessToken, err := tokenGen.GenerateAccessToken("user-1", "user@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				tokens, err := service.RefreshTokens(accessToken)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
				gomega.Expect(tokens).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when the account was deactivated since issuance", func() {
			ginkgo.It("should reject the refresh", func() {
				// Given
				mockRepo.accounts["user-1"].IsActive = false

				// When
				tokens, err := service.RefreshTokens(validRefreshToken)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrAccountDeactivated))
				gomega.Expect(tokens).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when the token is garbage", func() {
			ginkgo.It("should return a generic invalid token error", func() {
				// When
				tokens, err := service.RefreshTokens("not.a.token")

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
				gomega.Expect(tokens).To(gomega.BeNil())
			})
		})
	})

	ginkgo.Describe("VerifyEmail", func() {
		ginkgo.Context("with a valid verification token", func() {
			ginkgo.It("should mark the account verified and publish an event", func() {
				// Given
				token, err := tokenGen.GenerateEmailVerificationToken("pending@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				err = service.VerifyEmail(token)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.accounts["user-2"].IsVerified).To(gomega.BeTrue())
				gomega.Expect(eventBus.lastEventType()).To(gomega.Equal(events.EventTypeUserEmailVerified))
			})

			ginkgo.It("should be idempotent for an already verified account", func() {
				// Given
				token, err := tokenGen.GenerateEmailVerificationToken("pending@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(service.VerifyEmail(token)).To(gomega.Succeed())

				// When
				err = service.VerifyEmail(token)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.verifiedCalls).To(gomega.Equal(1))
			})
		})

		ginkgo.Context("with an unusable token", func() {
			ginkgo.It("should reject a token of the wrong kind", func() {
				// Given
				token, err := tokenGen.GenerateAccessToken("user-2", "pending@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When / Then
				gomega.Expect(service.VerifyEmail(token)).To(gomega.Equal(apperrors.ErrInvalidToken))
			})

			ginkgo.It("should reject a token for an unknown address", func() {
				// Given
				token, err := tokenGen.GenerateEmailVerificationToken("nobody@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When / Then
				gomega.Expect(service.VerifyEmail(token)).To(gomega.Equal(apperrors.ErrInvalidToken))
			})

			ginkgo.It("should report an expired token as expired", func() {
				// Given
				expiredGen := NewJWTTokenGenerator(secret, accessTTL, refreshTTL, -time.Hour, resetTTL)
				token, err := expiredGen.GenerateEmailVerificationToken("pending@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When / Then
				gomega.Expect(service.VerifyEmail(token)).To(gomega.Equal(apperrors.ErrTokenExpired))
			})
		})
	})

	ginkgo.Describe("ResendVerification", func() {
		ginkgo.Context("for an unverified account", func() {
			ginkgo.It("should rotate the stored token and publish an event", func() {
				// When
				err := service.ResendVerification("pending@example.com")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.accounts["user-2"].VerificationToken).ToNot(gomega.BeNil())
				gomega.Expect(eventBus.lastEventType()).To(gomega.Equal(events.EventTypeVerificationResent))
			})
		})

		ginkgo.Context("for an unknown address", func() {
			ginkgo.It("should succeed silently without publishing", func() {
				// When
				err := service.ResendVerification("nobody@example.com")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(eventBus.published).To(gomega.BeEmpty())
			})
		})

		ginkgo.Context("for an already verified account", func() {
			ginkgo.It("should succeed silently without publishing", func() {
				// When
				err := service.ResendVerification("user@example.com")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(eventBus.published).To(gomega.BeEmpty())
			})
		})
	})

	ginkgo.Describe("ForgotPassword", func() {
		ginkgo.Context("for a registered address", func() {
			ginkgo.It("should store a reset token and publish an event", func() {
				// When
				err := service.ForgotPassword("user@example.com")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.accounts["user-1"].PasswordResetToken).ToNot(gomega.BeNil())
				gomega.Expect(eventBus.lastEventType()).To(gomega.Equal(events.EventTypePasswordResetRequested))
			})

			ginkgo.It("should not require a verified email", func() {
				// When
				err := service.ForgotPassword("pending@example.com")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(mockRepo.accounts["user-2"].PasswordResetToken).ToNot(gomega.BeNil())
			})
		})

		ginkgo.Context("for an unknown address", func() {
			ginkgo.It("should succeed silently without publishing", func() {
				// When
				err := service.ForgotPassword("nobody@example.com")

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(eventBus.published).To(gomega.BeEmpty())
			})
		})
	})

	ginkgo.Describe("ResetPassword", func() {
		var resetToken string

		ginkgo.BeforeEach(func() {
			gomega.Expect(service.ForgotPassword("user@example.com")).To(gomega.Succeed())
			resetToken = *mockRepo.accounts["user-1"].PasswordResetToken
		})

		ginkgo.Context("with the issued token", func() {
			ginkgo.It("should set the new password", func() {
				// Given
				dto := ResetPasswordDTO{
					Token:           resetToken,
					NewPassword:     "brand_new_password",
					ConfirmPassword: "brand_new_password",
				}

				// When
				err := service.ResetPassword(dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(VerifyPassword(mockRepo.accounts["user-1"].HashedPassword, "brand_new_password")).To(gomega.BeTrue())
				gomega.Expect(eventBus.lastEventType()).To(gomega.Equal(events.EventTypeUserPasswordChanged))
			})

			ginkgo.It("should consume the token on first use", func() {
				// Given
				dto := ResetPasswordDTO{
					Token:           resetToken,
					NewPassword:     "brand_new_password",
					ConfirmPassword: "brand_new_password",
				}
				gomega.Expect(service.ResetPassword(dto)).To(gomega.Succeed())

				// When
				err := service.ResetPassword(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
			})
		})

		ginkgo.Context("when a newer reset request superseded the token", func() {
			ginkgo.It("should reject the older token", func() {
				// Given
				gomega.Expect(service.ForgotPassword("user@example.com")).To(gomega.Succeed())

				dto := ResetPasswordDTO{
					Token:           resetToken,
					NewPassword:     "brand_new_password",
					ConfirmPassword: "brand_new_password",
				}

				// When
				err := service.ResetPassword(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
			})
		})

		ginkgo.Context("when the stored token has expired", func() {
			ginkgo.It("should reject it as expired", func() {
				// Given
				past := time.Now().Add(-time.Minute)
				mockRepo.accounts["user-1"].PasswordResetTokenExpires = &past

				dto := ResetPasswordDTO{
					Token:           resetToken,
					NewPassword:     "brand_new_password",
					ConfirmPassword: "brand_new_password",
				}

				// When
				err := service.ResetPassword(dto)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrTokenExpired))
			})
		})

		ginkgo.Context("when confirmation does not match", func() {
			ginkgo.It("should return a validation error", func() {
				// Given
				dto := ResetPasswordDTO{
					Token:           resetToken,
					NewPassword:     "brand_new_password",
					ConfirmPassword: "something_else",
				}

				// When
				err := service.ResetPassword(dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(VerifyPassword(mockRepo.accounts["user-1"].HashedPassword, "correct_password")).To(gomega.BeTrue())
			})
		})
	})

	ginkgo.Describe("ChangePassword", func() {
		ginkgo.Context("with the correct current password", func() {
			ginkgo.It("should rotate the password and publish an event", func() {
				// Given
				dto := ChangePasswordDTO{
					CurrentPassword: "correct_password",
					NewPassword:     "rotated_password",
					ConfirmPassword: "rotated_password",
				}

				// When
				err := service.ChangePassword("user-1", dto)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(VerifyPassword(mockRepo.accounts["user-1"].HashedPassword, "rotated_password")).To(gomega.BeTrue())
				gomega.Expect(eventBus.lastEventType()).To(gomega.Equal(events.EventTypeUserPasswordChanged))
			})
		})

		ginkgo.Context("with a wrong current password", func() {
			ginkgo.It("should return a validation error and keep the password", func() {
				// Given
				dto := ChangePasswordDTO{
					CurrentPassword: "wrong_password",
					NewPassword:     "rotated_password",
					ConfirmPassword: "rotated_password",
				}

				// When
				err := service.ChangePassword("user-1", dto)

				// Then
				gomega.Expect(err).To(gomega.HaveOccurred())
				appErr, ok := apperrors.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.Code).To(gomega.Equal(apperrors.ErrCodeWrongPassword))
				gomega.Expect(VerifyPassword(mockRepo.accounts["user-1"].HashedPassword, "correct_password")).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("for an unknown user", func() {
			ginkgo.It("should return not found", func() {
				// Given
				dto := ChangePasswordDTO{
					CurrentPassword: "correct_password",
					NewPassword:     "rotated_password",
					ConfirmPassword: "rotated_password",
				}

				// When / Then
				gomega.Expect(service.ChangePassword("ghost", dto)).To(gomega.Equal(apperrors.ErrUserNotFound))
			})
		})
	})

	ginkgo.Describe("ValidateAccessToken", func() {
		ginkgo.Context("with a valid access token", func() {
			ginkgo.It("should resolve the principal with permissions", func() {
				// Given
				token, err := tokenGen.GenerateAccessToken("user-1", "user@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				principal, err := service.ValidateAccessToken(token)

				// Then
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(principal.ID).To(gomega.Equal("user-1"))
				gomega.Expect(principal.Permissions).To(gomega.ContainElement("profile.view_own"))
			})
		})

		ginkgo.Context("with a refresh token", func() {
			ginkgo.It("should reject it", func() {
				// Given
				token, err := tokenGen.GenerateRefreshToken("user-1", "user@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				// When
				principal, err := service.ValidateAccessToken(token)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
				gomega.Expect(principal).To(gomega.BeNil())
			})
		})

		ginkgo.Context("when the principal lookup fails", func() {
			ginkgo.It("should return a generic validation error", func() {
				// Given
				token, err := tokenGen.GenerateAccessToken("user-1", "user@example.com")
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				mockRepo.setError(errors.New("database gone"))

				// When
				principal, err := service.ValidateAccessToken(token)

				// Then
				gomega.Expect(err).To(gomega.Equal(apperrors.ErrCouldNotValidate))
				gomega.Expect(principal).To(gomega.BeNil())
			})
		})
	})
})
