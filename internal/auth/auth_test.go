package auth

import (
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	apperrors "github.com/fajarnugraha/identity-service/internal"
	"github.com/fajarnugraha/identity-service/internal/core/validation"
)

var _ = ginkgo.Describe("JWTTokenGenerator", func() {
	var gen *JWTTokenGenerator

	ginkgo.BeforeEach(func() {
		gen = NewJWTTokenGenerator("another-secret-with-enough-length", 15*time.Minute, 24*time.Hour, 24*time.Hour, time.Hour)
	})

	ginkgo.Describe("token kinds", func() {
		ginkgo.It("should issue access tokens carrying the user id and email", func() {
			// When
			token, err := gen.GenerateAccessToken("user-42", "someone@example.com")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := gen.ValidateToken(token, TokenTypeAccess)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Subject).To(gomega.Equal("user-42"))
			gomega.Expect(claims.Email).To(gomega.Equal("someone@example.com"))
			gomega.Expect(claims.TokenType).To(gomega.Equal(TokenTypeAccess))
		})

		ginkgo.It("should issue refresh tokens distinct from access tokens", func() {
			// When
			token, err := gen.GenerateRefreshToken("user-42", "someone@example.com")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := gen.ValidateToken(token, TokenTypeRefresh)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.TokenType).To(gomega.Equal(TokenTypeRefresh))

			_, err = gen.ValidateToken(token, TokenTypeAccess)
			gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
		})

		ginkgo.It("should issue verification tokens with the email as subject", func() {
			// When
			token, err := gen.GenerateEmailVerificationToken("someone@example.com")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := gen.ValidateToken(token, TokenTypeEmailVerification)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Subject).To(gomega.Equal("someone@example.com"))
		})

		ginkgo.It("should issue reset tokens with the email as subject", func() {
			// When
			token, err := gen.GeneratePasswordResetToken("someone@example.com")

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			claims, err := gen.ValidateToken(token, TokenTypePasswordReset)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(claims.Subject).To(gomega.Equal("someone@example.com"))
		})

		ginkgo.It("should not accept a reset token as a verification token", func() {
			// Given
			token, err := gen.GeneratePasswordResetToken("someone@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When / Then
			_, err = gen.ValidateToken(token, TokenTypeEmailVerification)
			gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
		})
	})

	ginkgo.Describe("ValidateToken", func() {
		ginkgo.It("should reject a token past its expiry", func() {
			// Given
			expiredGen := NewJWTTokenGenerator("another-secret-with-enough-length", -time.Minute, 24*time.Hour, 24*time.Hour, time.Hour)
			token, err := expiredGen.GenerateAccessToken("user-42", "someone@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When / Then
			_, err = gen.ValidateToken(token, TokenTypeAccess)
			gomega.Expect(err).To(gomega.Equal(apperrors.ErrTokenExpired))
		})

		ginkgo.It("should reject a token signed with a different secret", func() {
			// Given
			otherGen := NewJWTTokenGenerator("a-completely-different-signing-key", 15*time.Minute, 24*time.Hour, 24*time.Hour, time.Hour)
			token, err := otherGen.GenerateAccessToken("user-42", "someone@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When / Then
			_, err = gen.ValidateToken(token, TokenTypeAccess)
			gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
		})

		ginkgo.It("should reject malformed input", func() {
			// When / Then
			_, err := gen.ValidateToken("definitely-not-a-jwt", TokenTypeAccess)
			gomega.Expect(err).To(gomega.Equal(apperrors.ErrInvalidToken))
		})
	})

	ginkgo.Describe("DecodeToken", func() {
		ginkgo.It("should return claims for any valid token regardless of kind", func() {
			// Given
			token, err := gen.GeneratePasswordResetToken("someone@example.com")
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// When
			claims := gen.DecodeToken(token)

			// Then
			gomega.Expect(claims).ToNot(gomega.BeNil())
			gomega.Expect(claims.TokenType).To(gomega.Equal(TokenTypePasswordReset))
		})

		ginkgo.It("should return nil for malformed input", func() {
			gomega.Expect(gen.DecodeToken("garbage")).To(gomega.BeNil())
		})
	})
})

var _ = ginkgo.Describe("Password hashing", func() {
	ginkgo.It("should verify a password against its own hash", func() {
		// When
		hash, err := HashPassword("some_password", 0)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(VerifyPassword(hash, "some_password")).To(gomega.BeTrue())
		gomega.Expect(VerifyPassword(hash, "other_password")).To(gomega.BeFalse())
	})

	ginkgo.It("should salt hashes so equal passwords differ", func() {
		// When
		first, err := HashPassword("some_password", 4)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		second, err := HashPassword("some_password", 4)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		// Then
		gomega.Expect(first).ToNot(gomega.Equal(second))
	})

	ginkgo.It("should fall back to a usable cost when given an out-of-range one", func() {
		// When
		hash, err := HashPassword("some_password", 99)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(VerifyPassword(hash, "some_password")).To(gomega.BeTrue())
	})
})

var _ = ginkgo.Describe("Random token helpers", func() {
	ginkgo.It("should generate distinct URL-safe tokens", func() {
		// When
		first, err := GenerateSecureToken(32)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		second, err := GenerateSecureToken(32)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		// Then
		gomega.Expect(first).ToNot(gomega.BeEmpty())
		gomega.Expect(first).ToNot(gomega.Equal(second))
		gomega.Expect(first).ToNot(gomega.ContainSubstring("+"))
		gomega.Expect(first).ToNot(gomega.ContainSubstring("/"))
	})

	ginkgo.It("should generate verification codes of decimal digits", func() {
		// When
		code, err := GenerateVerificationCode(6)

		// Then
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(code).To(gomega.HaveLen(6))
		gomega.Expect(code).To(gomega.MatchRegexp(`^[0-9]+$`))
	})
})

var _ = ginkgo.Describe("Auth DTO validation", func() {
	strPtr := func(s string) *string { return &s }

	ginkgo.Describe("RegisterDTO", func() {
		ginkgo.It("should accept a complete registration", func() {
			dto := RegisterDTO{
				Email:           "new@example.com",
				Username:        strPtr("new_user"),
				Password:        "secure_password",
				ConfirmPassword: "secure_password",
			}
			gomega.Expect(validation.Struct(dto)).To(gomega.BeNil())
		})

		ginkgo.It("should reject an invalid email address", func() {
			dto := RegisterDTO{
				Email:           "not-an-email",
				Password:        "secure_password",
				ConfirmPassword: "secure_password",
			}
			err := validation.Struct(dto)
			gomega.Expect(err).ToNot(gomega.BeNil())
			gomega.Expect(err.Code).To(gomega.Equal(apperrors.ErrCodeValidationFailed))
		})

		ginkgo.It("should reject a username shorter than three characters", func() {
			dto := RegisterDTO{
				Email:           "new@example.com",
				Username:        strPtr("ab"),
				Password:        "secure_password",
				ConfirmPassword: "secure_password",
			}
			gomega.Expect(validation.Struct(dto)).ToNot(gomega.BeNil())
		})

		ginkgo.It("should reject a username with forbidden characters", func() {
			dto := RegisterDTO{
				Email:           "new@example.com",
				Username:        strPtr("bad user!"),
				Password:        "secure_password",
				ConfirmPassword: "secure_password",
			}
			gomega.Expect(validation.Struct(dto)).ToNot(gomega.BeNil())
		})

		ginkgo.It("should reject mismatched password confirmation", func() {
			dto := RegisterDTO{
				Email:           "new@example.com",
				Password:        "secure_password",
				ConfirmPassword: "other_password",
			}
			gomega.Expect(validation.Struct(dto)).ToNot(gomega.BeNil())
		})
	})

	ginkgo.Describe("ChangePasswordDTO", func() {
		ginkgo.It("should reject mismatched confirmation", func() {
			dto := ChangePasswordDTO{
				CurrentPassword: "old_password",
				NewPassword:     "new_password",
				ConfirmPassword: "different_password",
			}
			err := validation.Struct(dto)
			gomega.Expect(err).ToNot(gomega.BeNil())
			gomega.Expect(err.Code).To(gomega.Equal(apperrors.ErrCodeValidationFailed))
		})

		ginkgo.It("should reject a short new password", func() {
			dto := ChangePasswordDTO{
				CurrentPassword: "old_password",
				NewPassword:     "short",
				ConfirmPassword: "short",
			}
			gomega.Expect(validation.Struct(dto)).ToNot(gomega.BeNil())
		})
	})
})
