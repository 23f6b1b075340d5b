package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/fajarnugraha/identity-service/internal"
)

// Token kinds carried in the "type" claim. Verification matches the kind
// explicitly and never infers it from token shape or lifetime.
const (
	TokenTypeAccess            = "access"
	TokenTypeRefresh           = "refresh"
	TokenTypeEmailVerification = "email_verification"
	TokenTypePasswordReset     = "password_reset"
)

// Claims represents JWT token claims. Access and refresh tokens carry the
// user id as subject plus the email claim; verification and reset tokens
// carry the email address as subject.
type Claims struct {
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenGenerator creates and verifies the four token kinds.
type TokenGenerator interface {
	GenerateAccessToken(userID, email string) (string, error)
	GenerateRefreshToken(userID, email string) (string, error)
	GenerateEmailVerificationToken(email string) (string, error)
	GeneratePasswordResetToken(email string) (string, error)
	ValidateToken(tokenString, tokenType string) (*Claims, error)
	DecodeToken(tokenString string) *Claims
	AccessTTL() time.Duration
	VerifyTTL() time.Duration
	ResetTTL() time.Duration
}

// ServiceAPI performs account lifecycle and authentication business logic.
type ServiceAPI interface {
	Register(dto RegisterDTO) (*Account, error)
	Login(dto LoginDTO) (*TokenResponse, error)
	RefreshTokens(refreshToken string) (*TokenResponse, error)
	VerifyEmail(token string) error
	ResendVerification(email string) error
	ForgotPassword(email string) error
	ResetPassword(dto ResetPasswordDTO) error
	ChangePassword(userID string, dto ChangePasswordDTO) error
	ValidateAccessToken(token string) (*Principal, error)
}

// JWTTokenGenerator signs every token kind with one symmetric secret (HS256).
type JWTTokenGenerator struct {
	Secret          []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	VerifyTokenTTL  time.Duration
	ResetTokenTTL   time.Duration
}

func NewJWTTokenGenerator(secret string, accessTTL, refreshTTL, verifyTTL, resetTTL time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		Secret:          []byte(secret),
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
		VerifyTokenTTL:  verifyTTL,
		ResetTokenTTL:   resetTTL,
	}
}

func (j *JWTTokenGenerator) AccessTTL() time.Duration {
	return j.AccessTokenTTL
}

func (j *JWTTokenGenerator) VerifyTTL() time.Duration {
	return j.VerifyTokenTTL
}

func (j *JWTTokenGenerator) ResetTTL() time.Duration {
	return j.ResetTokenTTL
}

// GenerateAccessToken creates a short-lived token identifying the user.
func (j *JWTTokenGenerator) GenerateAccessToken(userID, email string) (string, error) {
	return j.signToken(userID, email, TokenTypeAccess, j.AccessTokenTTL)
}

// GenerateRefreshToken creates a long-lived token used to obtain new pairs.
func (j *JWTTokenGenerator) GenerateRefreshToken(userID, email string) (string, error) {
	return j.signToken(userID, email, TokenTypeRefresh, j.RefreshTokenTTL)
}

// GenerateEmailVerificationToken creates a token whose subject is the email
// address to verify.
func (j *JWTTokenGenerator) GenerateEmailVerificationToken(email string) (string, error) {
	return j.signToken(email, "", TokenTypeEmailVerification, j.VerifyTokenTTL)
}

// GeneratePasswordResetToken creates a token whose subject is the email
// address requesting the reset.
func (j *JWTTokenGenerator) GeneratePasswordResetToken(email string) (string, error) {
	return j.signToken(email, "", TokenTypePasswordReset, j.ResetTokenTTL)
}

func (j *JWTTokenGenerator) signToken(subject, email, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ValidateToken verifies signature, expiry and the expected token kind. Any
// failure comes back as a generic invalid or expired error so callers cannot
// leak verification detail.
func (j *JWTTokenGenerator) ValidateToken(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}

	return claims, nil
}

// DecodeToken parses a token without requiring a kind and returns nil on any
// failure.
func (j *JWTTokenGenerator) DecodeToken(tokenString string) *Claims {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	})
	if err != nil {
		return nil
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil
	}
	return claims
}

// HashPassword creates a bcrypt hash of the password.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plain password matches the stored hash.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateVerificationCode returns a string of cryptographically random
// decimal digits.
func GenerateVerificationCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

// GenerateSecureToken returns a URL-safe random token built from numBytes of
// cryptographically secure randomness.
func GenerateSecureToken(numBytes int) (string, error) {
	if numBytes <= 0 {
		numBytes = 32
	}

	raw := make([]byte, numBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
