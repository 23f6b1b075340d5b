package auth

import (
	"time"

	"github.com/fajarnugraha/identity-service/internal/core/validation"
)

type RegisterDTO struct {
	Email           string  `json:"email" validate:"required,email"`
	Username        *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,username"`
	Password        string  `json:"password" validate:"required,min=8,max=128"`
	ConfirmPassword string  `json:"confirm_password" validate:"required,eqfield=Password"`
	FirstName       *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName        *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

func (d RegisterDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (d LoginDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (d RefreshTokenDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type VerifyEmailDTO struct {
	Token string `json:"token" validate:"required"`
}

func (d VerifyEmailDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ResendVerificationDTO struct {
	Email string `json:"email" validate:"required,email"`
}

func (d ResendVerificationDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ForgotPasswordDTO struct {
	Email string `json:"email" validate:"required,email"`
}

func (d ForgotPasswordDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ResetPasswordDTO struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (d ResetPasswordDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}

func (d ChangePasswordDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

// TokenResponse is the login and refresh payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccountResponse is the public shape of a registered account.
type AccountResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   *string    `json:"username,omitempty"`
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (a *Account) ToResponse() AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		Email:      a.Email,
		Username:   a.Username,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		IsActive:   a.IsActive,
		IsVerified: a.IsVerified,
		LastLogin:  a.LastLogin,
		CreatedAt:  a.CreatedAt,
	}
}

// MessageResponse carries the neutral acknowledgement used by operations
// that must not reveal whether an email address is registered.
type MessageResponse struct {
	Message string `json:"message"`
}
