package auth

import (
	"time"

	"github.com/google/uuid"

	userDatamodel "github.com/fajarnugraha/identity-service/internal/core/datamodel/user"
)

// Account is the credential-facing view of a user record used by the
// lifecycle operations. Profile administration lives in the user package.
type Account struct {
	ID                        string     `json:"id"`
	Email                     string     `json:"email"`
	Username                  *string    `json:"username,omitempty"`
	HashedPassword            string     `json:"-"`
	FirstName                 *string    `json:"first_name,omitempty"`
	LastName                  *string    `json:"last_name,omitempty"`
	IsActive                  bool       `json:"is_active"`
	IsVerified                bool       `json:"is_verified"`
	IsSuperuser               bool       `json:"is_superuser"`
	VerificationToken         *string    `json:"-"`
	VerificationTokenExpires  *time.Time `json:"-"`
	PasswordResetToken        *string    `json:"-"`
	PasswordResetTokenExpires *time.Time `json:"-"`
	LastLogin                 *time.Time `json:"last_login,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// MatchesResetToken reports whether the presented token equals the stored
// one. A token that was superseded by a newer request no longer matches.
func (a *Account) MatchesResetToken(token string) bool {
	return a.PasswordResetToken != nil && *a.PasswordResetToken == token
}

func (a *Account) ResetTokenExpired(now time.Time) bool {
	return a.PasswordResetTokenExpires == nil || now.After(*a.PasswordResetTokenExpires)
}

func NewAccount(dto RegisterDTO, hashedPassword string) *Account {
	now := time.Now()

	return &Account{
		ID:             uuid.New().String(),
		Email:          dto.Email,
		Username:       dto.Username,
		HashedPassword: hashedPassword,
		FirstName:      dto.FirstName,
		LastName:       dto.LastName,
		IsActive:       true,
		IsVerified:     false,
		IsSuperuser:    false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func ToDataModel(a *Account) *userDatamodel.User {
	return &userDatamodel.User{
		ID:                        a.ID,
		Email:                     a.Email,
		Username:                  a.Username,
		HashedPassword:            a.HashedPassword,
		FirstName:                 a.FirstName,
		LastName:                  a.LastName,
		IsActive:                  a.IsActive,
		IsVerified:                a.IsVerified,
		IsSuperuser:               a.IsSuperuser,
		VerificationToken:         a.VerificationToken,
		VerificationTokenExpires:  a.VerificationTokenExpires,
		PasswordResetToken:        a.PasswordResetToken,
		PasswordResetTokenExpires: a.PasswordResetTokenExpires,
		LastLogin:                 a.LastLogin,
		CreatedAt:                 a.CreatedAt,
		UpdatedAt:                 a.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *Account {
	return &Account{
		ID:                        u.ID,
		Email:                     u.Email,
		Username:                  u.Username,
		HashedPassword:            u.HashedPassword,
		FirstName:                 u.FirstName,
		LastName:                  u.LastName,
		IsActive:                  u.IsActive,
		IsVerified:                u.IsVerified,
		IsSuperuser:               u.IsSuperuser,
		VerificationToken:         u.VerificationToken,
		VerificationTokenExpires:  u.VerificationTokenExpires,
		PasswordResetToken:        u.PasswordResetToken,
		PasswordResetTokenExpires: u.PasswordResetTokenExpires,
		LastLogin:                 u.LastLogin,
		CreatedAt:                 u.CreatedAt,
		UpdatedAt:                 u.UpdatedAt,
	}
}
