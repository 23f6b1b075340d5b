package user

import (
	"strings"
	"time"

	userDatamodel "github.com/fajarnugraha/identity-service/internal/core/datamodel/user"
)

// User is the profile-facing view of an account. Credential material stays
// behind json:"-" and only the admin create path ever sets it.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Username       *string    `json:"username,omitempty"`
	HashedPassword string     `json:"-"`
	FirstName      *string    `json:"first_name,omitempty"`
	LastName       *string    `json:"last_name,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	AvatarURL      *string    `json:"avatar_url,omitempty"`
	Bio            *string    `json:"bio,omitempty"`
	IsActive       bool       `json:"is_active"`
	IsVerified     bool       `json:"is_verified"`
	IsSuperuser    bool       `json:"is_superuser"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName joins the name parts, empty when neither is set.
func (u *User) FullName() string {
	parts := make([]string, 0, 2)
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	return strings.Join(parts, " ")
}

// DisplayName prefers the full name, then username, then the email.
func (u *User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:             u.ID,
		Email:          u.Email,
		Username:       u.Username,
		HashedPassword: u.HashedPassword,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Phone:          u.Phone,
		AvatarURL:      u.AvatarURL,
		Bio:            u.Bio,
		IsActive:       u.IsActive,
		IsVerified:     u.IsVerified,
		IsSuperuser:    u.IsSuperuser,
		LastLogin:      u.LastLogin,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func FromDataModel(dm *userDatamodel.User) *User {
	return &User{
		ID:             dm.ID,
		Email:          dm.Email,
		Username:       dm.Username,
		HashedPassword: dm.HashedPassword,
		FirstName:      dm.FirstName,
		LastName:       dm.LastName,
		Phone:          dm.Phone,
		AvatarURL:      dm.AvatarURL,
		Bio:            dm.Bio,
		IsActive:       dm.IsActive,
		IsVerified:     dm.IsVerified,
		IsSuperuser:    dm.IsSuperuser,
		LastLogin:      dm.LastLogin,
		CreatedAt:      dm.CreatedAt,
		UpdatedAt:      dm.UpdatedAt,
	}
}
