package user

import (
	"time"

	"github.com/fajarnugraha/identity-service/internal/core/validation"
)

// CreateUserDTO is the admin create payload. Unlike self registration there
// is no confirmation field and the account flags can be set directly.
type CreateUserDTO struct {
	Email       string  `json:"email" validate:"required,email"`
	Username    *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,username"`
	Password    string  `json:"password" validate:"required,min=8,max=128"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

func (d CreateUserDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

// UpdateProfileDTO is the self-service patch. Nil fields stay unchanged.
type UpdateProfileDTO struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,username"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=255"`
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=500"`
}

func (d UpdateProfileDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

// AdminUpdateUserDTO extends the profile patch with fields only
// administrators may touch.
type AdminUpdateUserDTO struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Username    *string `json:"username,omitempty" validate:"omitempty,min=3,max=50,username"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=255"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

func (d AdminUpdateUserDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	return nil
}

type ListUsersParams struct {
	Search      string
	IsActive    *bool
	IsVerified  *bool
	IsSuperuser *bool
	Limit       int
	Offset      int
}

type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    *string    `json:"username,omitempty"`
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	AvatarURL   *string    `json:"avatar_url,omitempty"`
	Bio         *string    `json:"bio,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsVerified  bool       `json:"is_verified"`
	IsSuperuser bool       `json:"is_superuser"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		IsSuperuser: u.IsSuperuser,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type UserListResponse struct {
	Items  []*UserResponse `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Pages  int64           `json:"pages"`
}

type UserStats struct {
	TotalUsers    int64 `json:"total_users"`
	ActiveUsers   int64 `json:"active_users"`
	VerifiedUsers int64 `json:"verified_users"`
	Superusers    int64 `json:"superusers"`
}

// MeResponse is the current user's profile enriched with resolved roles and
// effective permissions.
type MeResponse struct {
	UserResponse
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
