package user

import "time"

type User struct {
	ID                        string     `gorm:"column:id;primaryKey"`
	Email                     string     `gorm:"column:email;uniqueIndex;not null"`
	Username                  *string    `gorm:"column:username;uniqueIndex"`
	HashedPassword            string     `gorm:"column:hashed_password;not null"`
	FirstName                 *string    `gorm:"column:first_name"`
	LastName                  *string    `gorm:"column:last_name"`
	Phone                     *string    `gorm:"column:phone"`
	AvatarURL                 *string    `gorm:"column:avatar_url"`
	Bio                       *string    `gorm:"column:bio"`
	IsActive                  bool       `gorm:"column:is_active;default:true"`
	IsVerified                bool       `gorm:"column:is_verified;default:false"`
	IsSuperuser               bool       `gorm:"column:is_superuser;default:false"`
	VerificationToken         *string    `gorm:"column:verification_token"`
	VerificationTokenExpires  *time.Time `gorm:"column:verification_token_expires"`
	PasswordResetToken        *string    `gorm:"column:password_reset_token"`
	PasswordResetTokenExpires *time.Time `gorm:"column:password_reset_token_expires"`
	OAuthProvider             *string    `gorm:"column:oauth_provider"`
	OAuthID                   *string    `gorm:"column:oauth_id"`
	LastLogin                 *time.Time `gorm:"column:last_login"`
	CreatedAt                 time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
