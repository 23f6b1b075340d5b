package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered         = "user.registered"
	EventTypeVerificationResent     = "user.verification_resent"
	EventTypeUserEmailVerified      = "user.email_verified"
	EventTypeUserPasswordChanged    = "user.password_changed"
	EventTypePasswordResetRequested = "user.password_reset_requested"
	EventTypeUserRolesChanged       = "user.roles_changed"
)

type UserRegisteredEvent struct {
	BaseEvent
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

func NewUserRegisteredEvent(userID, email, verificationToken string) *UserRegisteredEvent {
	return &UserRegisteredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserRegistered,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":            userID,
				"email":              email,
				"verification_token": verificationToken,
			},
		},
		UserID:            userID,
		Email:             email,
		VerificationToken: verificationToken,
	}
}

type VerificationResentEvent struct {
	BaseEvent
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

func NewVerificationResentEvent(userID, email, verificationToken string) *VerificationResentEvent {
	return &VerificationResentEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeVerificationResent,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":            userID,
				"email":              email,
				"verification_token": verificationToken,
			},
		},
		UserID:            userID,
		Email:             email,
		VerificationToken: verificationToken,
	}
}

type UserEmailVerifiedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func NewUserEmailVerifiedEvent(userID, email string) *UserEmailVerifiedEvent {
	return &UserEmailVerifiedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserEmailVerified,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID: userID,
		Email:  email,
	}
}

type UserPasswordChangedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func NewUserPasswordChangedEvent(userID, email string) *UserPasswordChangedEvent {
	return &UserPasswordChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserPasswordChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID: userID,
		Email:  email,
	}
}

type PasswordResetRequestedEvent struct {
	BaseEvent
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

func NewPasswordResetRequestedEvent(email, resetToken string) *PasswordResetRequestedEvent {
	return &PasswordResetRequestedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePasswordResetRequested,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"email":       email,
				"reset_token": resetToken,
			},
		},
		Email:      email,
		ResetToken: resetToken,
	}
}

type UserRolesChangedEvent struct {
	BaseEvent
	UserID    string  `json:"user_id"`
	Operation string  `json:"operation"`
	RoleIDs   []int64 `json:"role_ids"`
}

func NewUserRolesChangedEvent(userID, operation string, roleIDs []int64) *UserRolesChangedEvent {
	return &UserRolesChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserRolesChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"operation": operation,
				"role_ids":  roleIDs,
			},
		},
		UserID:    userID,
		Operation: operation,
		RoleIDs:   roleIDs,
	}
}
