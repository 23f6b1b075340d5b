package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fajarnugraha/identity-service/internal/core/events"
)

type Sender interface {
	Send(job EmailJob) error
}

// EventHandler turns account lifecycle events into outbound emails. It runs
// on the event bus, off the request path, so a mail failure surfaces only in
// the logs.
type EventHandler struct {
	sender      Sender
	frontendURL string
	logger      *slog.Logger
}

func NewEventHandler(sender Sender, frontendURL string, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		sender:      sender,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

func (h *EventHandler) HandleUserRegistered(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.UserRegisteredEvent)
	if !ok {
		h.logger.Error("invalid event type for user registered handler", "event_type", event.EventType())
		return fmt.Errorf("expected UserRegisteredEvent, got %T", event)
	}

	h.logger.Info("sending verification email", "user_id", evt.UserID, "event_id", evt.EventID())
	return h.sender.Send(VerificationEmail(evt.Email, h.frontendURL, evt.VerificationToken))
}

func (h *EventHandler) HandleVerificationResent(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.VerificationResentEvent)
	if !ok {
		h.logger.Error("invalid event type for verification resent handler", "event_type", event.EventType())
		return fmt.Errorf("expected VerificationResentEvent, got %T", event)
	}

	h.logger.Info("resending verification email", "user_id", evt.UserID, "event_id", evt.EventID())
	return h.sender.Send(VerificationEmail(evt.Email, h.frontendURL, evt.VerificationToken))
}

func (h *EventHandler) HandleUserEmailVerified(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.UserEmailVerifiedEvent)
	if !ok {
		h.logger.Error("invalid event type for email verified handler", "event_type", event.EventType())
		return fmt.Errorf("expected UserEmailVerifiedEvent, got %T", event)
	}

	h.logger.Info("sending welcome email", "user_id", evt.UserID, "event_id", evt.EventID())
	return h.sender.Send(WelcomeEmail(evt.Email, h.frontendURL))
}

func (h *EventHandler) HandlePasswordResetRequested(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.PasswordResetRequestedEvent)
	if !ok {
		h.logger.Error("invalid event type for password reset handler", "event_type", event.EventType())
		return fmt.Errorf("expected PasswordResetRequestedEvent, got %T", event)
	}

	h.logger.Info("sending password reset email", "event_id", evt.EventID())
	return h.sender.Send(PasswordResetEmail(evt.Email, h.frontendURL, evt.ResetToken))
}

func (h *EventHandler) HandleUserPasswordChanged(ctx context.Context, event events.Event) error {
	evt, ok := event.(*events.UserPasswordChangedEvent)
	if !ok {
		h.logger.Error("invalid event type for password changed handler", "event_type", event.EventType())
		return fmt.Errorf("expected UserPasswordChangedEvent, got %T", event)
	}

	h.logger.Info("sending password changed email", "user_id", evt.UserID, "event_id", evt.EventID())
	return h.sender.Send(PasswordChangedEmail(evt.Email))
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeUserRegistered, h.HandleUserRegistered)
	eventBus.Subscribe(events.EventTypeVerificationResent, h.HandleVerificationResent)
	eventBus.Subscribe(events.EventTypeUserEmailVerified, h.HandleUserEmailVerified)
	eventBus.Subscribe(events.EventTypePasswordResetRequested, h.HandlePasswordResetRequested)
	eventBus.Subscribe(events.EventTypeUserPasswordChanged, h.HandleUserPasswordChanged)

	h.logger.Info("mailer event handlers registered",
		"handlers", []string{
			events.EventTypeUserRegistered,
			events.EventTypeVerificationResent,
			events.EventTypeUserEmailVerified,
			events.EventTypePasswordResetRequested,
			events.EventTypeUserPasswordChanged,
		})
}
