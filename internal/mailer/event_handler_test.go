package mailer

import (
	"context"
	"errors"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/fajarnugraha/identity-service/internal/core/events"
)

type mockSender struct {
	jobs []EmailJob
	err  error
}

func (m *mockSender) Send(job EmailJob) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

var _ = ginkgo.Describe("EventHandler", func() {
	var (
		sender  *mockSender
		handler *EventHandler
	)

	ginkgo.BeforeEach(func() {
		sender = &mockSender{}
		handler = NewEventHandler(sender, "https://app.example.com", testLogger)
	})

	ginkgo.Context("when a user registers", func() {
		ginkgo.It("should send a verification email carrying the token", func() {
			// Given
			event := events.NewUserRegisteredEvent("user-1", "ada@example.com", "tok-123")

			// When
			err := handler.HandleUserRegistered(context.Background(), event)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.HaveLen(1))
			gomega.Expect(sender.jobs[0].To).To(gomega.Equal("ada@example.com"))
			gomega.Expect(sender.jobs[0].Subject).To(gomega.Equal("Verify your email address"))
			gomega.Expect(sender.jobs[0].Body).To(gomega.ContainSubstring("/verify-email?token=tok-123"))
		})
	})

	ginkgo.Context("when verification is resent", func() {
		ginkgo.It("should send a fresh verification email", func() {
			// Given
			event := events.NewVerificationResentEvent("user-1", "ada@example.com", "tok-456")

			// When
			err := handler.HandleVerificationResent(context.Background(), event)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.HaveLen(1))
			gomega.Expect(sender.jobs[0].Body).To(gomega.ContainSubstring("/verify-email?token=tok-456"))
		})
	})

	ginkgo.Context("when an email address is verified", func() {
		ginkgo.It("should send the welcome email", func() {
			// Given
			event := events.NewUserEmailVerifiedEvent("user-1", "ada@example.com")

			// When
			err := handler.HandleUserEmailVerified(context.Background(), event)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.HaveLen(1))
			gomega.Expect(sender.jobs[0].Subject).To(gomega.Equal("Your account is ready"))
			gomega.Expect(sender.jobs[0].Body).To(gomega.ContainSubstring("/login"))
		})
	})

	ginkgo.Context("when a password reset is requested", func() {
		ginkgo.It("should send the reset email carrying the token", func() {
			// Given
			event := events.NewPasswordResetRequestedEvent("ada@example.com", "reset-789")

			// When
			err := handler.HandlePasswordResetRequested(context.Background(), event)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.HaveLen(1))
			gomega.Expect(sender.jobs[0].To).To(gomega.Equal("ada@example.com"))
			gomega.Expect(sender.jobs[0].Body).To(gomega.ContainSubstring("/reset-password?token=reset-789"))
		})
	})

	ginkgo.Context("when a password is changed", func() {
		ginkgo.It("should send the change notice", func() {
			// Given
			event := events.NewUserPasswordChangedEvent("user-1", "ada@example.com")

			// When
			err := handler.HandleUserPasswordChanged(context.Background(), event)

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.HaveLen(1))
			gomega.Expect(sender.jobs[0].Subject).To(gomega.Equal("Your password was changed"))
		})
	})

	ginkgo.Context("when the event payload has the wrong type", func() {
		ginkgo.It("should reject it without sending anything", func() {
			// Given
			wrong := events.NewUserEmailVerifiedEvent("user-1", "ada@example.com")

			// When
			registeredErr := handler.HandleUserRegistered(context.Background(), wrong)
			resetErr := handler.HandlePasswordResetRequested(context.Background(), wrong)

			// Then
			gomega.Expect(registeredErr).To(gomega.HaveOccurred())
			gomega.Expect(resetErr).To(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.BeEmpty())
		})
	})

	ginkgo.Context("when the sender fails", func() {
		ginkgo.It("should surface the delivery error", func() {
			// Given
			sender.err = errors.New("delivery backend down")

			// When
			err := handler.HandleUserEmailVerified(context.Background(), events.NewUserEmailVerifiedEvent("user-1", "ada@example.com"))

			// Then
			gomega.Expect(err).To(gomega.MatchError("delivery backend down"))
		})
	})

	ginkgo.Context("when registered on the event bus", func() {
		ginkgo.It("should receive published lifecycle events", func() {
			// Given
			bus := events.NewEventBus(testLogger)
			handler.RegisterEventHandlers(bus)

			// When
			err := bus.PublishSync(context.Background(), events.NewUserRegisteredEvent("user-1", "ada@example.com", "tok-123"))

			// Then
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(sender.jobs).To(gomega.HaveLen(1))
			gomega.Expect(sender.jobs[0].Subject).To(gomega.Equal("Verify your email address"))
		})

		ginkgo.It("should propagate handler failures on synchronous publishes", func() {
			// Given
			bus := events.NewEventBus(testLogger)
			handler.RegisterEventHandlers(bus)
			sender.err = errors.New("delivery backend down")

			// When
			err := bus.PublishSync(context.Background(), events.NewUserPasswordChangedEvent("user-1", "ada@example.com"))

			// Then
			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(err.Error()).To(gomega.ContainSubstring("user.password_changed"))
		})
	})
})
