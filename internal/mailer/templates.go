package mailer

import (
	"fmt"
	"strings"
)

// Message builders. Bodies are deliberately plain text so they render the
// same everywhere; the frontend URL comes from configuration.

func VerificationEmail(to, frontendURL, token string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Verify your email address",
		Body: fmt.Sprintf(
			"Welcome! Please confirm your email address by opening the link below:\n\n%s?token=%s\n\nIf you did not create an account, you can safely ignore this message.",
			link(frontendURL, "/verify-email"), token),
	}
}

func WelcomeEmail(to, frontendURL string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Your account is ready",
		Body: fmt.Sprintf(
			"Your email address has been verified and your account is ready to use.\n\nSign in at %s",
			link(frontendURL, "/login")),
	}
}

func PasswordResetEmail(to, frontendURL, token string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf(
			"We received a request to reset your password. Open the link below to choose a new one:\n\n%s?token=%s\n\nIf you did not request this, you can safely ignore this message.",
			link(frontendURL, "/reset-password"), token),
	}
}

func PasswordChangedEmail(to string) EmailJob {
	return EmailJob{
		To:      to,
		Subject: "Your password was changed",
		Body:    "The password for your account was just changed. If this was not you, reset your password immediately.",
	}
}

func link(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}
