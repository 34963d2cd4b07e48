package services

import (
	"context"
	"fmt"

	"notetracker/internal/config"
	"notetracker/internal/models"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// mailClient is the part of the SendGrid client the email channel uses
type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailService delivers reminders by email through SendGrid
type EmailService struct {
	client    mailClient
	fromEmail string
	fromName  string
}

func NewEmailService(cfg config.SendGridConfig) *EmailService {
	var client mailClient
	if cfg.Enabled() {
		client = sendgrid.NewSendClient(cfg.APIKey)
	}
	return &EmailService{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *EmailService) Name() string { return models.ChannelEmail }

// Deliver sends the reminder email to the recipient's address
func (s *EmailService) Deliver(ctx context.Context, recipient models.Recipient, msg RenderedMessage) models.Outcome {
	return OutcomeFromError(s.send(ctx, recipient, msg))
}

func (s *EmailService) send(ctx context.Context, recipient models.Recipient, msg RenderedMessage) error {
	if s.client == nil {
		return fmt.Errorf("%w: email credentials not configured", ErrConfigurationSkip)
	}
	if recipient.Address == "" {
		return fmt.Errorf("%w: no email address", ErrConfigurationSkip)
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(recipient.Name, recipient.Address)
	subject := fmt.Sprintf("%s: %s", msg.Subject, msg.SafeTitle)

	message := mail.NewSingleEmail(from, subject, to, msg.Text, msg.HTML)
	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientDeliveryFailure, err)
	}

	switch {
	case response.StatusCode >= 500 || response.StatusCode == 429:
		return fmt.Errorf("%w: sendgrid returned %d", ErrTransientDeliveryFailure, response.StatusCode)
	case response.StatusCode >= 400:
		return fmt.Errorf("%w: sendgrid returned %d for %s", ErrPermanentDeliveryFailure, response.StatusCode, recipient.Address)
	}
	return nil
}
