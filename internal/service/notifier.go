package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"parkhub/internal/db"
	"parkhub/internal/repository"
)

// NotifierConfig carries the outbound channel credentials. Empty credentials
// disable the corresponding channel; a fully empty config disables the
// notifier entirely.
type NotifierConfig struct {
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
}

// Notifier sends booking lifecycle email/SMS. Sends are fire-and-forget
// goroutines: they never block or fail the mutation that triggered them. A
// nil *Notifier is valid and does nothing.
type Notifier struct {
	contacts repository.UserContactRepository
	cfg      NotifierConfig
}

func NewNotifier(contacts repository.UserContactRepository, cfg NotifierConfig) *Notifier {
	return &Notifier{contacts: contacts, cfg: cfg}
}

// BookingStatusChanged delivers the title/message pair for a booking to its
// owner over every configured channel.
func (n *Notifier) BookingStatusChanged(booking *db.Booking, title, message string) {
	if n == nil {
		return
	}
	if n.cfg.SendGridAPIKey == "" && n.cfg.TwilioAccountSID == "" {
		return
	}

	userID := booking.UserID
	bookingID := booking.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		contact, err := n.contacts.GetContact(ctx, userID)
		if err != nil {
			log.Printf("notifier: looking up contact for user %d (booking %d): %v", userID, bookingID, err)
			return
		}

		if contact.Email != "" && n.cfg.SendGridAPIKey != "" {
			if err := n.sendEmail(contact.Name, contact.Email, title, message); err != nil {
				log.Printf("notifier: email for booking %d: %v", bookingID, err)
			}
		}
		if contact.Phone != "" && n.cfg.TwilioAccountSID != "" {
			if err := n.sendSMS(contact.Phone, fmt.Sprintf("%s: %s", title, message)); err != nil {
				log.Printf("notifier: SMS for booking %d: %v", bookingID, err)
			}
		}
	}()
}

func (n *Notifier) sendEmail(toName, toEmail, subject, body string) error {
	fromName := n.cfg.SendGridFromName
	if fromName == "" {
		fromName = "ParkHub"
	}
	if n.cfg.SendGridFromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL is not configured")
	}

	from := mail.NewEmail(fromName, n.cfg.SendGridFromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	client := sendgrid.NewSendClient(n.cfg.SendGridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sending via SendGrid: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("SendGrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func (n *Notifier) sendSMS(toNumber, body string) error {
	if n.cfg.TwilioAuthToken == "" || n.cfg.TwilioFromNumber == "" {
		return fmt.Errorf("twilio credentials are not fully configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("notifier: destination number %q is not E.164, the SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: n.cfg.TwilioAccountSID,
		Password: n.cfg.TwilioAuthToken,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(n.cfg.TwilioFromNumber)
	params.SetBody(body)

	if _, err := client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("sending via Twilio: %w", err)
	}
	return nil
}
