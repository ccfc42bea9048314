// Package notify tells the caller their booking is confirmed by email and SMS.
// Delivery is best effort: failures are reported but never undo a booking.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

var (
	ErrEmailFailed = errors.New("EMAIL_SEND_FAILED")
	ErrSMSFailed   = errors.New("SMS_SEND_FAILED")
)

const timeLayout = "Monday, January 2, 2006 at 3:04 PM MST"

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Config struct {
	FromEmail string
	SenderID  string
	Location  *time.Location
}

// Notifier sends confirmations. A nil sender disables that channel.
type Notifier struct {
	cfg    Config
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func New(cfg Config, email EmailSender, sms SMSSender, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Notifier{cfg: cfg, email: email, sms: sms, logger: log}
}

// BookingConfirmed notifies on every enabled channel and returns the joined
// errors of the channels that failed.
func (n *Notifier) BookingConfirmed(ctx context.Context, rec models.BookingRecord) error {
	var errs []error
	if n.email != nil && rec.Email != "" {
		if err := n.sendEmail(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	if n.sms != nil && rec.Phone != "" {
		if err := n.sendSMS(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) sendEmail(ctx context.Context, rec models.BookingRecord) error {
	out, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.cfg.FromEmail),
		Destination: &sestypes.Destination{ToAddresses: []string{rec.Email}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String("Your call is booked: " + rec.MeetingTitle)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(n.emailBody(rec))},
			},
		},
	})
	if err != nil {
		n.logger.Warn("confirmation email failed", map[string]interface{}{
			"bookingId": rec.BookingID,
			"error":     err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrEmailFailed, err)
	}

	n.logger.Info("confirmation email sent", map[string]interface{}{
		"bookingId": rec.BookingID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

func (n *Notifier) sendSMS(ctx context.Context, rec models.BookingRecord) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(rec.Phone),
		Message:     aws.String(n.smsBody(rec)),
	}
	if n.cfg.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.cfg.SenderID),
			},
		}
	}

	out, err := n.sms.Publish(ctx, input)
	if err != nil {
		n.logger.Warn("confirmation sms failed", map[string]interface{}{
			"bookingId": rec.BookingID,
			"error":     err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrSMSFailed, err)
	}

	n.logger.Info("confirmation sms sent", map[string]interface{}{
		"bookingId": rec.BookingID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}

func (n *Notifier) emailBody(rec models.BookingRecord) string {
	body := fmt.Sprintf("Hi %s,\n\nYour call is booked for %s.\nBooking reference: %s\n",
		rec.Name, rec.MeetingAt.In(n.cfg.Location).Format(timeLayout), rec.BookingID)
	if rec.MeetingLink != "" {
		body += "Join here: " + rec.MeetingLink + "\n"
	}
	return body
}

func (n *Notifier) smsBody(rec models.BookingRecord) string {
	return fmt.Sprintf("Booked: %s on %s. Ref %s",
		rec.MeetingTitle, rec.MeetingAt.In(n.cfg.Location).Format("Jan 2 3:04 PM MST"), rec.BookingID)
}
