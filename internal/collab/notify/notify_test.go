package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/models"
)

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func record() models.BookingRecord {
	return models.BookingRecord{
		BookingID:    "bk-1",
		Name:         "John",
		Email:        "john@x.com",
		Phone:        "+15551234567",
		MeetingAt:    time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC),
		MeetingTitle: "Call with John",
		MeetingLink:  "https://meet/1",
	}
}

func TestBookingConfirmed(t *testing.T) {
	email := new(MockEmailSender)
	sms := new(MockSMSSender)

	email.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "bookings@x.com" &&
			in.Destination.ToAddresses[0] == "john@x.com" &&
			strings.Contains(aws.ToString(in.Message.Body.Text.Data), "Wednesday, March 5, 2025 at 3:00 PM UTC")
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil)
	sms.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_, hasSender := in.MessageAttributes["AWS.SNS.SMS.SenderID"]
		return aws.ToString(in.PhoneNumber) == "+15551234567" && hasSender
	})).Return(&sns.PublishOutput{MessageId: aws.String("s-1")}, nil)

	n := New(Config{FromEmail: "bookings@x.com", SenderID: "Bookings"}, email, sms, logger.NewTestLogger(t))
	assert.NoError(t, n.BookingConfirmed(context.Background(), record()))

	email.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestBookingConfirmed_ReportsEachFailedChannel(t *testing.T) {
	email := new(MockEmailSender)
	sms := new(MockSMSSender)
	email.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	sms.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("opted out"))

	err := New(Config{}, email, sms, nil).BookingConfirmed(context.Background(), record())

	assert.True(t, errors.Is(err, ErrEmailFailed))
	assert.True(t, errors.Is(err, ErrSMSFailed))
}

func TestBookingConfirmed_DisabledChannels(t *testing.T) {
	assert.NoError(t, New(Config{}, nil, nil, nil).BookingConfirmed(context.Background(), record()))

	sms := new(MockSMSSender)
	rec := record()
	rec.Phone = ""
	assert.NoError(t, New(Config{}, nil, sms, nil).BookingConfirmed(context.Background(), rec))
	sms.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
