package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/collab/genai"
	"booking-assistant/internal/models"
)

type MockFieldExtractor struct {
	mock.Mock
}

func (m *MockFieldExtractor) ExtractBookingFields(ctx context.Context, req genai.ExtractRequest) (*genai.ExtractResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.ExtractResponse), args.Error(1)
}

func TestLLMExtractor(t *testing.T) {
	utterance := "I'm john smith, JOHN@X.COM, 555-123-4567, tomorrow 3pm"
	client := new(MockFieldExtractor)
	client.On("ExtractBookingFields", mock.Anything, mock.Anything).Return(&genai.ExtractResponse{
		Name:  "john smith",
		Phone: "555-123-4567",
		Email: "JOHN@X.COM",
		When:  "tomorrow 3pm",
	}, nil)

	res, err := NewLLMExtractor(client, "1").Extract(context.Background(), utterance)
	require.NoError(t, err)

	name := res.Candidates[models.SlotName]
	assert.Equal(t, "John Smith", name.Value)
	assert.True(t, name.Valid)
	assert.Equal(t, "john smith", utterance[name.Span.Start:name.Span.End])

	assert.Equal(t, "+15551234567", res.Candidates[models.SlotPhone].Value)
	assert.Equal(t, "john@x.com", res.Candidates[models.SlotEmail].Value)
	assert.Equal(t, "tomorrow 3pm", res.Candidates[models.SlotWhen].Raw)
}

func TestLLMExtractor_InvalidAndMissing(t *testing.T) {
	client := new(MockFieldExtractor)
	client.On("ExtractBookingFields", mock.Anything, mock.Anything).
		Return(&genai.ExtractResponse{Email: "john@", Phone: "12"}, nil)

	res, err := NewLLMExtractor(client, "1").Extract(context.Background(), "john@ 12")
	require.NoError(t, err)
	assert.False(t, res.Candidates[models.SlotEmail].Valid)
	assert.False(t, res.Candidates[models.SlotPhone].Valid)
	assert.NotContains(t, res.Candidates, models.SlotName)
	assert.NotContains(t, res.Candidates, models.SlotWhen)
}

func TestLLMExtractor_ClientError(t *testing.T) {
	client := new(MockFieldExtractor)
	client.On("ExtractBookingFields", mock.Anything, mock.Anything).Return(nil, errors.New("503"))

	_, err := NewLLMExtractor(client, "1").Extract(context.Background(), "hi")
	assert.True(t, errors.Is(err, ErrExtractionFailed))
}
