package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"booking-assistant/internal/collab/genai"
	"booking-assistant/internal/models"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) ClassifyIntent(ctx context.Context, req genai.ClassifyRequest) (*genai.ClassifyResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*genai.ClassifyResponse), args.Error(1)
}

func TestLLMClassifier(t *testing.T) {
	model := new(MockModel)
	model.On("ClassifyIntent", mock.Anything, mock.MatchedBy(func(req genai.ClassifyRequest) bool {
		return req.Phase == string(models.PhaseAwaitingConfirmation) && len(req.Labels) == 4 &&
			strings.Contains(req.Instructions, "booking summary")
	})).Return(&genai.ClassifyResponse{Intent: "booking_complete", Confidence: 0.9}, nil)

	got, err := NewLLMClassifier(model).Classify(context.Background(), "go ahead", models.PhaseAwaitingConfirmation)
	require.NoError(t, err)
	assert.Equal(t, models.IntentBookingComplete, got)
	model.AssertExpectations(t)
}

func TestLLMClassifier_CompletionOutsideConfirmationIsBooking(t *testing.T) {
	model := new(MockModel)
	model.On("ClassifyIntent", mock.Anything, mock.Anything).
		Return(&genai.ClassifyResponse{Intent: "booking_complete"}, nil)

	got, err := NewLLMClassifier(model).Classify(context.Background(), "yes", models.PhaseCollecting)
	require.NoError(t, err)
	assert.Equal(t, models.IntentBooking, got)
}

func TestLLMClassifier_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.ClassifyResponse
		err  error
		want error
	}{
		{"timeout", nil, fmt.Errorf("%w: slow", genai.ErrTimeout), ErrClassifierTimeout},
		{"unavailable", nil, errors.New("503"), ErrClassifierUnavailable},
		{"unknown label", &genai.ClassifyResponse{Intent: "smalltalk"}, nil, ErrClassifierUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := new(MockModel)
			if tt.resp != nil {
				model.On("ClassifyIntent", mock.Anything, mock.Anything).Return(tt.resp, nil)
			} else {
				model.On("ClassifyIntent", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			_, err := NewLLMClassifier(model).Classify(context.Background(), "hi", models.PhaseIdle)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestInstructions(t *testing.T) {
	assert.Contains(t, Instructions(models.PhaseIdle), "Never use booking_complete")
	assert.Contains(t, Instructions(models.PhaseAwaitingConfirmation), "booking summary")
}
