package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"booking-assistant/internal/collab/genai"
	"booking-assistant/internal/models"
)

type Model interface {
	ClassifyIntent(ctx context.Context, req genai.ClassifyRequest) (*genai.ClassifyResponse, error)
}

var labels = []string{
	string(models.IntentRAG),
	string(models.IntentBooking),
	string(models.IntentBookingComplete),
	string(models.IntentChitchat),
}

// LLMClassifier delegates the label to the model; the phase bias is
// written into the instructions and enforced again on the answer.
type LLMClassifier struct {
	model Model
}

func NewLLMClassifier(model Model) *LLMClassifier {
	return &LLMClassifier{model: model}
}

func (c *LLMClassifier) Classify(ctx context.Context, utterance string, phase models.Phase) (models.Intent, error) {
	resp, err := c.model.ClassifyIntent(ctx, genai.ClassifyRequest{
		Utterance:    utterance,
		Phase:        string(phase),
		Labels:       labels,
		Instructions: Instructions(phase),
	})
	if err != nil {
		if errors.Is(err, genai.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrClassifierTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	label := models.Intent(resp.Intent)
	if !label.Valid() {
		return "", fmt.Errorf("%w: unknown label %q", ErrClassifierUnavailable, resp.Intent)
	}
	if label == models.IntentBookingComplete &&
		phase != models.PhaseAwaitingConfirmation && phase != models.PhaseCompleted {
		label = models.IntentBooking
	}
	return label, nil
}

// Instructions builds the phase aware labelling rules sent with each request
func Instructions(phase models.Phase) string {
	var b strings.Builder
	b.WriteString("Label the user's message with exactly one of: rag, booking, booking_complete, chitchat.\n")
	b.WriteString("rag: a question about the documents or anything else that needs an answer.\n")
	b.WriteString("chitchat: only greetings, thanks or goodbyes.\n")

	switch phase {
	case models.PhaseCollecting:
		b.WriteString("A booking is being collected (name, phone, email, time). ")
		b.WriteString("Any message that supplies or corrects one of those fields, confirms, or cancels is booking, even a bare name, number or time.\n")
	case models.PhaseAwaitingConfirmation:
		b.WriteString("The user was just shown a booking summary. ")
		b.WriteString("An explicit acceptance such as yes or go ahead is booking_complete. ")
		b.WriteString("A refusal, a correction or a cancellation is booking.\n")
	case models.PhaseCompleted:
		b.WriteString("A booking was already made. A plain acceptance is booking_complete; a new scheduling request is booking.\n")
	default:
		b.WriteString("No booking is in progress. Use booking only for explicit scheduling language such as book a call or schedule a meeting. ")
		b.WriteString("Never use booking_complete.\n")
	}
	return b.String()
}
