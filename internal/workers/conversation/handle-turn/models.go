package handleturn

import (
	"context"
	"time"

	"booking-assistant/internal/booking/orchestrator"
)

type Input struct {
	ConversationID string    `json:"conversationId"`
	Utterance      string    `json:"utterance"`
	ReferenceTime  time.Time `json:"referenceTime,omitempty"`
}

// TurnHandler is satisfied by *orchestrator.Orchestrator
type TurnHandler interface {
	HandleTurn(ctx context.Context, conversationID, utterance string, ref time.Time) (*orchestrator.Response, error)
}

const inputSchema = `{
	"type": "object",
	"required": ["conversationId", "utterance"],
	"properties": {
		"conversationId": {"type": "string", "minLength": 1, "maxLength": 200},
		"utterance": {"type": "string", "maxLength": 4000},
		"referenceTime": {"type": "string", "format": "date-time"}
	}
}`
