package extractor

import (
	"context"
	"fmt"
	"strings"

	"booking-assistant/internal/collab/genai"
	"booking-assistant/internal/common/validation"
	"booking-assistant/internal/models"
)

type FieldExtractor interface {
	ExtractBookingFields(ctx context.Context, req genai.ExtractRequest) (*genai.ExtractResponse, error)
}

// LLMExtractor asks the model which text belongs to which field and then
// applies the same validation and normalization as RuleExtractor.
type LLMExtractor struct {
	client      FieldExtractor
	countryCode string
}

func NewLLMExtractor(client FieldExtractor, defaultCountryCode string) *LLMExtractor {
	return &LLMExtractor{client: client, countryCode: defaultCountryCode}
}

func (e *LLMExtractor) Extract(ctx context.Context, utterance string) (*models.ExtractionResult, error) {
	resp, err := e.client.ExtractBookingFields(ctx, genai.ExtractRequest{
		Utterance: utterance,
		Fields:    []string{string(models.SlotName), string(models.SlotPhone), string(models.SlotEmail), string(models.SlotWhen)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	result := models.NewExtractionResult(utterance)

	if raw := strings.TrimSpace(resp.Name); raw != "" {
		words := strings.Fields(raw)
		valid := len(words) <= 4
		for _, w := range words {
			valid = valid && nameWord.MatchString(w)
		}
		result.Candidates[models.SlotName] = models.Candidate{
			Value: titleCase(words),
			Raw:   raw,
			Valid: valid,
			Span:  locate(utterance, raw),
		}
	}

	if raw := strings.TrimSpace(resp.Phone); raw != "" {
		value, valid := validation.NormalizePhone(raw, e.countryCode)
		result.Candidates[models.SlotPhone] = models.Candidate{Value: value, Raw: raw, Valid: valid, Span: locate(utterance, raw)}
	}

	if raw := strings.TrimSpace(resp.Email); raw != "" {
		value := strings.ToLower(raw)
		result.Candidates[models.SlotEmail] = models.Candidate{
			Value: value,
			Raw:   raw,
			Valid: validation.ValidateEmail(value),
			Span:  locate(utterance, raw),
		}
	}

	if raw := strings.TrimSpace(resp.When); raw != "" {
		result.Candidates[models.SlotWhen] = models.Candidate{Value: raw, Raw: raw, Valid: true, Span: locate(utterance, raw)}
	}

	return result, nil
}

// locate finds raw in the utterance; paraphrased values get an empty span
func locate(utterance, raw string) models.Span {
	idx := strings.Index(strings.ToLower(utterance), strings.ToLower(raw))
	if idx < 0 {
		return models.Span{}
	}
	return models.Span{Start: idx, End: idx + len(raw)}
}
