package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"booking-assistant/internal/booking/cues"
	"booking-assistant/internal/booking/extractor"
	"booking-assistant/internal/booking/slots"
	"booking-assistant/internal/collab/booking"
	"booking-assistant/internal/collab/rag"
	apperrors "booking-assistant/internal/common/errors"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/common/metrics"
	"booking-assistant/internal/models"
)

// turn carries the state of one HandleTurn call while the conversation lock is held
type turn struct {
	o         *Orchestrator
	id        string
	utterance string
	ref       time.Time
	state     *slots.State
	log       logger.Logger
	resp      *Response
	began     bool
}

func (t *turn) fail(code apperrors.ErrorCode) {
	msg := apperrors.UserMessage(code)
	t.resp.Message = msg
	t.resp.Error = &TurnError{
		Code:      string(code),
		Message:   msg,
		Retryable: apperrors.IsRetryableErrorCode(code),
	}
}

func (t *turn) location() *time.Location {
	if t.state.Phase.Active() && t.state.Slots.Timezone != "" {
		if loc, err := time.LoadLocation(t.state.Slots.Timezone); err == nil {
			return loc
		}
	}
	return t.o.loc
}

func (t *turn) answer(ctx context.Context) {
	if t.o.rag == nil {
		t.fail(apperrors.ErrCodeRAGUnavailable)
		return
	}

	var msgs []rag.ContextMessage
	if t.o.history != nil {
		recent, err := t.o.history.Recent(ctx, t.id)
		if err != nil {
			t.log.Warn("chat history unavailable", map[string]interface{}{"error": err.Error()})
		}
		for _, m := range recent {
			msgs = append(msgs, rag.ContextMessage{Role: m.Role, Content: m.Content})
		}
	}

	cctx, cancel := context.WithTimeout(ctx, t.o.collaboratorTimeout)
	defer cancel()

	ans, err := t.o.rag.Answer(cctx, t.id, t.utterance, msgs)
	if err != nil {
		metrics.BookingCollaboratorCalls.WithLabelValues("rag", "failure").Inc()
		t.log.Warn("answer engine failed", map[string]interface{}{"error": err.Error()})
		t.fail(apperrors.ErrCodeRAGUnavailable)
		return
	}
	metrics.BookingCollaboratorCalls.WithLabelValues("rag", "success").Inc()

	t.resp.Answer = ans
	t.resp.Message = ans.Answer
	if t.state.Phase == models.PhaseCollecting {
		if missing := t.state.Slots.Missing(); len(missing) > 0 {
			t.resp.Message += "\n\n" + resumePrompt(missing[0])
		}
	}
}

func (t *turn) booking(ctx context.Context) error {
	if t.state.Phase.Active() && cues.Cancel(t.utterance) {
		next, err := t.o.slots.Cancel(ctx, t.id)
		if err != nil {
			return err
		}
		t.state = next
		t.resp.Message = cancelledReply
		return nil
	}

	extraction, err := t.extract(ctx)
	if err != nil {
		t.log.Warn("entity extraction failed", map[string]interface{}{"error": err.Error()})
		t.resp.Message = extractionRetryReply
		return nil
	}

	switch {
	case !t.state.Phase.Active():
		next, err := t.o.slots.Begin(ctx, t.id)
		if err != nil {
			return err
		}
		t.state = next
		t.began = true

	case t.state.Phase == models.PhaseAwaitingConfirmation && !extraction.HasValid() &&
		(cues.Negative(t.utterance) || cues.Correction(t.utterance)):
		next, err := t.o.slots.Reopen(ctx, t.id)
		if err != nil {
			return err
		}
		t.state = next
		t.resp.Message = whatToChangeReply
		return nil
	}

	out, err := t.o.slots.Merge(ctx, t.id, models.IntentBooking, extraction)
	if err != nil {
		return err
	}
	t.state = out.State
	return t.reply(ctx, out)
}

func (t *turn) reply(ctx context.Context, out *slots.MergeOutcome) error {
	var parts []string
	if t.began {
		parts = append(parts, beginReply)
	} else if out.Changed() {
		parts = append(parts, acknowledge(out, t.state.Slots))
	}

	var reprompted models.Slot
	if len(out.Rejected) > 0 {
		reprompted = out.Rejected[0]
		parts = append(parts, rejectedPrompt(reprompted))
	}

	switch t.state.Phase {
	case models.PhaseAwaitingConfirmation:
		parts = append(parts, confirmPrompt(t.state.Slots, t.location()))

	case models.PhaseCollecting:
		if !t.state.Slots.Complete() {
			if next := t.state.Slots.Missing()[0]; next != reprompted {
				parts = append(parts, fieldPrompt(next))
			}
			break
		}
		// complete but not under confirmation: the last turn corrected a
		// confirmed summary, or the user was asked what to change
		switch {
		case out.Changed():
			parts = append(parts, confirmPrompt(t.state.Slots, t.location()))
		case cues.Affirmative(t.utterance) && len(out.Rejected) == 0:
			next, err := t.o.slots.AwaitConfirmation(ctx, t.id)
			if err != nil {
				return err
			}
			t.state = next
			return t.confirm(ctx)
		case cues.Negative(t.utterance):
			parts = append(parts, whatToChangeReply)
		default:
			next, err := t.o.slots.AwaitConfirmation(ctx, t.id)
			if err != nil {
				return err
			}
			t.state = next
			parts = append(parts, confirmPrompt(t.state.Slots, t.location()))
		}
	}

	t.resp.Message = strings.Join(parts, " ")
	return nil
}

func (t *turn) complete(ctx context.Context) error {
	switch t.state.Phase {
	case models.PhaseCompleted:
		if t.state.Slots.BookingID != "" {
			t.resp.Message = alreadyBookedReply(t.state.Slots, t.location())
			return nil
		}
		// confirmed earlier but the id was never recorded
		return t.finalize(ctx)
	case models.PhaseAwaitingConfirmation:
		return t.confirm(ctx)
	}

	t.resp.Intent = models.IntentBooking
	return t.booking(ctx)
}

func (t *turn) confirm(ctx context.Context) error {
	next, err := t.o.slots.Confirm(ctx, t.id)
	if err != nil {
		return err
	}
	t.state = next
	t.resp.Intent = models.IntentBookingComplete
	return t.finalize(ctx)
}

// finalize calls the booking collaborator for a confirmed booking without
// an id. On failure the confirmation is undone so the user can retry. A retry
// with unchanged slots reuses the idempotency key; a correction changes it.
func (t *turn) finalize(ctx context.Context) error {
	st := t.state
	var (
		rec *models.BookingRecord
		err error
	)
	if t.o.booker == nil {
		err = errors.New("no booking collaborator configured")
	} else {
		cctx, cancel := context.WithTimeout(ctx, t.o.collaboratorTimeout)
		rec, err = t.o.booker.CreateBooking(cctx, booking.Request{
			ConversationID: t.id,
			IdempotencyKey: st.IdempotencyKey(),
			Slots:          st.Slots,
		})
		cancel()
	}

	if err != nil {
		metrics.BookingCollaboratorCalls.WithLabelValues("booking", "failure").Inc()
		t.log.Error("booking collaborator failed", map[string]interface{}{
			"idempotencyKey": st.IdempotencyKey(),
			"error":          err.Error(),
		})
		next, rerr := t.o.slots.RevertConfirmation(ctx, t.id)
		if rerr != nil {
			return rerr
		}
		t.state = next
		t.fail(apperrors.ErrCodeCollaboratorFailure)
		return nil
	}
	metrics.BookingCollaboratorCalls.WithLabelValues("booking", "success").Inc()

	next, err := t.o.slots.AssignBookingID(ctx, t.id, st.Generation, slots.BookingResult{
		BookingID:       rec.BookingID,
		ExternalEventID: rec.CalendarEventID,
		MeetingLink:     rec.MeetingLink,
	})
	if err != nil {
		return err
	}
	t.state = next
	t.resp.Message = bookedReply(next.Slots, t.location())
	return nil
}

// extract runs the extractor and resolves the time phrase. An unresolved
// phrase is dropped, a time that is not in the future stays as an invalid
// candidate so the user is asked again.
func (t *turn) extract(ctx context.Context) (*models.ExtractionResult, error) {
	if t.o.extractor == nil {
		return nil, extractor.ErrExtractionFailed
	}
	ectx, cancel := context.WithTimeout(ctx, t.o.extractorTimeout)
	defer cancel()

	res, err := t.o.extractor.Extract(ectx, t.utterance)
	if err != nil {
		return nil, err
	}

	c, ok := res.Get(models.SlotWhen)
	if !ok || c.Time != nil {
		return res, nil
	}
	delete(res.Candidates, models.SlotWhen)
	if t.o.resolver == nil {
		return res, nil
	}

	phrase := c.Raw
	if phrase == "" {
		phrase = c.Value
	}
	var anchor *time.Time
	if t.state.Phase.Active() {
		anchor = t.state.Slots.When
	}
	resolved, err := t.o.resolver.ResolveWithAnchor(phrase, t.ref, t.location(), anchor)
	if err != nil {
		t.log.Debug("time phrase not resolved", map[string]interface{}{"phraseLength": len(phrase)})
		return res, nil
	}

	c.Time = &resolved
	c.Value = resolved.Format(time.RFC3339)
	if !resolved.After(t.ref) {
		c.Valid = false
	}
	res.Candidates[models.SlotWhen] = c
	return res, nil
}
