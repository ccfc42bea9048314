// Package orchestrator runs one conversation turn end to end: classify the
// utterance, route it, merge booking evidence and finalize confirmed bookings.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"booking-assistant/internal/booking/extractor"
	"booking-assistant/internal/booking/history"
	"booking-assistant/internal/booking/intent"
	"booking-assistant/internal/booking/slots"
	"booking-assistant/internal/collab/booking"
	"booking-assistant/internal/collab/rag"
	apperrors "booking-assistant/internal/common/errors"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/common/metrics"
	"booking-assistant/internal/models"
)

const (
	defaultClassifierTimeout   = 5 * time.Second
	defaultExtractorTimeout    = 5 * time.Second
	defaultCollaboratorTimeout = 15 * time.Second
)

type TimeResolver interface {
	ResolveWithAnchor(phrase string, ref time.Time, loc *time.Location, anchor *time.Time) (time.Time, error)
}

type Answerer interface {
	Answer(ctx context.Context, conversationID, question string, history []rag.ContextMessage) (*rag.Answer, error)
}

type Booker interface {
	CreateBooking(ctx context.Context, req booking.Request) (*models.BookingRecord, error)
}

// TurnRecorder receives the intent and latency of every handled turn
type TurnRecorder interface {
	RecordTurn(ctx context.Context, intent string, duration time.Duration)
}

// Response is the outcome of one turn. Answer is set only for rag turns that
// the answer engine served.
type Response struct {
	ConversationID string              `json:"conversationId"`
	Intent         models.Intent       `json:"intent"`
	BookingState   models.BookingState `json:"bookingState"`
	Message        string              `json:"message"`
	Answer         *rag.Answer         `json:"answer,omitempty"`
	Error          *TurnError          `json:"error,omitempty"`
}

// TurnError is the user-safe view of a recoverable failure
type TurnError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type Options struct {
	Classifier intent.Classifier
	Extractor  extractor.Extractor
	Resolver   TimeResolver
	Slots      *slots.Manager
	Locker     slots.Locker
	History    history.History
	RAG        Answerer
	Booker     Booker
	Logger     logger.Logger
	Tracer     trace.Tracer
	Recorder   TurnRecorder

	// Location applies when a booking has no timezone of its own
	Location *time.Location

	ClassifierTimeout   time.Duration
	ExtractorTimeout    time.Duration
	CollaboratorTimeout time.Duration
	Clock               func() time.Time
}

type Orchestrator struct {
	classifier intent.Classifier
	extractor  extractor.Extractor
	resolver   TimeResolver
	slots      *slots.Manager
	locker     slots.Locker
	history    history.History
	rag        Answerer
	booker     Booker
	logger     logger.Logger
	tracer     trace.Tracer
	recorder   TurnRecorder
	loc        *time.Location

	classifierTimeout   time.Duration
	extractorTimeout    time.Duration
	collaboratorTimeout time.Duration
	now                 func() time.Time
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		classifier:          opts.Classifier,
		extractor:           opts.Extractor,
		resolver:            opts.Resolver,
		slots:               opts.Slots,
		locker:              opts.Locker,
		history:             opts.History,
		rag:                 opts.RAG,
		booker:              opts.Booker,
		logger:              opts.Logger,
		tracer:              opts.Tracer,
		recorder:            opts.Recorder,
		loc:                 opts.Location,
		classifierTimeout:   opts.ClassifierTimeout,
		extractorTimeout:    opts.ExtractorTimeout,
		collaboratorTimeout: opts.CollaboratorTimeout,
		now:                 opts.Clock,
	}
	if o.slots == nil {
		o.slots = slots.NewManager(slots.Options{})
	}
	if o.locker == nil {
		o.locker = slots.NewLocalLocker()
	}
	if o.logger == nil {
		o.logger = logger.NewNoOpLogger()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("booking-assistant")
	}
	if o.loc == nil {
		o.loc = time.UTC
	}
	if o.classifierTimeout <= 0 {
		o.classifierTimeout = defaultClassifierTimeout
	}
	if o.extractorTimeout <= 0 {
		o.extractorTimeout = defaultExtractorTimeout
	}
	if o.collaboratorTimeout <= 0 {
		o.collaboratorTimeout = defaultCollaboratorTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// HandleTurn processes one utterance. Turns for the same conversation are
// serialized; a returned error means the turn was not applied and may be
// retried as a whole.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, utterance string, ref time.Time) (*Response, error) {
	if ref.IsZero() {
		ref = o.now()
	}
	started := time.Now()
	log := logger.ForConversation(o.logger, conversationID)

	ctx, span := o.tracer.Start(ctx, "orchestrator.HandleTurn", trace.WithAttributes(
		attribute.String("conversation.id", conversationID),
	))
	defer span.End()

	unlock, err := o.locker.Lock(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		return nil, apperrors.NewLockTimeoutError(conversationID, err)
	}
	defer unlock()

	st, err := o.slots.Get(ctx, conversationID)
	if err != nil {
		return nil, o.fault(span, err, models.PhaseIdle, "get")
	}
	phaseBefore := st.Phase

	t := &turn{
		o:         o,
		id:        conversationID,
		utterance: utterance,
		ref:       ref,
		state:     st,
		log:       log,
		resp:      &Response{ConversationID: conversationID},
	}

	label, err := o.classify(ctx, utterance, st.Phase)
	if err != nil {
		code := apperrors.ErrCodeClassifierUnavailable
		if errors.Is(err, intent.ErrClassifierTimeout) {
			code = apperrors.ErrCodeClassifierTimeout
		}
		log.Warn("intent classification failed", map[string]interface{}{"error": err.Error(), "code": string(code)})
		t.resp.Intent = models.IntentChitchat
		t.fail(code)
	} else {
		t.resp.Intent = label
		switch label {
		case models.IntentRAG:
			t.answer(ctx)
		case models.IntentChitchat:
			t.resp.Message = chitchatReply(utterance, st.Phase)
		case models.IntentBooking:
			err = t.booking(ctx)
		case models.IntentBookingComplete:
			err = t.complete(ctx)
		}
		if err != nil {
			return nil, o.fault(span, err, t.state.Phase, string(label))
		}
	}

	t.resp.BookingState = t.state.Snapshot()
	o.remember(ctx, t)

	metrics.BookingTurns.WithLabelValues(string(t.resp.Intent)).Inc()
	metrics.BookingTurnDuration.WithLabelValues(string(t.resp.Intent)).Observe(time.Since(started).Seconds())
	if o.recorder != nil {
		o.recorder.RecordTurn(ctx, string(t.resp.Intent), time.Since(started))
	}
	span.SetAttributes(
		attribute.String("booking.intent", string(t.resp.Intent)),
		attribute.String("booking.phase", string(t.state.Phase)),
	)

	log.Info("turn handled", map[string]interface{}{
		"intent":          string(t.resp.Intent),
		"phaseBefore":     string(phaseBefore),
		"phaseAfter":      string(t.state.Phase),
		"utteranceLength": len(utterance),
		"missing":         len(t.state.Slots.Missing()),
	})
	return t.resp, nil
}

func (o *Orchestrator) classify(ctx context.Context, utterance string, phase models.Phase) (models.Intent, error) {
	if o.classifier == nil {
		return "", intent.ErrClassifierUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, o.classifierTimeout)
	defer cancel()

	label, err := o.classifier.Classify(ctx, utterance, phase)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, intent.ErrClassifierTimeout) {
			return "", intent.ErrClassifierTimeout
		}
		return "", err
	}
	if !label.Valid() {
		return "", intent.ErrClassifierUnavailable
	}
	return label, nil
}

// remember appends the turn to chat history; history is context only, so a
// failure is logged and ignored.
func (o *Orchestrator) remember(ctx context.Context, t *turn) {
	if o.history == nil {
		return
	}
	now := o.now()
	err := o.history.Append(ctx, t.id,
		history.Message{Role: history.RoleUser, Content: t.utterance, Intent: string(t.resp.Intent), Timestamp: now},
		history.Message{Role: history.RoleAssistant, Content: t.resp.Message, Timestamp: now},
	)
	if err != nil {
		t.log.Warn("chat history append failed", map[string]interface{}{"error": err.Error()})
	}
}

// fault converts an infrastructure error into the error returned to the caller
func (o *Orchestrator) fault(span trace.Span, err error, phase models.Phase, action string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, action)

	switch {
	case errors.Is(err, slots.ErrInvalidTransition):
		o.logger.Error("booking state machine rejected a transition", map[string]interface{}{
			"phase":  string(phase),
			"action": action,
			"error":  err.Error(),
		})
		return apperrors.NewInvalidTransitionError(string(phase), action)
	case errors.Is(err, slots.ErrLockTimeout):
		return apperrors.NewLockTimeoutError("", err)
	}
	return apperrors.NewStateStoreFailureError(err)
}
