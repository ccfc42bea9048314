package handleturn

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"booking-assistant/internal/booking/orchestrator"
	"booking-assistant/internal/common/config"
	"booking-assistant/internal/common/errors"
	"booking-assistant/internal/common/logger"
	"booking-assistant/internal/common/metrics"
	"booking-assistant/internal/common/validation"
)

const TaskType = "handle-conversation-turn"

var schema = validation.MustCompileSchema(inputSchema)

type Handler struct {
	config       *Config
	logger       logger.Logger
	orchestrator TurnHandler
	errors       *errors.ErrorHandler
	now          func() time.Time
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Orchestrator TurnHandler
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("%s requires an orchestrator", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:       cfg,
		logger:       log,
		orchestrator: opts.Orchestrator,
		errors:       errors.NewErrorHandler(log),
		now:          time.Now,
	}, nil
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing conversation turn", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	if !h.config.Enabled {
		return h.completeJob(ctx, client, job, map[string]interface{}{"turnHandled": false})
	}

	input, err := h.parseInput(job)
	if err != nil {
		return h.failJob(ctx, client, job, err)
	}

	resp, err := h.Execute(ctx, input)
	if err != nil {
		return h.failJob(ctx, client, job, err)
	}

	if err := h.completeJob(ctx, client, job, outputVariables(resp)); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*orchestrator.Response, error) {
	ref := input.ReferenceTime
	if ref.IsZero() {
		ref = h.now()
	}
	return h.orchestrator.HandleTurn(ctx, input.ConversationID, input.Utterance, ref)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	raw := job.GetVariables()
	result, err := schema.ValidateBytes([]byte(raw))
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func outputVariables(resp *orchestrator.Response) map[string]interface{} {
	vars := map[string]interface{}{
		"turnHandled":  true,
		"intent":       string(resp.Intent),
		"message":      resp.Message,
		"bookingState": resp.BookingState,
		"phase":        string(resp.BookingState.Phase),
	}
	if resp.Answer != nil {
		vars["answer"] = resp.Answer
	}
	if resp.Error != nil {
		vars["turnError"] = resp.Error
	}
	if id := resp.BookingState.Slots.BookingID; id != "" {
		vars["bookingId"] = id
	}
	return vars
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, variables map[string]interface{}) error {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return err
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return err
	}
	return nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) error {
	stdErr := errors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, stdErr)
	return err
}
