// internal/workers/matching/get-recommendations/handler.go
package getrecommendations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tax-matching-workers/internal/common/camunda"
	"tax-matching-workers/internal/common/config"
	"tax-matching-workers/internal/common/errors"
	"tax-matching-workers/internal/common/logger"
	"tax-matching-workers/internal/common/metrics"
	"tax-matching-workers/internal/common/observability"
	"tax-matching-workers/internal/matching"
	"tax-matching-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// TaskType is the job type for reading the ranked tax accountants shown to a
// client.
const TaskType = "get-recommendations"

type MatchingService interface {
	Read(ctx context.Context, sourceID, userID string) (*models.MatchSnapshot, error)
	Recommend(ctx context.Context, userID string, limit int) (*models.MatchSnapshot, error)
	GenerateAsync(req matching.Request)
}

type Handler struct {
	config        *Config
	logger        logger.Logger
	camunda       *camunda.Client
	service       MatchingService
	errorHandler  *errors.ErrorHandler
	observability *observability.Observability
	jobWorker     worker.JobWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	CustomConfig  *Config
	Logger        logger.Logger
	Service       MatchingService
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("matching service is required for %s", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:        workerConfig,
		logger:        loggerInstance,
		camunda:       opts.Camunda,
		service:       opts.Service,
		errorHandler:  errors.NewErrorHandler(loggerInstance),
		observability: opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, done := h.observability.TrackJob(ctx, TaskType, job.GetKey())

	h.logger.Info("Processing get recommendations job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.process(ctx, job)
	done(err)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	input, err := h.parseInput(job)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, input)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables := job.GetVariables()

	result := inputSchema.ValidateJSON(variables)
	if !result.Valid {
		return nil, errors.NewCriteriaInvalidError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	return &input, nil
}

// Execute reads the stored ranking for the given diagnosis, or for the
// user's latest diagnosis when no id is given. The latter generates matches
// first when none exist yet.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	limit := h.config.effectiveLimit(input.Limit)

	var (
		snap *models.MatchSnapshot
		err  error
	)
	if input.DiagnosisResultID != "" {
		snap, err = h.service.Read(ctx, input.DiagnosisResultID, input.UserID)
	} else {
		snap, err = h.service.Recommend(ctx, input.UserID, limit)
	}
	if err != nil {
		return nil, err
	}

	// Nothing computed yet for an explicit diagnosis: answer with the empty
	// list and warm it up in the background for the next read.
	if input.DiagnosisResultID != "" && snap.IsEmpty() {
		h.service.GenerateAsync(matching.Request{
			SourceID: input.DiagnosisResultID,
			UserID:   input.UserID,
		})
	}

	decisions := snap.Decisions
	if len(decisions) > limit {
		decisions = decisions[:limit]
	}

	h.logger.Info("Recommendations loaded", map[string]interface{}{
		"diagnosisResultId": snap.SourceID,
		"userId":            input.UserID,
		"count":             len(decisions),
	})

	return &Output{
		DiagnosisResultID: snap.SourceID,
		Recommendations:   toRecommendations(decisions, input.includeScores()),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.Variables())
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("Successfully completed get recommendations", map[string]interface{}{
		"jobKey": job.GetKey(),
		"count":  len(output.Recommendations),
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	// the job context may already be past its deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bpmnErr := h.errorHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	h.jobWorker = h.camunda.GetClient().NewJobWorker().
		JobType(TaskType).
		Handler(h.Handle).
		MaxJobsActive(h.config.MaxJobsActive).
		Timeout(h.config.Timeout).
		Name(fmt.Sprintf("%s-worker", TaskType)).
		Open()

	h.logger.Info("Get recommendations worker registered with Camunda", map[string]interface{}{
		"maxJobsActive": h.config.MaxJobsActive,
		"timeout":       h.config.Timeout.String(),
	})
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.logger.Info("Shutting down worker gracefully", nil)
		h.jobWorker.Close()
		h.jobWorker = nil
	}
}

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return nil
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = time.Duration(workerCfg.Timeout) * time.Millisecond
		}
	}
	return cfg
}
