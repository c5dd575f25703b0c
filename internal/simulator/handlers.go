package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sellsync/sellsync/internal/job"
	"github.com/sellsync/sellsync/internal/observability"
)

// handleHealth godoc
// @Summary      Liveness probe
// @Description  Indicates whether the process is alive
// @Tags         ops
// @Produce      text/plain
// @Success      200 {string} string "ok"
// @Router       /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReady godoc
// @Summary      Readiness probe
// @Description  Indicates whether the service can accept traffic
// @Tags         ops
// @Produce      text/plain
// @Success      200 {string} string "ready"
// @Failure      503 {string} string "not ready"
// @Router       /readyz [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// handleMetrics godoc
// @Summary      Prometheus metrics
// @Description  Exposes service metrics in Prometheus format
// @Tags         ops
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// @Summary Create a new job
// @Description Create a job in the CREATED state; rejects a duplicate active job for the resource
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body CreateJobRequest true "Job creation payload"
// @Success 201 {object} job.Record
// @Failure 400 {string} string
// @Failure 409 {string} string
// @Failure 500 {string} string
// @Router /v1/jobs [post]
func (s *Server) handleCreateJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	var createRequest CreateJobRequest

	if err := json.NewDecoder(request.Body).Decode(&createRequest); err != nil {
		http.Error(writer, "invalid JSON body", http.StatusBadRequest)
		return
	}

	if createRequest.ResourceKey == "" {
		http.Error(writer, "resource_key is required", http.StatusBadRequest)
		return
	}

	kind := job.Kind(createRequest.Kind)
	if kind != job.KindRecurringCycle && kind != job.KindBulkStaged && kind != job.KindScheduledTask {
		http.Error(writer, "invalid job kind", http.StatusBadRequest)
		return
	}

	record := buildRecord(createRequest.ResourceKey, kind, createRequest.Config)

	if err := s.store.CreateJob(request.Context(), record); err != nil {
		if err == ErrDuplicateActiveJob {
			http.Error(writer, "resource already has an active job", http.StatusConflict)
			return
		}

		http.Error(writer, "failed to create job", http.StatusInternalServerError)
		return
	}

	observability.LoggerFromContext(request.Context()).Info("job created",
		"job_id", record.ID, "resource_key", record.ResourceKey, "kind", record.Kind)

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(writer).Encode(record)
}

// buildRecord shapes the initial record for each kind. Bulk jobs get their
// two stages up front; cycle kinds get a schedule.
func buildRecord(resourceKey string, kind job.Kind, config map[string]any) *job.Record {
	now := time.Now()

	record := &job.Record{
		ID:          uuid.NewString(),
		ResourceKey: resourceKey,
		Kind:        kind,
		State:       job.StateCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch kind {
	case job.KindBulkStaged:
		units := configInt(config, "units", 20)
		record.Stages = []job.Stage{
			{Name: "collecting", TotalUnits: units},
			{Name: "applying", TotalUnits: units},
		}
	case job.KindRecurringCycle, job.KindScheduledTask:
		record.Schedule = &job.ScheduleConfig{
			IntervalSeconds: configInt(config, "interval_seconds", 60),
		}
	}

	return record
}

func configInt(config map[string]any, key string, fallback int) int {
	raw, ok := config[key]
	if !ok {
		return fallback
	}

	switch value := raw.(type) {
	case float64:
		if value > 0 {
			return int(value)
		}
	case string:
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}

	return fallback
}

// @Summary Start a job
// @Description Transition a CREATED or PAUSED job to RUNNING
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} job.Record
// @Failure 400 {string} string
// @Failure 409 {string} string
// @Failure 500 {string} string
// @Router /v1/jobs/{jobID}/start [post]
func (s *Server) handleStartJob(writer http.ResponseWriter, request *http.Request) {
	s.handleTransition(writer, request, s.store.StartJob, "job started")
}

// @Summary Stop a job
// @Description Transition a RUNNING job to PAUSED
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} job.Record
// @Failure 400 {string} string
// @Failure 409 {string} string
// @Failure 500 {string} string
// @Router /v1/jobs/{jobID}/stop [post]
func (s *Server) handleStopJob(writer http.ResponseWriter, request *http.Request) {
	s.handleTransition(writer, request, s.store.StopJob, "job stopped")
}

// @Summary Cancel a job
// @Description Cancel a job in any non-terminal state
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} job.Record
// @Failure 400 {string} string
// @Failure 409 {string} string
// @Failure 500 {string} string
// @Router /v1/jobs/{jobID}/cancel [post]
func (s *Server) handleCancelJob(writer http.ResponseWriter, request *http.Request) {
	s.handleTransition(writer, request, s.store.CancelJob, "job cancelled")
}

func (s *Server) handleTransition(
	writer http.ResponseWriter,
	request *http.Request,
	command func(context.Context, uuid.UUID) error,
	message string,
) {
	jobID, err := uuid.Parse(mux.Vars(request)["jobID"])
	if err != nil {
		http.Error(writer, "invalid job id", http.StatusBadRequest)
		return
	}

	if err := command(request.Context(), jobID); err != nil {
		if err == ErrInvalidStateTransition {
			http.Error(writer, "transition not allowed in current state", http.StatusConflict)
			return
		}

		http.Error(writer, "command failed", http.StatusInternalServerError)
		return
	}

	record, err := s.store.GetJob(request.Context(), jobID)
	if err != nil || record == nil {
		http.Error(writer, "failed to fetch job", http.StatusInternalServerError)
		return
	}

	observability.LoggerFromContext(request.Context()).Info(message, "job_id", jobID.String())

	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(record)
}

// @Summary Restart a job
// @Description Create a fresh job for the resource of a terminal job; the terminal record is untouched
// @Tags Jobs
// @Accept json
// @Produce json
// @Param jobID path string true "Job ID"
// @Param request body RestartJobRequest true "Restart policy hint"
// @Success 201 {object} job.Record
// @Failure 400 {string} string
// @Failure 404 {string} string
// @Failure 409 {string} string
// @Failure 500 {string} string
// @Router /v1/jobs/{jobID}/restart [post]
func (s *Server) handleRestartJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	jobID, err := uuid.Parse(mux.Vars(request)["jobID"])
	if err != nil {
		http.Error(writer, "invalid job id", http.StatusBadRequest)
		return
	}

	var restartRequest RestartJobRequest
	if err := json.NewDecoder(request.Body).Decode(&restartRequest); err != nil {
		http.Error(writer, "invalid JSON body", http.StatusBadRequest)
		return
	}

	fresh, err := s.store.RestartJob(request.Context(), jobID, restartRequest.Policy)
	if err != nil {
		switch err {
		case ErrJobNotFound:
			http.Error(writer, "job not found", http.StatusNotFound)
		case ErrInvalidStateTransition:
			http.Error(writer, "only terminal jobs can be restarted", http.StatusConflict)
		default:
			http.Error(writer, "failed to restart job", http.StatusInternalServerError)
		}
		return
	}

	observability.LoggerFromContext(request.Context()).Info("job restarted",
		"old_job_id", jobID.String(), "job_id", fresh.ID, "policy", restartRequest.Policy)

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(writer).Encode(fresh)
}

// @Summary Get job details
// @Description Fetch the authoritative snapshot of a job
// @Tags Jobs
// @Produce json
// @Param jobID path string true "Job ID"
// @Success 200 {object} job.Record
// @Failure 400 {string} string
// @Failure 404 {string} string
// @Failure 500 {string} string
// @Router /v1/jobs/{jobID} [get]
func (s *Server) handleGetJob(
	writer http.ResponseWriter,
	request *http.Request,
) {
	jobID, err := uuid.Parse(mux.Vars(request)["jobID"])
	if err != nil {
		http.Error(writer, "invalid job id", http.StatusBadRequest)
		return
	}

	record, err := s.store.GetJob(request.Context(), jobID)
	if err != nil {
		http.Error(writer, "failed to fetch job", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(writer, "job not found", http.StatusNotFound)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(record)
}

// @Summary List jobs
// @Description List job snapshots, optionally filtered by resource key. Idempotent and safe to poll.
// @Tags Jobs
// @Produce json
// @Param resource_key query string false "Filter by resource key"
// @Param limit query int false "Maximum number of jobs (default 100)"
// @Success 200 {object} ListJobsResponse
// @Failure 500 {string} string
// @Router /v1/jobs [get]
func (s *Server) handleListJobs(
	writer http.ResponseWriter,
	request *http.Request,
) {
	query := request.URL.Query()

	limit := 100
	if rawLimit := query.Get("limit"); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.store.ListJobs(request.Context(), query.Get("resource_key"), limit)
	if err != nil {
		http.Error(writer, "failed to list jobs", http.StatusInternalServerError)
		return
	}

	response := ListJobsResponse{Jobs: records}
	if response.Jobs == nil {
		response.Jobs = []*job.Record{}
	}

	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(response)
}

// @Summary Submit a queue item
// @Description Perform the side-effecting submission for one confirmation queue item
// @Tags Queue
// @Produce json
// @Param itemKey path string true "Item key"
// @Success 200 {object} SubmitItemResponse
// @Failure 400 {string} string
// @Router /v1/queue-items/{itemKey}/submit [post]
func (s *Server) handleSubmitQueueItem(
	writer http.ResponseWriter,
	request *http.Request,
) {
	itemKey := mux.Vars(request)["itemKey"]
	if itemKey == "" {
		http.Error(writer, "item key is required", http.StatusBadRequest)
		return
	}

	response := SubmitItemResponse{Success: true, Message: "submitted"}

	// Items flagged stale by the collection pass are no longer actionable;
	// the queue surfaces this and moves on.
	if strings.HasPrefix(itemKey, "stale-") {
		response = SubmitItemResponse{Success: false, Message: "item no longer eligible"}
	}

	observability.LoggerFromContext(request.Context()).Info("queue item submitted",
		"item_key", itemKey, "success", response.Success)

	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(response)
}
