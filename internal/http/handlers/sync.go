package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/reelarr/internal/ingestor"
	"github.com/jmylchreest/reelarr/internal/observability"
	"github.com/jmylchreest/reelarr/internal/scheduler"
	"github.com/jmylchreest/reelarr/internal/service"
)

// JobStatusProvider reports scheduled jobs.
type JobStatusProvider interface {
	Status() []scheduler.JobStatus
}

// SyncHandler triggers maintenance passes and reports sync state.
type SyncHandler struct {
	sync *service.SyncService
	jobs JobStatusProvider
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// WithScheduler adds scheduled job status to the status endpoint.
func (h *SyncHandler) WithScheduler(jobs JobStatusProvider) *SyncHandler {
	h.jobs = jobs
	return h
}

// Register registers the sync routes with the API.
func (h *SyncHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSyncStatus",
		Method:      "GET",
		Path:        "/api/v1/sync/status",
		Summary:     "Sync status",
		Description: "Returns the latest pass of each kind per channel and the scheduled jobs",
		Tags:        []string{"Sync"},
	}, h.GetStatus)

	huma.Register(api, huma.Operation{
		OperationID: "triggerReconcile",
		Method:      "POST",
		Path:        "/api/v1/sync/reconcile",
		Summary:     "Reconcile deletions",
		Description: "Removes catalog entries whose source messages were deleted, for one channel or all",
		Tags:        []string{"Sync"},
	}, h.Reconcile)

	huma.Register(api, huma.Operation{
		OperationID: "triggerRepair",
		Method:      "POST",
		Path:        "/api/v1/sync/repair",
		Summary:     "Repair catalog",
		Description: "Removes empty series and retypes movies that hold several episodes",
		Tags:        []string{"Sync"},
	}, h.Repair)
}

// syncError maps pass errors to API errors and logs them with the request
// logger.
func syncError(ctx context.Context, msg string, err error) error {
	logger := observability.WithError(observability.LoggerFromContext(ctx), err)
	switch {
	case errors.Is(err, ingestor.ErrPassRunning):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, ingestor.ErrChannelNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, ingestor.ErrSourceUnavailable):
		logger.WarnContext(ctx, msg)
		return huma.Error502BadGateway(msg, err)
	}
	logger.ErrorContext(ctx, msg)
	return huma.Error500InternalServerError(msg, err)
}

// passConflict reports a pass that is already running.
func passConflict(kind ingestor.PassKind, channelID string) error {
	if channelID == "" {
		return huma.Error409Conflict(fmt.Sprintf("%s pass is already running", kind))
	}
	return huma.Error409Conflict(fmt.Sprintf("%s pass for %s is already running", kind, channelID))
}

// GetSyncStatusInput is the input for sync status.
type GetSyncStatusInput struct{}

// GetSyncStatusOutput is the output for sync status.
type GetSyncStatusOutput struct {
	Body struct {
		Channels []string              `json:"channels"`
		Passes   []*ingestor.PassState `json:"passes"`
		Jobs     []scheduler.JobStatus `json:"jobs"`
	}
}

// GetStatus returns pass and job state.
func (h *SyncHandler) GetStatus(_ context.Context, _ *GetSyncStatusInput) (*GetSyncStatusOutput, error) {
	resp := &GetSyncStatusOutput{}
	resp.Body.Channels = h.sync.Channels()
	resp.Body.Passes = h.sync.StateManager().GetAllStates()
	resp.Body.Jobs = []scheduler.JobStatus{}
	if h.jobs != nil {
		resp.Body.Jobs = h.jobs.Status()
	}
	if resp.Body.Channels == nil {
		resp.Body.Channels = []string{}
	}
	if resp.Body.Passes == nil {
		resp.Body.Passes = []*ingestor.PassState{}
	}
	return resp, nil
}

// ReconcileInput is the input for a reconcile pass.
type ReconcileInput struct {
	Body struct {
		Channel string `json:"channel,omitempty" doc:"Configured channel to reconcile; all channels when empty"`
	} `required:"false"`
}

// ReconcileOutput is the output for a reconcile pass.
type ReconcileOutput struct {
	Body struct {
		Channels []string          `json:"channels"`
		Stats    PassStatsResponse `json:"stats"`
	}
}

// Reconcile runs a reconcile pass and waits for it to finish.
func (h *SyncHandler) Reconcile(ctx context.Context, input *ReconcileInput) (*ReconcileOutput, error) {
	resp := &ReconcileOutput{}

	if channel := input.Body.Channel; channel != "" {
		if !slices.Contains(h.sync.Channels(), channel) {
			return nil, huma.Error404NotFound(fmt.Sprintf("channel %s is not configured", channel))
		}
		if h.sync.StateManager().IsRunning(channel, ingestor.PassReconcile) {
			return nil, passConflict(ingestor.PassReconcile, channel)
		}
		stats, err := h.sync.Reconcile(ctx, channel)
		if err != nil {
			return nil, syncError(ctx, "reconcile failed", err)
		}
		resp.Body.Channels = []string{channel}
		resp.Body.Stats = PassStatsFromIngestor(stats)
		return resp, nil
	}

	stats, err := h.sync.ReconcileAll(ctx)
	if err != nil {
		return nil, syncError(ctx, "reconcile failed", err)
	}
	resp.Body.Channels = h.sync.Channels()
	resp.Body.Stats = PassStatsFromIngestor(stats)
	return resp, nil
}

// RepairInput is the input for a repair pass.
type RepairInput struct{}

// RepairOutput is the output for a repair pass.
type RepairOutput struct {
	Body service.RepairResult
}

// Repair runs a repair sweep and waits for it to finish.
func (h *SyncHandler) Repair(ctx context.Context, _ *RepairInput) (*RepairOutput, error) {
	if h.sync.StateManager().IsRunning("", ingestor.PassRepair) {
		return nil, passConflict(ingestor.PassRepair, "")
	}
	result, err := h.sync.Repair(ctx)
	if err != nil {
		return nil, syncError(ctx, "repair failed", err)
	}
	return &RepairOutput{Body: result}, nil
}
