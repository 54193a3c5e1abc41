package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// TriggerResponse is returned when an operator enqueues a task
type TriggerResponse struct {
	TaskID string          `json:"task_id"`
	Type   domain.TaskType `json:"type"`
}

// Health endpoints

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks the document store, queue and lock backends
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.opsService.Ready(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Run endpoints

func (s *Server) handleCurrentRun(w http.ResponseWriter, r *http.Request) {
	state, err := s.opsService.CurrentRun(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRunStateMissing) {
			writeError(w, http.StatusNotFound, "no run yet")
			return
		}
		s.logger.Error("failed to load run state", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load run state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Operator endpoints

func (s *Server) handleTriggerTask(w http.ResponseWriter, r *http.Request) {
	taskType := domain.TaskType(r.PathValue("type"))

	task, err := s.opsService.TriggerTask(r.Context(), taskType)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "task type cannot be triggered")
			return
		}
		s.logger.Error("failed to trigger task", "task_type", taskType, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue task")
		return
	}

	if authCtx := GetAuthContext(r.Context()); authCtx != nil {
		s.logger.Info("task triggered by operator", "task_type", taskType, "subject", authCtx.Subject)
	}
	writeJSON(w, http.StatusAccepted, TriggerResponse{TaskID: task.ID, Type: task.Type})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opsService.QueueStats(r.Context())
	if err != nil {
		s.logger.Error("failed to read queue stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
