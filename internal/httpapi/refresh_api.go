package httpapi

import (
	"errors"
	"net/http"

	"github.com/johnrirwin/ainewsdesk/internal/scheduler"
	"github.com/johnrirwin/ainewsdesk/internal/sources"
)

type refreshRequest struct {
	IntervalHours int `json:"intervalHours"`
}

type refreshResponse struct {
	scheduler.Status
	Options []int `json:"options"`
}

func (s *Server) handleGetRefresh(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, refreshResponse{
		Status:  s.sched.Status(),
		Options: sources.RefreshIntervals(),
	})
}

func (s *Server) handlePutRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if !sources.IsValidInterval(req.IntervalHours) {
		s.writeError(w, http.StatusBadRequest, "invalid_input", "unsupported refresh interval")
		return
	}

	if err := s.sched.SetInterval(req.IntervalHours); err != nil {
		if errors.Is(err, scheduler.ErrStopped) {
			s.writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, refreshResponse{
		Status:  s.sched.Status(),
		Options: sources.RefreshIntervals(),
	})
}
