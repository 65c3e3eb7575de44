package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/rtsptool/rtsptool/internal/ingest"
	"github.com/rtsptool/rtsptool/internal/push"
)

type pullStartRequest struct {
	URL       string `json:"url"`
	Transport string `json:"transport"`
}

type pushStartRequest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// handlePullStart handles POST /api/pull/start
func (s *Server) handlePullStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pullStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}
	if req.Transport == "" {
		req.Transport = string(ingest.TransportTCP)
	}
	transport, err := ingest.ParseTransport(req.Transport)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.puller.Configure(req.URL, transport); err != nil {
		respondError(w, pullStatusCode(err), err)
		return
	}
	if err := s.puller.Start(); err != nil {
		respondError(w, pullStatusCode(err), err)
		return
	}

	s.logger.Info("Pull started", "url", req.URL, "transport", transport.String())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  s.pullStatus(),
	})
}

// handlePullStop handles POST /api/pull/stop
func (s *Server) handlePullStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.puller.Stop()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  s.pullStatus(),
	})
}

// handlePullStatus handles GET /api/pull/status
func (s *Server) handlePullStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.pullStatus())
}

func (s *Server) pullStatus() map[string]interface{} {
	stats := s.puller.Stats()
	status := map[string]interface{}{
		"running": s.puller.Running(),
		"stats": map[string]interface{}{
			"sessions":        stats.Sessions,
			"video_frames":    stats.VideoFrames,
			"audio_chunks":    stats.AudioChunks,
			"decode_errors":   stats.DecodeErrors,
			"dropped_packets": stats.DroppedPackets,
		},
	}
	if src, ok := s.puller.Source(); ok {
		status["url"] = src.URL
		status["transport"] = src.Transport.String()
	}
	return status
}

func pullStatusCode(err error) int {
	switch {
	case errors.Is(err, ingest.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrNotConfigured):
		return http.StatusPreconditionFailed
	}
	return http.StatusBadRequest
}

// handlePushStart handles POST /api/push/start
func (s *Server) handlePushStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pushStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return
	}

	if err := s.pusher.StartPush(req.Input, req.Output); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, push.ErrClosed) {
			code = http.StatusServiceUnavailable
		}
		respondError(w, code, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job":     s.pushStatus(),
	})
}

// handlePushStop handles POST /api/push/stop
func (s *Server) handlePushStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.pusher.StopPush(); err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job":     s.pushStatus(),
	})
}

// handlePushStatus handles GET /api/push/status
func (s *Server) handlePushStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.pushStatus())
}

func (s *Server) pushStatus() map[string]interface{} {
	job, ok := s.pusher.Job()
	if !ok {
		return map[string]interface{}{
			"state":  push.StateIdle.String(),
			"active": false,
		}
	}
	return map[string]interface{}{
		"id":       job.ID.String(),
		"input":    job.Input,
		"output":   job.Output,
		"class":    job.Class.String(),
		"state":    job.State.String(),
		"active":   job.Active,
		"pid":      job.PID,
		"restarts": job.Restarts,
	}
}
