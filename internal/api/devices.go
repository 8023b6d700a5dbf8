package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vesynchub/vesync-core/internal/poller"
	"github.com/vesynchub/vesync-core/internal/vesync"
)

// History query limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleListDevices returns the current device collection as seen at the
// last poll.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.poller.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device by key.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	view, ok := s.poller.Device(key)
	if !ok {
		writeNotFound(w, "device not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDeviceCommand applies a named command to a device.
//
// The request body carries the command vocabulary shared with the MQTT
// command topics: power, brightness, color_temp, mode, fan_level,
// mist_level, target_humidity, warm_level.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var cmd poller.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Name == "" {
		writeBadRequest(w, "command is required")
		return
	}

	view, err := s.poller.Apply(r.Context(), key, cmd)
	if err != nil {
		s.writeCommandError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// powerRequest is the request body for PUT /devices/{key}/power.
type powerRequest struct {
	Status string `json:"status"`
}

// handleSetPower is a convenience wrapper over the power command.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req powerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	view, err := s.poller.Apply(r.Context(), key, poller.Command{
		Name:   poller.CmdPower,
		Status: req.Status,
	})
	if err != nil {
		s.writeCommandError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// valueRequest is the request body for the level-setting endpoints
// (brightness, mist level, target humidity).
type valueRequest struct {
	Value int `json:"value"`
}

// handleSetLevel builds a handler wrapping a single integer-valued
// command, so each level endpoint stays a one-line route entry.
func (s *Server) handleSetLevel(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		var req valueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}

		view, err := s.poller.Apply(r.Context(), key, poller.Command{
			Name:  name,
			Value: req.Value,
		})
		if err != nil {
			s.writeCommandError(w, key, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// modeRequest is the request body for PUT /devices/{key}/mode.
type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	view, err := s.poller.Apply(r.Context(), key, poller.Command{
		Name: poller.CmdMode,
		Mode: req.Mode,
	})
	if err != nil {
		s.writeCommandError(w, key, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRefreshEnergy forces an energy history refresh on every metered
// outlet, bypassing the poller's per-outlet throttle.
func (s *Server) handleRefreshEnergy(w http.ResponseWriter, r *http.Request) {
	s.poller.ForceEnergyRefresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "refreshed",
	})
}

// handleGetStateHistory returns recent state transitions for a device.
//
// Query parameters:
//   - limit: Maximum entries to return (default 50, max 200)
func (s *Server) handleGetStateHistory(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeServiceUnavailable(w, "history storage is not configured")
		return
	}

	key := chi.URLParam(r, "key")
	view, ok := s.poller.Device(key)
	if !ok {
		writeNotFound(w, "device not found: "+key)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.repo.GetStateHistory(r.Context(), view.CID, view.SubDeviceNo, limit)
	if err != nil {
		s.logger.Error("state history query failed", "key", key, "error", err)
		writeInternalError(w, "failed to query state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEnergyHistory returns recent energy readings for a device.
//
// Query parameters:
//   - period: Energy window, one of week, month, year (default week)
//   - limit: Maximum entries to return (default 50, max 200)
func (s *Server) handleGetEnergyHistory(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeServiceUnavailable(w, "history storage is not configured")
		return
	}

	key := chi.URLParam(r, "key")
	view, ok := s.poller.Device(key)
	if !ok {
		writeNotFound(w, "device not found: "+key)
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = string(vesync.EnergyWeek)
	}
	switch period {
	case string(vesync.EnergyWeek), string(vesync.EnergyMonth), string(vesync.EnergyYear):
	default:
		writeBadRequest(w, "period must be one of: week, month, year")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.repo.GetEnergyHistory(r.Context(), view.CID, view.SubDeviceNo, period, limit)
	if err != nil {
		s.logger.Error("energy history query failed", "key", key, "error", err)
		writeInternalError(w, "failed to query energy history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"key":     key,
		"period":  period,
		"entries": entries,
		"count":   len(entries),
	})
}

// writeCommandError maps poller and device errors to HTTP responses.
func (s *Server) writeCommandError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, poller.ErrDeviceNotFound):
		writeNotFound(w, "device not found: "+key)
	case errors.Is(err, poller.ErrUnknownCommand),
		errors.Is(err, poller.ErrInvalidCommand):
		writeBadRequest(w, err.Error())
	case errors.Is(err, poller.ErrUnsupported),
		errors.Is(err, vesync.ErrUnsupported):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "device does not support this command")
	case errors.Is(err, vesync.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, vesync.ErrDeviceOffline):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device is offline")
	default:
		s.logger.Error("device command failed", "key", key, "error", err)
		writeInternalError(w, "command failed")
	}
}

// parseLimit parses and clamps the limit query parameter.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}
