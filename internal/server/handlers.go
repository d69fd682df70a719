package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/powerwatch/host/internal/coordinator"
	hostErrors "github.com/powerwatch/host/internal/errors"
	"github.com/powerwatch/host/internal/notify"
	"github.com/powerwatch/host/internal/storage"
)

// StatusResponse is the /status payload.
type StatusResponse struct {
	Coordinator coordinator.Snapshot `json:"coordinator"`
	Power       PowerStatus          `json:"power"`
	Recent      []storage.Event      `json:"recent,omitempty"`
	Firings     map[string]int       `json:"firings,omitempty"`
}

// PowerStatus is the battery/AC portion of /status.
type PowerStatus struct {
	OnBattery      *bool `json:"on_battery,omitempty"`
	BatteryPercent *int  `json:"battery_percent,omitempty"`
	ExternalPower  *bool `json:"external_power,omitempty"`
	Charging       *bool `json:"charging,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// handleStatus serves the coordinator and power snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, hostErrors.CodeServerInvalidEvent, "GET only")
		return
	}

	resp := StatusResponse{Coordinator: s.coord.Snapshot()}

	if s.powerProvider != nil {
		snap := s.powerProvider.Snapshot()
		resp.Power = PowerStatus{
			OnBattery:      snap.OnBattery,
			BatteryPercent: snap.BatteryPercent,
			ExternalPower:  snap.ExternalPower,
			Charging:       snap.Charging,
		}
	}

	if s.journal != nil {
		if recent, err := s.journal.Recent(20); err == nil {
			resp.Recent = recent
		} else {
			log.Printf("server: status: recent events: %v", err)
		}
		if counts, err := s.journal.CountBySource(storage.KindFiring); err == nil {
			resp.Firings = counts
		} else {
			log.Printf("server: status: firing counts: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// powerEventRequest is the /power-event payload.
type powerEventRequest struct {
	Action string `json:"action"`
}

// powerEventResponse reports how many handlers acknowledged the action.
type powerEventResponse struct {
	Action  string `json:"action"`
	Handled int    `json:"handled"`
}

var knownPowerActions = map[string]notify.PowerAction{
	string(notify.ActionSuspendPrepare):   notify.ActionSuspendPrepare,
	string(notify.ActionHibernatePrepare): notify.ActionHibernatePrepare,
	string(notify.ActionPostSuspend):      notify.ActionPostSuspend,
	string(notify.ActionPostHibernation):  notify.ActionPostHibernation,
	string(notify.ActionRestorePrepare):   notify.ActionRestorePrepare,
}

// handlePowerEvent injects one power-state transition into the chain.
func (s *Server) handlePowerEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, hostErrors.CodeServerInvalidEvent, "POST only")
		return
	}
	if !s.eventLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, hostErrors.CodeServerRateLimited, "too many event injections")
		return
	}

	var req powerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidEvent, "malformed request body")
		return
	}
	action, ok := knownPowerActions[req.Action]
	if !ok {
		writeError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidEvent, "unknown power action: "+req.Action)
		return
	}

	handled := s.power.Dispatch(action)
	writeJSON(w, http.StatusOK, powerEventResponse{Action: req.Action, Handled: handled})
}

// visibilityEventRequest is the /visibility-event payload.
type visibilityEventRequest struct {
	Direction string `json:"direction"`
}

// handleVisibilityEvent injects one visibility transition into the
// chain. The chain enforces observer ordering, not this endpoint.
func (s *Server) handleVisibilityEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, hostErrors.CodeServerInvalidEvent, "POST only")
		return
	}
	if !s.eventLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, hostErrors.CodeServerRateLimited, "too many event injections")
		return
	}

	var req visibilityEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidEvent, "malformed request body")
		return
	}

	switch req.Direction {
	case "suspend":
		s.visibility.DispatchSuspend()
	case "resume":
		s.visibility.DispatchResume()
	default:
		writeError(w, http.StatusBadRequest, hostErrors.CodeServerInvalidEvent, "unknown visibility direction: "+req.Direction)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"direction": req.Direction})
}

// requireAuth wraps a handler with bearer-token verification when an
// auth token hash is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.tokenHash == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, hostErrors.CodeAuthRequired, "missing bearer token")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.tokenHash), []byte(token)); err != nil {
			writeError(w, http.StatusUnauthorized, hostErrors.CodeAuthInvalid, "invalid bearer token")
			return
		}
		next(w, r)
	}
}

// extractBearerToken pulls the token out of "Authorization: Bearer <t>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}
