package agent

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/firealert/firealert/internal/alert"
	"github.com/firealert/firealert/internal/history"
	"github.com/firealert/firealert/internal/outbox"
	"github.com/firealert/firealert/internal/profile"
)

// statusResponse is the body of GET /status.
type statusResponse struct {
	Reachable  bool   `json:"reachable"`
	QueueDepth int    `json:"queueDepth"`
	PanicState string `json:"panicState"`
	SessionID  string `json:"sessionId,omitempty"`
	Version    string `json:"version"`
}

func (a *Agent) router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httprate.Limit(100, time.Minute, httprate.WithKeyFuncs(httprate.KeyByRealIP)))

	r.Get("/health", a.handleHealth)
	r.Get("/status", a.handleStatus)
	r.Get("/endpoints", a.handleEndpoints)
	r.Get("/alerts", a.handleAlerts)
	r.Post("/alerts", a.handleSubmit)
	r.Put("/profile", a.handleProfile)

	return r
}

func (a *Agent) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": a.version})
}

func (a *Agent) handleStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := a.outbox.Depth(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("reading queue depth")
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "queue unavailable"})
		return
	}

	resp := statusResponse{
		Reachable:  a.monitor.Reachable(),
		QueueDepth: depth,
		PanicState: string(a.machine.State()),
		Version:    a.version,
	}
	if session, ok := a.machine.ActiveSession(); ok {
		resp.SessionID = session.ID
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// endpointHealth is one entry in the GET /endpoints body.
type endpointHealth struct {
	Name          string     `json:"name"`
	Healthy       bool       `json:"healthy"`
	CircuitState  string     `json:"circuitState"`
	Requests      uint32     `json:"requests"`
	TotalFailures uint32     `json:"totalFailures"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}

// handleEndpoints reports delivery health for every upstream endpoint.
func (a *Agent) handleEndpoints(w http.ResponseWriter, _ *http.Request) {
	if a.registry == nil {
		a.writeJSON(w, http.StatusOK, map[string]any{"endpoints": []endpointHealth{}})
		return
	}

	all := a.registry.AllHealth()
	endpoints := make([]endpointHealth, 0, len(all))
	for _, h := range all {
		endpoints = append(endpoints, endpointHealth{
			Name:          h.Name,
			Healthy:       h.IsHealthy(),
			CircuitState:  h.CircuitState.String(),
			Requests:      h.Counts.Requests,
			TotalFailures: h.Counts.TotalFailures,
			LastSuccessAt: h.LastSuccessAt,
			LastFailureAt: h.LastFailureAt,
			LastError:     h.LastError,
		})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints})
}

// handleAlerts returns the registered user's alert history with a status
// summary.
func (a *Agent) handleAlerts(w http.ResponseWriter, r *http.Request) {
	p, err := a.profiles.Load()
	if err != nil {
		a.logger.Error().Err(err).Msg("loading profile")
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "profile unavailable"})
		return
	}
	if p.UserPhone == "" {
		a.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no registered phone"})
		return
	}

	records, err := a.history.ForPhone(r.Context(), p.UserPhone)
	if err != nil {
		a.logger.Error().Err(err).Msg("fetching alert history")
		a.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "history unavailable"})
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": records,
		"stats":  history.Summarize(records),
	})
}

// submitRequest is the body of POST /alerts.
type submitRequest struct {
	UserName  string `json:"userName"`
	UserPhone string `json:"userPhone"`
	Message   string `json:"message"`
}

// submitResponse is the body of a successful POST /alerts.
type submitResponse struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// handleSubmit composes a draft from the request and the current location
// and attempts immediate delivery. The profile is saved before the attempt
// so the history view works even if the send is queued.
func (a *Agent) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserName == "" || req.UserPhone == "" || req.Message == "" {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userName, userPhone and message are required"})
		return
	}

	if err := a.profiles.Save(profile.Profile{UserName: req.UserName, UserPhone: req.UserPhone}); err != nil {
		a.logger.Warn().Err(err).Msg("saving profile")
	}

	loc, err := a.locator.Current(r.Context())
	if err != nil {
		last, ok := a.locator.Last()
		if !ok {
			a.logger.Error().Err(err).Msg("locating for submission")
			a.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "location unavailable, retry"})
			return
		}
		loc = last
	}

	draft := alert.NewDraft(req.UserName, req.UserPhone, req.Message, loc)
	outcome, err := a.outbox.TrySendNow(r.Context(), draft)
	if outcome == "" && err != nil {
		a.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}

	resp := submitResponse{ID: draft.ID, Outcome: string(outcome)}
	status := http.StatusCreated
	if outcome != outbox.OutcomeDelivered {
		status = http.StatusAccepted
	}
	if err != nil {
		resp.Error = err.Error()
	}
	a.writeJSON(w, status, resp)
}

// handleProfile replaces the stored user profile.
func (a *Agent) handleProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if p.UserPhone == "" {
		a.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userPhone is required"})
		return
	}
	if err := a.profiles.Save(p); err != nil {
		a.logger.Error().Err(err).Msg("saving profile")
		a.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "profile not saved"})
		return
	}
	a.writeJSON(w, http.StatusOK, p)
}

func (a *Agent) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Error().Err(err).Msg("encoding response")
	}
}
