// Package httpapi exposes the service over HTTP with a uniform JSON
// response envelope.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"emitenwatch/internal/domain"
	"emitenwatch/internal/usecase/analysis"
	"emitenwatch/internal/usecase/auth"
	"emitenwatch/internal/usecase/watchlist"
)

// envelope is the uniform response shape for every endpoint.
type envelope struct {
	Success  bool          `json:"success"`
	Data     interface{}   `json:"data,omitempty"`
	Source   domain.Source `json:"source,omitempty"`
	SyncedAt string        `json:"synced_at,omitempty"`
	Warning  string        `json:"warning,omitempty"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// itemsPayload is the data body for item-list reads.
type itemsPayload struct {
	GroupID int64                  `json:"group_id"`
	Items   []domain.WatchlistItem `json:"items"`
}

// Server wires the use-case services to the HTTP surface.
type Server struct {
	Watchlist *watchlist.Service
	Tracker   *analysis.Tracker
	Auth      *auth.Service
	Flags     domain.FlagRepository
	Settings  domain.SettingRepository

	// PollInterval is the cadence for watch sessions.
	PollInterval time.Duration

	// APIToken guards mutating routes when non-empty.
	APIToken string
}

// NewServer creates a new Server instance.
func NewServer(
	watchlistService *watchlist.Service,
	tracker *analysis.Tracker,
	authService *auth.Service,
	flags domain.FlagRepository,
	settings domain.SettingRepository,
	pollInterval time.Duration,
	apiToken string,
) *Server {
	if pollInterval <= 0 {
		pollInterval = analysis.DefaultPollInterval
	}
	return &Server{
		Watchlist:    watchlistService,
		Tracker:      tracker,
		Auth:         authService,
		Flags:        flags,
		Settings:     settings,
		PollInterval: pollInterval,
		APIToken:     apiToken,
	}
}

// Routes returns the configured request multiplexer.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/watchlist/groups", s.handleGetGroups)
	mux.HandleFunc("GET /api/watchlist", s.handleGetItems)
	mux.HandleFunc("DELETE /api/watchlist", s.requireToken(s.handleDeleteItem))
	mux.HandleFunc("POST /api/flags", s.requireToken(s.handleSetFlag))
	mux.HandleFunc("POST /api/analysis", s.requireToken(s.handleCreateAnalysis))
	mux.HandleFunc("GET /api/analysis", s.handleAnalysisHistory)
	mux.HandleFunc("GET /api/analysis/watch", s.handleAnalysisWatch)
	mux.HandleFunc("GET /api/settings", s.handleGetSetting)
	mux.HandleFunc("POST /api/settings", s.requireToken(s.handleSetSetting))
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/auth/password", s.requireToken(s.handleSetPassword))
	mux.HandleFunc("POST /api/auth/verify", s.handleVerifyPassword)
	return mux
}

func (s *Server) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	forceSync := r.URL.Query().Get("sync") == "true"

	res, err := s.Watchlist.GetGroups(r.Context(), forceSync)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:  true,
		Data:     res.Groups,
		Source:   res.Source,
		SyncedAt: formatTime(res.SyncedAt),
		Warning:  res.Warning,
	})
}

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	groupID, err := queryInt64(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	forceSync := r.URL.Query().Get("sync") == "true"

	res, err := s.Watchlist.GetItems(r.Context(), groupID, forceSync)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success:  true,
		Data:     itemsPayload{GroupID: res.GroupID, Items: res.Items},
		Source:   res.Source,
		SyncedAt: formatTime(res.SyncedAt),
		Warning:  res.Warning,
	})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	groupID, err := queryInt64(r, "groupId")
	if err != nil {
		writeError(w, err)
		return
	}
	itemID, err := queryInt64(r, "itemId")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.Watchlist.DeleteItem(r.Context(), groupID, itemID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "item deleted"})
}

func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string      `json:"symbol"`
		Flag   domain.Flag `json:"flag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body"))
		return
	}
	if req.Symbol == "" {
		writeError(w, domain.NewValidationError("symbol is required"))
		return
	}

	if err := s.Flags.Set(r.Context(), req.Symbol, req.Flag); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol  string `json:"symbol"`
		Context string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body"))
		return
	}

	job, err := s.Tracker.Create(r.Context(), req.Symbol, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: job})
}

func (s *Server) handleAnalysisHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, domain.NewValidationError("symbol is required"))
		return
	}

	jobs, err := s.Tracker.History(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: jobs})
}

// handleAnalysisWatch blocks until the symbol's job reaches a terminal
// state. It resumes observation of whatever is in flight; it never
// creates a job.
func (s *Server) handleAnalysisWatch(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, domain.NewValidationError("symbol is required"))
		return
	}

	status, job, err := s.Tracker.Status(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	if status == domain.JobStatusIdle || status.Terminal() {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: watchPayload(status, job)})
		return
	}

	session := analysis.NewSession(s.Tracker, symbol, s.PollInterval)
	session.Resume(r.Context())
	defer session.Stop()

	select {
	case t := <-session.Transitions():
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: watchPayload(t.Status, t.Job)})
	case <-r.Context().Done():
	}
}

func watchPayload(status domain.JobStatus, job *domain.AnalysisJob) interface{} {
	return struct {
		Status domain.JobStatus    `json:"status"`
		Job    *domain.AnalysisJob `json:"job,omitempty"`
	}{Status: status, Job: job}
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, domain.NewValidationError("key is required"))
		return
	}

	value, err := s.Settings.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]string{
			"key":   key,
			"value": value,
		},
	})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body"))
		return
	}
	if req.Key == "" {
		writeError(w, domain.NewValidationError("key is required"))
		return
	}

	if err := s.Settings.Set(r.Context(), req.Key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Auth.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: status})
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
		Enabled  bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body"))
		return
	}

	if err := s.Auth.SetPassword(r.Context(), req.Password, req.Enabled); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (s *Server) handleVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("invalid request body"))
		return
	}

	valid, err := s.Auth.Verify(r.Context(), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]bool{"valid": valid},
	})
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, domain.NewValidationError("%s is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("%s must be an integer", name)
	}
	return v, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("[ERROR] encode response: %v", err)
	}
}

// writeError maps domain error kinds onto status codes. Every failure
// still resolves to a structured envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validationErr *domain.ValidationError
	var upstreamErr *domain.UpstreamError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrJobInFlight):
		status = http.StatusConflict
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
	}

	writeJSON(w, status, envelope{Success: false, Error: err.Error()})
}
