package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/designpartner/internal/export"
	"github.com/thebtf/designpartner/internal/orchestrator"
	"github.com/thebtf/designpartner/pkg/models"
)

// maxUtteranceBytes caps a turn request body.
const maxUtteranceBytes = 64 << 10

type errorResponse struct {
	Error     string `json:"error"`
	Notice    string `json:"notice,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Pending   bool   `json:"pending,omitempty"`
}

type turnRequest struct {
	Text string `json:"text"`
}

type createResponse struct {
	ID   string                   `json:"id"`
	Turn *orchestrator.TurnResult `json:"turn,omitempty"`
}

type curriculumTopic struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Section  string `json:"section,omitempty"`
	Question string `json:"question"`
	Shape    string `json:"shape,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeTurnError maps orchestrator and store errors onto HTTP responses.
func (s *Service) writeTurnError(w http.ResponseWriter, id string, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError
	class := "internal"

	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		status, class = http.StatusNotFound, "not_found"
	case errors.Is(err, orchestrator.ErrTurnRetryable):
		status, class = http.StatusServiceUnavailable, "retryable"
		resp.Notice = orchestrator.RetryNotice
		resp.Retryable = true
		w.Header().Set("Retry-After", "1")
	case errors.Is(err, orchestrator.ErrTurnFatal):
		status, class = http.StatusBadGateway, "fatal"
	case errors.Is(err, orchestrator.ErrPersistence):
		status, class = http.StatusServiceUnavailable, "persistence"
		resp.Retryable = true
		resp.Pending = s.orchestrator.Pending(id)
	case errors.Is(err, orchestrator.ErrTopicNotCovered):
		status, class = http.StatusConflict, "not_covered"
	case errors.Is(err, models.ErrRevisionConflict):
		status, class = http.StatusConflict, "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, class = http.StatusRequestTimeout, "cancelled"
	}

	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Str("session", id).Str("class", class).Msg("Turn failed")
	}
	s.metrics.turnFailed(class)
	writeJSON(w, status, resp)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"clients": s.sseBroadcaster.ClientCount(),
	})
}

func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	reg := s.curriculum.Current()
	topics := make([]curriculumTopic, 0, reg.Len())
	for _, t := range reg.All() {
		topics = append(topics, curriculumTopic{
			ID:       t.ID,
			Title:    t.Title,
			Section:  t.Section,
			Question: t.Question,
			Shape:    string(t.Shape),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Service) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeTurnError(w, "", err)
		return
	}
	if list == nil {
		list = []models.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

// handleCreateSession creates a session. With ?begin=true the opening
// question is returned as well.
//
// @Summary	Create a session
// @Tags		sessions
// @Produce	json
// @Param		begin	query		bool	false	"Also return the opening question"
// @Success	201		{object}	createResponse
// @Failure	500		{object}	errorResponse
// @Router		/api/sessions [post]
func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.sessions.NewSession(r.Context())
	if err != nil {
		s.writeTurnError(w, "", err)
		return
	}
	resp := createResponse{ID: id}
	if begin, _ := strconv.ParseBool(r.URL.Query().Get("begin")); begin {
		res, err := s.orchestrator.Begin(r.Context(), id)
		if err != nil {
			s.writeTurnError(w, id, err)
			return
		}
		resp.Turn = res
	}
	writeJSON(w, http.StatusCreated, resp)
}

// @Summary	Latest committed session snapshot
// @Tags		sessions
// @Produce	json
// @Param		id	path		string	true	"Session ID"
// @Success	200	{object}	models.Session
// @Failure	404	{object}	errorResponse
// @Router		/api/sessions/{id} [get]
func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Snapshot(r.Context(), id)
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Clear(r.Context(), id); err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleBegin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.orchestrator.Begin(r.Context(), id)
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleTurn processes one user utterance.
//
// @Summary	Process one user utterance
// @Tags		turns
// @Accept		json
// @Produce	json
// @Param		id		path		string		true	"Session ID"
// @Param		request	body		turnRequest	true	"Utterance"
// @Success	200		{object}	orchestrator.TurnResult
// @Failure	400		{object}	errorResponse
// @Failure	404		{object}	errorResponse
// @Failure	502		{object}	errorResponse
// @Failure	503		{object}	errorResponse
// @Router		/api/sessions/{id}/turns [post]
func (s *Service) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUtteranceBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "utterance too large")
		return
	}
	var req turnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.orchestrator.HandleUtterance(r.Context(), id, req.Text)
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleFlush(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orchestrator.Flush(r.Context(), id); err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pending": s.orchestrator.Pending(id)})
}

func (s *Service) handleResetTopic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.orchestrator.ResetTopic(r.Context(), id, chi.URLParam(r, "topic"))
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleDocumentVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version < 0 {
		writeError(w, http.StatusBadRequest, "version must be a non-negative integer")
		return
	}
	doc, err := s.sessions.Document(r.Context(), id, version)
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// @Summary	Render the committed document
// @Tags		documents
// @Produce	text/markdown,text/html,json
// @Param		id			path	string	true	"Session ID"
// @Param		format		query	string	false	"Export format"	Enums(markdown, html, json)
// @Param		download	query	bool	false	"Send as attachment"
// @Success	200
// @Failure	400	{object}	errorResponse
// @Failure	404	{object}	errorResponse
// @Router		/api/sessions/{id}/export [get]
func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.exporter.Export(r.Context(), id, format)
	if err != nil {
		s.writeTurnError(w, id, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if dl, _ := strconv.ParseBool(r.URL.Query().Get("download")); dl {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="design-%s.%s"`, id, format.Extension()))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
