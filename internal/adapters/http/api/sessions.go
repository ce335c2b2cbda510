package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/faceoff/internal/app"
	"github.com/okian/faceoff/pkg/logger"
)

// SessionDependencies defines the ranking session operations.
type SessionDependencies interface {
	StartSession(ctx context.Context, userID string, req service.StartRequest) (service.View, error)
	GetSession(ctx context.Context, userID string) (service.View, error)
	Choose(ctx context.Context, userID string, req service.ChoiceRequest) (service.View, error)
	Ranking(ctx context.Context, userID string) (service.Ranking, error)
	Abandon(ctx context.Context, userID string) error
}

// SessionHandler handles /sessions requests.
type SessionHandler struct {
	deps SessionDependencies
	log  logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies, log logger.Logger) *SessionHandler {
	return &SessionHandler{deps: deps, log: log}
}

// startRequest mirrors the OpenAPI schema for POST /sessions/{userID}.
type startRequest struct {
	ItemIDs []string `json:"item_ids"`
	Dataset string   `json:"dataset"`
}

func (s startRequest) validate() error {
	if len(s.ItemIDs) == 0 && s.Dataset == "" {
		return errors.New("item_ids or dataset is required")
	}
	return nil
}

// choiceRequest mirrors the OpenAPI schema for POST /sessions/{userID}/choices.
type choiceRequest struct {
	Choice    string `json:"choice"`
	SessionID string `json:"session_id"`
	ChoiceID  string `json:"choice_id"`
}

// HandleStart handles POST /sessions/{userID}.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.StartSession(r.Context(), r.PathValue("userID"), service.StartRequest{
		ItemIDs: req.ItemIDs,
		Dataset: req.Dataset,
	})
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /sessions/{userID}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	view, err := h.deps.GetSession(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleChoice handles POST /sessions/{userID}/choices.
func (h *SessionHandler) HandleChoice(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_choice"
	var req choiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	view, err := h.deps.Choose(r.Context(), r.PathValue("userID"), service.ChoiceRequest{
		Choice:    req.Choice,
		SessionID: req.SessionID,
		ChoiceID:  req.ChoiceID,
	})
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleRanking handles GET /sessions/{userID}/ranking.
func (h *SessionHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	ranking, err := h.deps.Ranking(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

// HandleDelete handles DELETE /sessions/{userID}.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	if err := h.deps.Abandon(r.Context(), r.PathValue("userID")); err != nil {
		writeFailure(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
