package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/anjalik1505/town-functions-sub002/internal/api/respond"
	"github.com/anjalik1505/town-functions-sub002/internal/api/validate"
	"github.com/anjalik1505/town-functions-sub002/internal/auth"
	"github.com/anjalik1505/town-functions-sub002/internal/services"
)

// EngagementHandler provides HTTP transport for comments and reactions.
type EngagementHandler struct {
	svc      *services.EngagementService
	verifier auth.Verifier
}

func NewEngagementHandler(svc *services.EngagementService, v auth.Verifier) *EngagementHandler {
	return &EngagementHandler{svc: svc, verifier: v}
}

// AddComment POST /v1/updates/{updateId}/comments
func (h *EngagementHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.CreateComment(req.Body); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	c, err := h.svc.AddComment(r.Context(), uid, mux.Vars(r)["updateId"], req.Body)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, c)
}

// ListComments GET /v1/updates/{updateId}/comments
func (h *EngagementHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	cs, next, err := h.svc.ListComments(r.Context(), uid, mux.Vars(r)["updateId"], pageFrom(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"comments": cs, "nextCursor": next})
}

// DeleteComment DELETE /v1/comments/{commentId}
func (h *EngagementHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.DeleteComment(r.Context(), uid, mux.Vars(r)["commentId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddReaction PUT /v1/updates/{updateId}/reactions/{type}
func (h *EngagementHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := validate.ReactionType(vars["type"]); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.svc.AddReaction(r.Context(), uid, vars["updateId"], vars["type"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveReaction DELETE /v1/updates/{updateId}/reactions/{type}
func (h *EngagementHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := validate.ReactionType(vars["type"]); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.svc.RemoveReaction(r.Context(), uid, vars["updateId"], vars["type"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
