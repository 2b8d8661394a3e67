package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/anjalik1505/town-functions-sub002/internal/api/respond"
	"github.com/anjalik1505/town-functions-sub002/internal/api/validate"
	"github.com/anjalik1505/town-functions-sub002/internal/auth"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/services"
)

// UpdateHandler provides HTTP transport for update and feed operations.
type UpdateHandler struct {
	svc      *services.UpdateService
	verifier auth.Verifier
}

func NewUpdateHandler(svc *services.UpdateService, v auth.Verifier) *UpdateHandler {
	return &UpdateHandler{svc: svc, verifier: v}
}

// CreateUpdate POST /v1/updates
func (h *UpdateHandler) CreateUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		Body       string   `json:"body"`
		Sentiment  string   `json:"sentiment,omitempty"`
		Score      float64  `json:"score,omitempty"`
		Emoji      string   `json:"emoji,omitempty"`
		FriendIDs  []string `json:"friendIds,omitempty"`
		GroupIDs   []string `json:"groupIds,omitempty"`
		AllVillage bool     `json:"allVillage,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.CreateUpdate(req.Body, req.Emoji); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	u, err := h.svc.CreateUpdate(r.Context(), &model.Update{
		CreatorID:  uid,
		Body:       req.Body,
		Sentiment:  req.Sentiment,
		Score:      req.Score,
		Emoji:      req.Emoji,
		FriendIDs:  req.FriendIDs,
		GroupIDs:   req.GroupIDs,
		AllVillage: req.AllVillage,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, u)
}

// ListMyUpdates GET /v1/updates
func (h *UpdateHandler) ListMyUpdates(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	us, next, err := h.svc.ListMyUpdates(r.Context(), uid, pageFrom(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"updates": us, "nextCursor": next})
}

// GetFeed GET /v1/feed
func (h *UpdateHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	us, next, err := h.svc.GetFeed(r.Context(), uid, pageFrom(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"updates": us, "nextCursor": next})
}

// GetUpdate GET /v1/updates/{updateId}
func (h *UpdateHandler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	u, err := h.svc.GetUpdate(r.Context(), uid, mux.Vars(r)["updateId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}

// DeleteUpdate DELETE /v1/updates/{updateId}
func (h *UpdateHandler) DeleteUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.DeleteUpdate(r.Context(), uid, mux.Vars(r)["updateId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShareUpdate POST /v1/updates/{updateId}/share
func (h *UpdateHandler) ShareUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		FriendIDs []string `json:"friendIds,omitempty"`
		GroupIDs  []string `json:"groupIds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if len(req.FriendIDs) == 0 && len(req.GroupIDs) == 0 {
		respond.WriteBadRequest(w, "friendIds or groupIds is required")
		return
	}
	u, err := h.svc.ShareUpdate(r.Context(), uid, mux.Vars(r)["updateId"], req.FriendIDs, req.GroupIDs)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u)
}

// RemoveFriendRecipient DELETE /v1/updates/{updateId}/friends/{friendId}
func (h *UpdateHandler) RemoveFriendRecipient(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.svc.RemoveFriendRecipient(r.Context(), uid, vars["updateId"], vars["friendId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveGroupRecipient DELETE /v1/updates/{updateId}/groups/{groupId}
func (h *UpdateHandler) RemoveGroupRecipient(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.svc.RemoveGroupRecipient(r.Context(), uid, vars["updateId"], vars["groupId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
