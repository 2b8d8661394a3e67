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

// GroupHandler provides HTTP transport for group operations.
type GroupHandler struct {
	svc      *services.GroupService
	verifier auth.Verifier
}

func NewGroupHandler(svc *services.GroupService, v auth.Verifier) *GroupHandler {
	return &GroupHandler{svc: svc, verifier: v}
}

// CreateGroup POST /v1/groups
func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		Name      string   `json:"name"`
		Icon      string   `json:"icon,omitempty"`
		MemberIDs []string `json:"memberIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.CreateGroup(req.Name, req.MemberIDs); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	g, err := h.svc.CreateGroup(r.Context(), uid, req.Name, req.Icon, req.MemberIDs)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, g)
}

// GetGroup GET /v1/groups/{groupId}
func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	g, err := h.svc.GetGroup(r.Context(), uid, mux.Vars(r)["groupId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}

// AddMember POST /v1/groups/{groupId}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("userId", req.UserID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.svc.AddMember(r.Context(), uid, mux.Vars(r)["groupId"], req.UserID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave POST /v1/groups/{groupId}/leave
func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.Leave(r.Context(), uid, mux.Vars(r)["groupId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
