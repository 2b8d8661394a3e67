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

// FriendHandler provides HTTP transport for invites, join requests, and
// the friend list.
type FriendHandler struct {
	svc      *services.FriendService
	verifier auth.Verifier
}

func NewFriendHandler(svc *services.FriendService, v auth.Verifier) *FriendHandler {
	return &FriendHandler{svc: svc, verifier: v}
}

// CreateInvite POST /v1/invites
func (h *FriendHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Phone(req.Phone); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	inv, err := h.svc.CreateInvite(r.Context(), uid, req.Phone)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, inv)
}

// ListInvites GET /v1/invites
func (h *FriendHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	invs, err := h.svc.ListInvites(r.Context(), uid)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"invites": invs, "count": len(invs)})
}

// AcceptInvite POST /v1/invites/{inviteId}/accept
func (h *FriendHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.AcceptInvite(r.Context(), uid, mux.Vars(r)["inviteId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateJoinRequest POST /v1/join-requests
func (h *FriendHandler) CreateJoinRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("receiverId", req.ReceiverID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	jr, err := h.svc.CreateJoinRequest(r.Context(), uid, req.ReceiverID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, jr)
}

// ListJoinRequests GET /v1/join-requests
func (h *FriendHandler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	jrs, err := h.svc.ListJoinRequests(r.Context(), uid)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"requests": jrs, "count": len(jrs)})
}

// AcceptJoinRequest POST /v1/join-requests/{requestId}/accept
func (h *FriendHandler) AcceptJoinRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.AcceptJoinRequest(r.Context(), uid, mux.Vars(r)["requestId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RejectJoinRequest POST /v1/join-requests/{requestId}/reject
func (h *FriendHandler) RejectJoinRequest(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.RejectJoinRequest(r.Context(), uid, mux.Vars(r)["requestId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFriends GET /v1/friends
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	fs, next, err := h.svc.ListFriends(r.Context(), uid, pageFrom(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"friends": fs, "nextCursor": next})
}

// GetRelationshipSummary GET /v1/friends/{friendId}/summary
func (h *FriendHandler) GetRelationshipSummary(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	sum, err := h.svc.GetRelationshipSummary(r.Context(), uid, mux.Vars(r)["friendId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sum)
}
