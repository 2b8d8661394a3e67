package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/anjalik1505/town-functions-sub002/internal/api/respond"
	"github.com/anjalik1505/town-functions-sub002/internal/api/validate"
	"github.com/anjalik1505/town-functions-sub002/internal/auth"
	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/services"
)

// ProfileHandler provides HTTP transport for profile operations.
type ProfileHandler struct {
	svc      *services.ProfileService
	verifier auth.Verifier
}

func NewProfileHandler(svc *services.ProfileService, v auth.Verifier) *ProfileHandler {
	return &ProfileHandler{svc: svc, verifier: v}
}

// CreateProfile POST /v1/profile
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		Username  string `json:"username"`
		Name      string `json:"name"`
		Avatar    string `json:"avatar,omitempty"`
		Phone     string `json:"phone,omitempty"`
		Gender    string `json:"gender,omitempty"`
		AgeBucket string `json:"ageBucket,omitempty"`
		Timezone  string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.ProfileFields(req.Username, req.Name, req.Phone, req.Timezone); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	p, err := h.svc.CreateProfile(r.Context(), &model.Profile{
		UserID:    uid,
		Username:  req.Username,
		Name:      req.Name,
		Avatar:    req.Avatar,
		Phone:     req.Phone,
		Gender:    req.Gender,
		AgeBucket: req.AgeBucket,
		Timezone:  req.Timezone,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, p)
}

// GetOwnProfile GET /v1/profile
func (h *ProfileHandler) GetOwnProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	p, err := h.svc.GetProfile(r.Context(), uid, uid)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// GetProfile GET /v1/users/{userId}/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	p, err := h.svc.GetProfile(r.Context(), uid, mux.Vars(r)["userId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// UpdateProfile PUT /v1/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		Username  string `json:"username"`
		Name      string `json:"name"`
		Avatar    string `json:"avatar,omitempty"`
		Phone     string `json:"phone,omitempty"`
		Gender    string `json:"gender,omitempty"`
		AgeBucket string `json:"ageBucket,omitempty"`
		Timezone  string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.ProfileFields(req.Username, req.Name, req.Phone, req.Timezone); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), uid, model.ProfileEdit{
		Username:  req.Username,
		Name:      req.Name,
		Avatar:    req.Avatar,
		Phone:     req.Phone,
		Gender:    req.Gender,
		AgeBucket: req.AgeBucket,
		Timezone:  req.Timezone,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// UpdateSettings PUT /v1/profile/settings
func (h *ProfileHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	var req struct {
		DeviceToken  string `json:"deviceToken,omitempty"`
		NotifyMode   string `json:"notifyMode"`
		NudgeEnabled bool   `json:"nudgeEnabled"`
		NudgeWeekday int    `json:"nudgeWeekday"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Settings(req.NotifyMode, req.NudgeWeekday); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	err := h.svc.UpdateSettings(r.Context(), uid, model.ProfileSettings{
		DeviceToken:  req.DeviceToken,
		NotifyMode:   req.NotifyMode,
		NudgeEnabled: req.NudgeEnabled,
		NudgeWeekday: time.Weekday(req.NudgeWeekday),
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteProfile DELETE /v1/profile
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	uid, ok := caller(w, r, h.verifier)
	if !ok {
		return
	}
	if err := h.svc.DeleteProfile(r.Context(), uid); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
