package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/api/recovery"
	"github.com/anjalik1505/town-functions-sub002/internal/auth"
	"github.com/anjalik1505/town-functions-sub002/internal/health"
	"github.com/anjalik1505/town-functions-sub002/internal/notify"
	"github.com/anjalik1505/town-functions-sub002/internal/services"
	"github.com/anjalik1505/town-functions-sub002/internal/store"
)

// NewRouter creates the HTTP router with all API routes over the supplied store.
func NewRouter(st store.Store, gw notify.Gateway, verifier auth.Verifier, checker *health.ServiceHealthChecker, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.New(log))

	// Create domain services
	profileService := services.NewProfileService(st)
	updateService := services.NewUpdateService(st)
	engagementService := services.NewEngagementService(st, gw, log)
	friendService := services.NewFriendService(st)
	groupService := services.NewGroupService(st)

	// Create handlers
	healthHandler := NewHealthHandler(checker)
	profileHandler := NewProfileHandler(profileService, verifier)
	updateHandler := NewUpdateHandler(updateService, verifier)
	engagementHandler := NewEngagementHandler(engagementService, verifier)
	friendHandler := NewFriendHandler(friendService, verifier)
	groupHandler := NewGroupHandler(groupService, verifier)

	// Health endpoint
	router.HandleFunc("/v1/health", healthHandler.CheckHealth).Methods("GET")

	// Profile endpoints
	router.HandleFunc("/v1/profile", profileHandler.CreateProfile).Methods("POST")
	router.HandleFunc("/v1/profile", profileHandler.GetOwnProfile).Methods("GET")
	router.HandleFunc("/v1/profile", profileHandler.UpdateProfile).Methods("PUT")
	router.HandleFunc("/v1/profile", profileHandler.DeleteProfile).Methods("DELETE")
	router.HandleFunc("/v1/profile/settings", profileHandler.UpdateSettings).Methods("PUT")
	router.HandleFunc("/v1/users/{userId}/profile", profileHandler.GetProfile).Methods("GET")

	// Update and feed endpoints
	router.HandleFunc("/v1/updates", updateHandler.CreateUpdate).Methods("POST")
	router.HandleFunc("/v1/updates", updateHandler.ListMyUpdates).Methods("GET")
	router.HandleFunc("/v1/updates/{updateId}", updateHandler.GetUpdate).Methods("GET")
	router.HandleFunc("/v1/updates/{updateId}", updateHandler.DeleteUpdate).Methods("DELETE")
	router.HandleFunc("/v1/updates/{updateId}/share", updateHandler.ShareUpdate).Methods("POST")
	router.HandleFunc("/v1/updates/{updateId}/friends/{friendId}", updateHandler.RemoveFriendRecipient).Methods("DELETE")
	router.HandleFunc("/v1/updates/{updateId}/groups/{groupId}", updateHandler.RemoveGroupRecipient).Methods("DELETE")
	router.HandleFunc("/v1/feed", updateHandler.GetFeed).Methods("GET")

	// Comment and reaction endpoints
	router.HandleFunc("/v1/updates/{updateId}/comments", engagementHandler.AddComment).Methods("POST")
	router.HandleFunc("/v1/updates/{updateId}/comments", engagementHandler.ListComments).Methods("GET")
	router.HandleFunc("/v1/comments/{commentId}", engagementHandler.DeleteComment).Methods("DELETE")
	router.HandleFunc("/v1/updates/{updateId}/reactions/{type}", engagementHandler.AddReaction).Methods("PUT")
	router.HandleFunc("/v1/updates/{updateId}/reactions/{type}", engagementHandler.RemoveReaction).Methods("DELETE")

	// Invite and join request endpoints
	router.HandleFunc("/v1/invites", friendHandler.CreateInvite).Methods("POST")
	router.HandleFunc("/v1/invites", friendHandler.ListInvites).Methods("GET")
	router.HandleFunc("/v1/invites/{inviteId}/accept", friendHandler.AcceptInvite).Methods("POST")
	router.HandleFunc("/v1/join-requests", friendHandler.CreateJoinRequest).Methods("POST")
	router.HandleFunc("/v1/join-requests", friendHandler.ListJoinRequests).Methods("GET")
	router.HandleFunc("/v1/join-requests/{requestId}/accept", friendHandler.AcceptJoinRequest).Methods("POST")
	router.HandleFunc("/v1/join-requests/{requestId}/reject", friendHandler.RejectJoinRequest).Methods("POST")

	// Friend endpoints
	router.HandleFunc("/v1/friends", friendHandler.ListFriends).Methods("GET")
	router.HandleFunc("/v1/friends/{friendId}/summary", friendHandler.GetRelationshipSummary).Methods("GET")

	// Group endpoints
	router.HandleFunc("/v1/groups", groupHandler.CreateGroup).Methods("POST")
	router.HandleFunc("/v1/groups/{groupId}", groupHandler.GetGroup).Methods("GET")
	router.HandleFunc("/v1/groups/{groupId}/members", groupHandler.AddMember).Methods("POST")
	router.HandleFunc("/v1/groups/{groupId}/leave", groupHandler.Leave).Methods("POST")

	return router
}
