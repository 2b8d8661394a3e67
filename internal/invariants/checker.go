//
// 🔒 CRITICAL SYSTEM FILE - Invariant Contract Testing
// ⚠️  These tests ensure system invariants are never violated
// 🛡️  Uses customer-facing APIs only (blackbox testing)
// 📋  Never mutate invariants to get incremental changes working
//

package invariants

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// InvariantChecker tests system invariants using customer-facing APIs.
// This is a blackbox test that treats the service as an external system.
type InvariantChecker struct {
	baseURL string
	client  *http.Client
}

// NewInvariantChecker creates a new invariant checker.
func NewInvariantChecker(baseURL string) *InvariantChecker {
	return &InvariantChecker{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// 🔒 INVARIANT: Visibility gates every read
func (ic *InvariantChecker) TestVisibilityIsolationInvariant(t *testing.T, author, friend, stranger string) {
	updateID := ic.createTestUpdate(t, author, "isolation probe", []string{friend})

	// 🔒 INVARIANT: Non-recipients cannot read an update
	t.Run("StrangerCannotReadUpdate", func(t *testing.T) {
		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			stranger, nil, http.StatusForbidden)
	})

	// 🔒 INVARIANT: Recipients can read the same update
	t.Run("RecipientCanReadUpdate", func(t *testing.T) {
		resp := ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			friend, nil, http.StatusOK)

		var update map[string]interface{}
		require.NoError(t, json.Unmarshal(resp, &update))
		assert.Equal(t, updateID, update["updateId"])
	})

	// 🔒 INVARIANT: Own-updates lists show only the caller's updates
	t.Run("UpdateListsShowOnlyOwnData", func(t *testing.T) {
		resp := ic.makeRequest(t, "GET", "/v1/updates", friend, nil, http.StatusOK)

		var list map[string]interface{}
		require.NoError(t, json.Unmarshal(resp, &list))
		updates := list["updates"].([]interface{})
		for _, u := range updates {
			assert.NotEqual(t, updateID, u.(map[string]interface{})["updateId"],
				"another author's update must never appear in the caller's own list")
		}
	})
}

// 🔒 INVARIANT: Sharing widens visibility, never narrows it
func (ic *InvariantChecker) TestShareMonotonicityInvariant(t *testing.T, author, friend1, friend2 string) {
	updateID := ic.createTestUpdate(t, author, "monotonicity probe", []string{friend1})

	// friend2 is not yet a recipient
	ic.makeRequest(t, "GET",
		fmt.Sprintf("/v1/updates/%s", updateID),
		friend2, nil, http.StatusForbidden)

	// Widen to friend2
	ic.makeRequest(t, "POST",
		fmt.Sprintf("/v1/updates/%s/share", updateID),
		author, map[string]interface{}{"friendIds": []string{friend2}}, http.StatusOK)

	// 🔒 INVARIANT: Earlier recipients keep access after a share
	t.Run("ShareKeepsEarlierRecipients", func(t *testing.T) {
		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			friend1, nil, http.StatusOK)
		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			friend2, nil, http.StatusOK)
	})

	// 🔒 INVARIANT: Targeted removal affects only the named recipient
	t.Run("RemovalIsTargeted", func(t *testing.T) {
		ic.makeRequest(t, "DELETE",
			fmt.Sprintf("/v1/updates/%s/friends/%s", updateID, friend1),
			author, nil, http.StatusNoContent)

		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			friend1, nil, http.StatusForbidden)
		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			friend2, nil, http.StatusOK)
	})
}

// 🔒 INVARIANT: Friendship is symmetric
func (ic *InvariantChecker) TestFriendshipSymmetryInvariant(t *testing.T, userID1, userID2 string) {
	// 🔒 INVARIANT: After acceptance both sides list each other
	t.Run("BothSidesListEachOther", func(t *testing.T) {
		assert.True(t, ic.listsFriend(t, userID1, userID2), "user1 must list user2")
		assert.True(t, ic.listsFriend(t, userID2, userID1), "user2 must list user1")
	})

	// 🔒 INVARIANT: A second request between friends is rejected
	t.Run("DuplicateRequestRejected", func(t *testing.T) {
		ic.makeRequest(t, "POST", "/v1/join-requests",
			userID1, map[string]interface{}{"receiverId": userID2}, http.StatusConflict)
	})
}

// 🔒 INVARIANT: Deleted updates leave no readable trace
func (ic *InvariantChecker) TestDeleteInvariant(t *testing.T, author, friend string) {
	updateID := ic.createTestUpdate(t, author, "delete probe", []string{friend})

	// Attach a comment so deletion has dependents to clear
	ic.makeRequest(t, "POST",
		fmt.Sprintf("/v1/updates/%s/comments", updateID),
		friend, map[string]interface{}{"body": "pre-delete comment"}, http.StatusCreated)

	// 🔒 INVARIANT: Only the author can delete
	t.Run("NonAuthorCannotDelete", func(t *testing.T) {
		ic.makeRequest(t, "DELETE",
			fmt.Sprintf("/v1/updates/%s", updateID),
			friend, nil, http.StatusForbidden)
	})

	// 🔒 INVARIANT: Every read path answers 404 after deletion
	t.Run("ReadsFailAfterDelete", func(t *testing.T) {
		ic.makeRequest(t, "DELETE",
			fmt.Sprintf("/v1/updates/%s", updateID),
			author, nil, http.StatusNoContent)

		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s", updateID),
			author, nil, http.StatusNotFound)
		ic.makeRequest(t, "GET",
			fmt.Sprintf("/v1/updates/%s/comments", updateID),
			friend, nil, http.StatusNotFound)
		ic.makeRequest(t, "DELETE",
			fmt.Sprintf("/v1/updates/%s", updateID),
			author, nil, http.StatusNotFound)
	})
}

// Helper methods for API interactions

// CreateTestProfile registers a profile; username must be unique per run.
func (ic *InvariantChecker) CreateTestProfile(t *testing.T, userID, username string) {
	ic.makeRequest(t, "POST", "/v1/profile",
		userID, map[string]interface{}{
			"username": username,
			"name":     "Checker " + username,
			"timezone": "UTC",
		}, http.StatusCreated)
}

// BefriendUsers runs the join-request flow between two registered users.
func (ic *InvariantChecker) BefriendUsers(t *testing.T, requester, receiver string) {
	resp := ic.makeRequest(t, "POST", "/v1/join-requests",
		requester, map[string]interface{}{"receiverId": receiver}, http.StatusCreated)

	var jr map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &jr))
	requestID := jr["requestId"].(string)

	ic.makeRequest(t, "POST",
		fmt.Sprintf("/v1/join-requests/%s/accept", requestID),
		receiver, nil, http.StatusNoContent)
}

func (ic *InvariantChecker) createTestUpdate(t *testing.T, author, body string, friendIDs []string) string {
	resp := ic.makeRequest(t, "POST", "/v1/updates",
		author, map[string]interface{}{
			"body":      body,
			"friendIds": friendIDs,
		}, http.StatusCreated)

	var update map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &update))
	return update["updateId"].(string)
}

func (ic *InvariantChecker) listsFriend(t *testing.T, userID, friendID string) bool {
	resp := ic.makeRequest(t, "GET", "/v1/friends", userID, nil, http.StatusOK)

	var list map[string]interface{}
	require.NoError(t, json.Unmarshal(resp, &list))
	friends, _ := list["friends"].([]interface{})
	for _, f := range friends {
		if f.(map[string]interface{})["friendId"] == friendID {
			return true
		}
	}
	return false
}

func (ic *InvariantChecker) makeRequest(t *testing.T, method, path, userID string, body interface{}, expectedStatus int) []byte {
	var reqBody []byte
	var err error

	if body != nil {
		reqBody, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, ic.baseURL+path, bytes.NewBuffer(reqBody))
	require.NoError(t, err)

	req.Header.Set("Authorization", "Bearer dev-"+userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ic.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, expectedStatus, resp.StatusCode,
		"Expected status %d but got %d for %s %s", expectedStatus, resp.StatusCode, method, path)

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return respBody
}
