//go:build invariants
// +build invariants

//
// 🐳 DOCKER ENDPOINT INVARIANT TESTS
// ⚠️  These tests run against the Docker-based town service
// 🛡️  Tests system invariants using the containerized service
// 📋  Separate from build tests - for Docker environment validation
//

package invariants

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDockerEndpointAvailability verifies the Docker service is running and accessible
func TestDockerEndpointAvailability(t *testing.T) {
	baseURL := "http://localhost:8080"

	t.Run("🐳 Docker Service Health Check", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/v1/health")
		if err != nil {
			t.Fatalf("❌ Docker service not accessible: %v\n"+
				"💡 Make sure to run: docker-compose up -d", err)
		}
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode,
			"Docker service health check failed")
		t.Logf("✅ Docker service is running and healthy")
	})
}

// TestSystemInvariants runs every invariant suite against the containerized
// service with fresh users per run.
func TestSystemInvariants(t *testing.T) {
	baseURL := "http://localhost:8080"
	checker := NewInvariantChecker(baseURL)

	resp, err := http.Get(baseURL + "/v1/health")
	require.NoError(t, err,
		"Docker service must be running. Run: docker-compose up -d")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	run := time.Now().UnixNano()
	author := fmt.Sprintf("inv-author-%d", run)
	friend1 := fmt.Sprintf("inv-friend1-%d", run)
	friend2 := fmt.Sprintf("inv-friend2-%d", run)
	stranger := fmt.Sprintf("inv-stranger-%d", run)

	checker.CreateTestProfile(t, author, fmt.Sprintf("inv_author_%d", run))
	checker.CreateTestProfile(t, friend1, fmt.Sprintf("inv_friend1_%d", run))
	checker.CreateTestProfile(t, friend2, fmt.Sprintf("inv_friend2_%d", run))
	checker.CreateTestProfile(t, stranger, fmt.Sprintf("inv_stranger_%d", run))
	checker.BefriendUsers(t, friend1, author)
	checker.BefriendUsers(t, friend2, author)

	t.Run("🔒 Visibility Isolation", func(t *testing.T) {
		checker.TestVisibilityIsolationInvariant(t, author, friend1, stranger)
	})

	t.Run("🔒 Share Monotonicity", func(t *testing.T) {
		checker.TestShareMonotonicityInvariant(t, author, friend1, friend2)
	})

	t.Run("🔒 Friendship Symmetry", func(t *testing.T) {
		checker.TestFriendshipSymmetryInvariant(t, author, friend1)
	})

	t.Run("🔒 Delete Behavior", func(t *testing.T) {
		checker.TestDeleteInvariant(t, author, friend1)
	})
}
