//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// env returns the value of key or the provided fallback when the env var is unset.
func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ping checks that a GET request to the given URL returns HTTP 200.
// It is used to quickly skip tests when the dev stack is not running.
func ping(url string) error {
	r, err := http.Get(url)
	if err != nil {
		return err
	}
	r.Body.Close()
	if r.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", r.StatusCode)
	}
	return nil
}

// request sends a JSON request authenticated with a dev bearer token for the
// given user and returns the status code plus raw body.
func request(t *testing.T, method, url, user string, body interface{}) (int, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer dev-"+user)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

// mustStatus fails the test unless the request returned want, then hands back
// the body for further decoding.
func mustStatus(t *testing.T, method, url, user string, body interface{}, want int) []byte {
	t.Helper()
	code, data := request(t, method, url, user, body)
	if code != want {
		t.Fatalf("%s %s: want status %d, got %d: %s", method, url, want, code, string(data))
	}
	return data
}

// waitForHealthy polls /v1/health until the town service reports healthy or
// the timeout elapses.
func waitForHealthy(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/v1/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			var data struct {
				Status string `json:"status"`
			}
			if json.NewDecoder(resp.Body).Decode(&data) == nil && data.Status == "healthy" {
				_ = resp.Body.Close()
				return
			}
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("town service not healthy within %s", timeout)
}

// signup creates a profile for user with the given unique username.
func signup(t *testing.T, baseURL, user, username string) {
	t.Helper()
	mustStatus(t, "POST", baseURL+"/v1/profile", user, map[string]interface{}{
		"username": username,
		"name":     "E2E " + username,
		"timezone": "UTC",
	}, http.StatusCreated)
}

// befriend runs the join-request flow: requester asks, receiver accepts.
func befriend(t *testing.T, baseURL, requester, receiver string) {
	t.Helper()
	data := mustStatus(t, "POST", baseURL+"/v1/join-requests", requester, map[string]interface{}{
		"receiverId": receiver,
	}, http.StatusCreated)
	var jr struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(data, &jr); err != nil || jr.RequestID == "" {
		t.Fatalf("decode join request: %v: %s", err, string(data))
	}
	mustStatus(t, "POST", baseURL+"/v1/join-requests/"+jr.RequestID+"/accept", receiver, nil, http.StatusNoContent)
}
