package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/anjalik1505/town-functions-sub002/internal/model"
	"github.com/anjalik1505/town-functions-sub002/internal/store/memory"
)

type push struct {
	token, title, body string
	silent             bool
	data               map[string]string
}

// captureGateway records pushes instead of delivering them.
type captureGateway struct {
	mu    sync.Mutex
	sends []push
}

func (c *captureGateway) Send(_ context.Context, token, title, body string, data map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, push{token: token, title: title, body: body, data: data})
	return nil
}

func (c *captureGateway) SendSilent(_ context.Context, token string, data map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, push{token: token, silent: true, data: data})
	return nil
}

func (c *captureGateway) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

type harness struct {
	st      *memory.Store
	gw      *captureGateway
	profile *ProfileService
	update  *UpdateService
	engage  *EngagementService
	friend  *FriendService
	group   *GroupService
}

func newHarness() *harness {
	st := memory.New()
	gw := &captureGateway{}
	return &harness{
		st:      st,
		gw:      gw,
		profile: NewProfileService(st),
		update:  NewUpdateService(st),
		engage:  NewEngagementService(st, gw, zerolog.Nop()),
		friend:  NewFriendService(st),
		group:   NewGroupService(st),
	}
}

// seedProfile writes a profile directly, bypassing the signup path.
func (h *harness) seedProfile(t *testing.T, id string) *model.Profile {
	t.Helper()
	p := &model.Profile{
		UserID:     id,
		Username:   id,
		Name:       "The " + id,
		Timezone:   "UTC",
		NotifyMode: model.NotifyAll,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.st.Profiles().Create(context.Background(), p, nil); err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
	return p
}

// befriend writes both accepted direction rows directly.
func (h *harness) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	rows := []*model.Friendship{
		{OwnerID: a, FriendID: b, Status: model.StatusAccepted, Friend: model.ProfileSnapshot{Username: b, Name: "The " + b}, CreatedAt: now, UpdatedAt: now},
		{OwnerID: b, FriendID: a, Status: model.StatusAccepted, Friend: model.ProfileSnapshot{Username: a, Name: "The " + a}, CreatedAt: now, UpdatedAt: now},
	}
	for _, row := range rows {
		if err := h.st.Friendships().Put(ctx, row, nil); err != nil {
			t.Fatalf("befriend %s/%s: %v", a, b, err)
		}
	}
}

// pendingEvents returns the pending events of one type.
func (h *harness) pendingEvents(t *testing.T, eventType string) []*model.Event {
	t.Helper()
	evs, err := h.st.Events().ListByStatus(context.Background(), model.EventPending, 100)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var out []*model.Event
	for _, e := range evs {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func decodePayload(t *testing.T, e *model.Event, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(e.Payload, out); err != nil {
		t.Fatalf("decode %s payload: %v", e.Type, err)
	}
}
