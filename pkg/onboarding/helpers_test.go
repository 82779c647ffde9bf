package onboarding

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	shared "github.com/agentflow/onboarding/pkg"
	"github.com/agentflow/onboarding/pkg/domain/pipeline"
	"github.com/agentflow/onboarding/pkg/storage/memory"
	"github.com/agentflow/onboarding/pkg/testing/mocks"
	"github.com/agentflow/onboarding/pkg/types"
)

var (
	manager  = types.Actor{ID: "mgr-1", Role: types.RoleManager}
	other    = types.Actor{ID: "mgr-2", Role: types.RoleManager}
	approver = types.Actor{ID: "ops-1", Role: types.RoleAdmin, CanApprove: true}
	agentX   = types.Actor{ID: "agent-x", Role: types.RoleAgent}
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type harness struct {
	svc      *Service
	store    *memory.Store
	blobs    *mocks.MockBlobStore
	dispatch *mocks.MockDispatcher
	identity *mocks.MockIdentityAdmin
	reported []error
	mu       sync.Mutex
}

type harnessOption func(*Options)

func withRegistry(r *pipeline.Registry) harnessOption {
	return func(o *Options) { o.Registry = r }
}

// withStore lets a test decorate the memory store, e.g. to inject failures.
func withStore(wrap func(*memory.Store) shared.Store) harnessOption {
	return func(o *Options) { o.Store = wrap(o.Store.(*memory.Store)) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		store:    memory.New(),
		blobs:    &mocks.MockBlobStore{},
		dispatch: &mocks.MockDispatcher{},
		identity: &mocks.MockIdentityAdmin{},
	}
	clock := &tickClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	o := Options{
		Store:      h.store,
		Blobs:      h.blobs,
		Dispatcher: h.dispatch,
		Identity:   h.identity,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:      clock.Now,
		Reporter: func(err error, _ map[string]interface{}) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.reported = append(h.reported, err)
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	svc, err := New(o)
	require.NoError(t, err)
	h.svc = svc
	t.Cleanup(svc.Wait)
	return h
}

// threeStageRegistry: s1 requires a, b and c; s2 has only an optional step;
// s3 requires z.
func threeStageRegistry(t *testing.T) *pipeline.Registry {
	t.Helper()
	r, err := pipeline.NewRegistry(
		[]pipeline.Stage{{Key: "s1", Order: 1}, {Key: "s2", Order: 2}, {Key: "s3", Order: 3}},
		[]pipeline.Step{
			{ID: "a", Stage: "s1", Order: 1, IsRequired: true},
			{ID: "b", Stage: "s1", Order: 2, IsRequired: true},
			{ID: "c", Stage: "s1", Order: 3, IsRequired: true},
			{ID: "opt", Stage: "s2", Order: 1},
			{ID: "z", Stage: "s3", Order: 1, IsRequired: true},
		},
	)
	require.NoError(t, err)
	return r
}

func (h *harness) createAgent(t *testing.T, id string) *types.Agent {
	t.Helper()
	a, err := h.svc.CreateAgent(context.Background(), manager, NewAgent{ID: id, Name: "Agent " + id})
	require.NoError(t, err)
	return a
}

// placeAt moves an agent straight to a stage, bypassing the engine.
func (h *harness) placeAt(t *testing.T, agentID, stage string) {
	t.Helper()
	ctx := context.Background()
	a, err := h.store.GetAgent(ctx, agentID)
	require.NoError(t, err)
	a.CurrentStage = stage
	require.NoError(t, h.store.UpdateAgent(ctx, a, a.Version))
}

// actions returns the agent's audit actions oldest first.
func (h *harness) actions(t *testing.T, agentID string) []types.ActivityAction {
	t.Helper()
	entries, err := h.store.ListActivity(context.Background(), agentID, 0)
	require.NoError(t, err)
	out := make([]types.ActivityAction, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Action)
	}
	return out
}

func (h *harness) count(t *testing.T, agentID string, action types.ActivityAction) int {
	t.Helper()
	n := 0
	for _, a := range h.actions(t, agentID) {
		if a == action {
			n++
		}
	}
	return n
}

func (h *harness) reportedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reported)
}
