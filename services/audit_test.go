package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/audit"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAuditor) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAuditor) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func TestServices_RecordToInjectedAuditor(t *testing.T) {
	ctx := context.Background()
	rec := &recordingAuditor{}

	h := newHarness(t)
	h.auth.WithAuditor(rec)
	h.connect.WithAuditor(rec)
	users := NewUserService(h.users, plainHasher{}, h.tokens).WithAuditor(rec)

	_, err := users.CreateUser(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, "alice", "wrong", nil)
	require.Error(t, err)

	sess, err := h.auth.Login(ctx, "alice", "secret", nil)
	require.NoError(t, err)

	sess = h.connectProvider(t, sess, domain.ProviderGoogle)
	require.NoError(t, h.connect.Disconnect(ctx, sess, domain.ProviderGoogle))
	require.NoError(t, h.auth.Logout(ctx, sess))

	assert.Equal(t, []string{
		audit.ActionUserCreate,
		audit.ActionLogin,
		audit.ActionLogin,
		audit.ActionProviderConnect,
		audit.ActionProviderDisconnect,
		audit.ActionLogout,
	}, rec.actions())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.False(t, rec.events[1].Success)
	assert.Equal(t, "bad_password", rec.events[1].Reason)
	assert.True(t, rec.events[3].Success)
	assert.Equal(t, ReasonSuccess, rec.events[3].Reason)
	assert.Equal(t, "google", rec.events[3].Provider)
}

func TestServices_AuditorsAreNotShared(t *testing.T) {
	ctx := context.Background()
	first, second := &recordingAuditor{}, &recordingAuditor{}

	h1, h2 := newHarness(t), newHarness(t)
	_, err := NewUserService(h1.users, plainHasher{}, h1.tokens).WithAuditor(first).CreateUser(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = NewUserService(h2.users, plainHasher{}, h2.tokens).WithAuditor(second).CreateUser(ctx, "bob", "secret")
	require.NoError(t, err)

	// Services without an auditor discard events.
	_, err = NewUserService(h2.users, plainHasher{}, h2.tokens).CreateUser(ctx, "carol", "secret")
	require.NoError(t, err)

	require.Len(t, first.events, 1)
	assert.Equal(t, "alice", first.events[0].Login)
	require.Len(t, second.events, 1)
	assert.Equal(t, "bob", second.events[0].Login)
}
