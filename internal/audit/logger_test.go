package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/internal/audit"
)

func TestLogger_Record(t *testing.T) {
	var buf bytes.Buffer
	audit.NewLogger(&buf).Record(context.Background(), audit.Event{
		Action:   audit.ActionProviderConnect,
		UserID:   "user-1",
		Provider: "google",
		Reason:   "exchange_failed",
		Err:      errors.New("upstream 500"),
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "audit", entry["log"])
	assert.Equal(t, "provider_connect", entry["action"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "google", entry["provider"])
	assert.Equal(t, "exchange_failed", entry["reason"])
	assert.Equal(t, "upstream 500", entry["error"])
	assert.Equal(t, false, entry["success"])
	assert.NotContains(t, entry, "login")
	assert.NotContains(t, entry, "trace_id")
}

func TestLoggersAreIndependent(t *testing.T) {
	var first, second bytes.Buffer
	audit.NewLogger(&first).Record(context.Background(), audit.Event{Action: audit.ActionLogin, Success: true})
	audit.NewLogger(&second).Record(context.Background(), audit.Event{Action: audit.ActionLogout, Success: true})

	assert.Contains(t, first.String(), `"action":"login"`)
	assert.NotContains(t, first.String(), "logout")
	assert.Contains(t, second.String(), `"action":"logout"`)
	assert.NotContains(t, second.String(), `"action":"login"`)

	assert.NotPanics(t, func() { audit.Nop{}.Record(context.Background(), audit.Event{Action: audit.ActionLogin}) })
}
