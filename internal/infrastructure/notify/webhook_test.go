package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/orchestrator"
	"github.com/luminos-ui/shellhost/internal/infrastructure/config"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

func TestWebhookDeliversEvents(t *testing.T) {
	var mu sync.Mutex
	var received []orchestrator.Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev orchestrator.Event
		require.NoError(t, json.Unmarshal(body, &ev))
		mu.Lock()
		received = append(received, ev)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := New(config.WebhookConfig{URL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 1}, zap.NewNop())
	require.NotNil(t, w)

	w.ForcedResize(types.ComponentName{Package: "app.alpha", Class: "Main"}, 100001)
	w.LockEnded()
	w.Publish(orchestrator.Event{Type: orchestrator.EventSleep})
	w.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 3)
	assert.Equal(t, orchestrator.EventForcedResize, received[0].Type)
	assert.Equal(t, 100001, received[0].TaskID)
	assert.Equal(t, orchestrator.EventLockEnded, received[1].Type)
	assert.Equal(t, orchestrator.EventSleep, received[2].Type)
}

func TestWebhookDisabledWithoutURL(t *testing.T) {
	w := New(config.WebhookConfig{}, zap.NewNop())
	assert.Nil(t, w)

	// Nil receivers are safe no-ops.
	w.Publish(orchestrator.Event{Type: orchestrator.EventWake})
	w.LockEnded()
	w.Close()
}

func TestWebhookRetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := New(config.WebhookConfig{URL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 2}, zap.NewNop())
	require.NotNil(t, w)

	w.Publish(orchestrator.Event{Type: orchestrator.EventBootComplete})
	w.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, attempts, 2)
}
