// Package notify posts orchestrator events to an external webhook.
// Delivery is asynchronous with bounded buffering and retries; the
// lifecycle loop never blocks on the network.
package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/luminos-ui/shellhost/internal/domain/orchestrator"
	"github.com/luminos-ui/shellhost/internal/infrastructure/config"
	"github.com/luminos-ui/shellhost/internal/shared/types"
)

// Webhook delivers events over HTTP POST. It implements
// orchestrator.Notifier for the UI-feedback callbacks and also accepts
// the full event stream through Publish.
type Webhook struct {
	url    string
	client *retryablehttp.Client
	log    *zap.Logger

	queue chan orchestrator.Event

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a webhook notifier. Returns nil when no URL is
// configured; a nil *Webhook is safe to use and discards everything.
func New(cfg config.WebhookConfig, log *zap.Logger) *Webhook {
	if cfg.URL == "" {
		return nil
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil

	w := &Webhook{
		url:    cfg.URL,
		client: client,
		log:    log,
		queue:  make(chan orchestrator.Event, 256),
		done:   make(chan struct{}),
	}
	go w.deliver()
	return w
}

// Publish enqueues one event, dropping when the buffer is full.
func (w *Webhook) Publish(ev orchestrator.Event) {
	if w == nil {
		return
	}
	select {
	case w.queue <- ev:
	default:
		w.log.Warn("webhook queue full, dropping event", zap.String("type", ev.Type))
	}
}

// ForcedResize reports a non-resizable group promoted to fullscreen.
func (w *Webhook) ForcedResize(component types.ComponentName, taskID int) {
	w.Publish(orchestrator.Event{
		Type:      orchestrator.EventForcedResize,
		Component: component,
		TaskID:    taskID,
		Time:      time.Now(),
	})
}

// LockEnded reports that the restrictive mode chain emptied.
func (w *Webhook) LockEnded() {
	w.Publish(orchestrator.Event{Type: orchestrator.EventLockEnded, Time: time.Now()})
}

// Close stops the delivery goroutine after draining the queue.
func (w *Webhook) Close() {
	if w == nil {
		return
	}
	w.closeOnce.Do(func() {
		close(w.queue)
		<-w.done
	})
}

func (w *Webhook) deliver() {
	defer close(w.done)
	for ev := range w.queue {
		body, err := json.Marshal(ev)
		if err != nil {
			w.log.Error("marshal webhook event", zap.Error(err))
			continue
		}
		req, err := retryablehttp.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			w.log.Error("build webhook request", zap.Error(err))
			continue
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			w.log.Warn("webhook delivery failed",
				zap.String("type", ev.Type), zap.Error(err))
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			w.log.Warn("webhook rejected event",
				zap.String("type", ev.Type), zap.Int("status", resp.StatusCode))
		}
	}
}
