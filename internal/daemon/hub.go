package daemon

import (
	"context"
	"sync"
	"time"

	"batchwatch/internal/aggregator"
	"batchwatch/internal/logger"
	"batchwatch/internal/model"

	"go.uber.org/zap"
)

const hubClientBuffer = 16

// Hub fans flushed batches out to live websocket clients. Slow clients miss
// batches instead of holding up the flush.
type Hub struct {
	mu      sync.Mutex
	clients map[chan model.BatchMessage]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[chan model.BatchMessage]struct{}),
	}
}

func (h *Hub) Subscribe() (<-chan model.BatchMessage, func()) {
	ch := make(chan model.BatchMessage, hubClientBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Callback is the aggregator subscriber feeding the hub.
func (h *Hub) Callback(_ context.Context, events []model.ChangeEvent, params aggregator.Params) error {
	msg := model.BatchMessage{
		FlushedAt: time.Now().UTC(),
		Size:      len(events),
		Events:    events,
		Params:    params,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
			logger.Log.Warn("websocket client is behind, dropping batch",
				zap.Int("events", len(events)))
		}
	}

	return nil
}
