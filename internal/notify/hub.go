package notify

import (
	"sync"

	"github.com/momentum-app/momentum-server/pkg/logger"
)

// Hub wakes suspended notification watchers when a user's unread count
// changes. Each watcher owns a channel; delivery is message passing, not
// a shared response map, so there is no timer cleanup to get wrong.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan int64]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan int64]struct{}),
	}
}

// Subscribe registers a watcher for the user's count updates. The
// returned cancel func must be called when the watcher goes away.
func (h *Hub) Subscribe(userID string) (<-chan int64, func()) {
	ch := make(chan int64, 1)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan int64]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish pushes the new unread count to every watcher of the user.
// Sends never block: a slow watcher just gets the latest count on its
// next receive.
func (h *Hub) Publish(userID string, count int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[userID] {
		select {
		case ch <- count:
		default:
			// Drop the stale value and replace it with the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- count:
			default:
			}
		}
	}

	if len(h.subs[userID]) > 0 {
		logger.Log.WithField("user_id", userID).Debug("Published notification count")
	}
}
