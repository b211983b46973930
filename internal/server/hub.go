package server

import (
	"encoding/json"
	"sync"

	"github.com/park285/cheese-board/pkg/chessdto"
)

// Hub fans state snapshots out to websocket watchers of each game.
type Hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{watchers: make(map[string]map[chan []byte]struct{})}
}

func (h *Hub) AddWatcher(gameID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.watchers[gameID]
	if !ok {
		set = make(map[chan []byte]struct{})
		h.watchers[gameID] = set
	}
	set[ch] = struct{}{}
}

func (h *Hub) RemoveWatcher(gameID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.watchers[gameID]
	delete(set, ch)
	if len(set) == 0 {
		delete(h.watchers, gameID)
	}
}

func (h *Hub) Watchers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[gameID])
}

// Broadcast drops the update for watchers whose buffer is full.
func (h *Hub) Broadcast(st chessdto.GameState) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[st.GameID] {
		select {
		case ch <- data:
		default:
		}
	}
}
