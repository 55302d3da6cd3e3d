package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harun/ironclaw/internal/observability"
)

// Observer is a connected WebSocket client receiving the event feed.
type Observer struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time
	IPAddress   string

	writeMu sync.Mutex
}

// WriteMessage writes one frame to the observer. Gorilla connections allow
// only one concurrent writer, so writes are serialized per observer.
func (o *Observer) WriteMessage(messageType int, data []byte) error {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	return o.Conn.WriteMessage(messageType, data)
}

// ObserverRegistry manages connected observers.
type ObserverRegistry struct {
	mu        sync.RWMutex
	observers map[string]*Observer
}

// NewObserverRegistry creates a new observer registry.
func NewObserverRegistry() *ObserverRegistry {
	return &ObserverRegistry{
		observers: make(map[string]*Observer),
	}
}

// Add adds an observer to the registry.
func (r *ObserverRegistry) Add(observer *Observer) {
	r.mu.Lock()
	r.observers[observer.ID] = observer
	count := len(r.observers)
	r.mu.Unlock()

	observability.SetConnectedObservers(count)
}

// Remove removes an observer from the registry.
func (r *ObserverRegistry) Remove(observerID string) {
	r.mu.Lock()
	delete(r.observers, observerID)
	count := len(r.observers)
	r.mu.Unlock()

	observability.SetConnectedObservers(count)
}

// GetAll returns all connected observers.
func (r *ObserverRegistry) GetAll() []*Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	observers := make([]*Observer, 0, len(r.observers))
	for _, observer := range r.observers {
		observers = append(observers, observer)
	}
	return observers
}

// Count returns the number of connected observers.
func (r *ObserverRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.observers)
}

// GetConnectedObservers returns information about all connected observers.
func (r *ObserverRegistry) GetConnectedObservers() []ObserverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ObserverInfo, 0, len(r.observers))
	for _, observer := range r.observers {
		infos = append(infos, ObserverInfo{
			ID:          observer.ID,
			ConnectedAt: observer.ConnectedAt,
			IPAddress:   observer.IPAddress,
		})
	}
	return infos
}
