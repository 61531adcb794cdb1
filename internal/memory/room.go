// Package memory provides ephemeral per-room conversation state for the
// orchestrator: a processed-content guard that makes ingestion idempotent
// and a bounded ring of recent memories serialized into processor context.
package memory

import (
	"encoding/json"
	"sync"
	"time"
)

// defaultCapacity bounds how many recent entries each room retains.
const defaultCapacity = 50

// Entry is one remembered item in a room.
type Entry struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Content   any       `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// room holds the state of one conversation context. Its flow mutex
// serializes autonomous-flow processing per room so two near-simultaneous
// inputs cannot interleave their memory reads and writes.
type room struct {
	flowMu    sync.Mutex
	mu        sync.Mutex
	processed map[string]bool
	entries   []Entry
}

// RoomStore manages all rooms. Safe for concurrent use.
type RoomStore struct {
	mu       sync.Mutex
	rooms    map[string]*room
	capacity int
}

// RoomStoreOption configures a RoomStore.
type RoomStoreOption func(*RoomStore)

// WithCapacity sets how many recent entries each room keeps.
func WithCapacity(n int) RoomStoreOption {
	return func(s *RoomStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewRoomStore creates an empty room store.
func NewRoomStore(opts ...RoomStoreOption) *RoomStore {
	s := &RoomStore{
		rooms:    make(map[string]*room),
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RoomStore) getRoom(roomID string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		r = &room{processed: make(map[string]bool)}
		s.rooms[roomID] = r
	}
	return r
}

// LockRoom acquires the room's flow mutex and returns the function that
// releases it. The unlock is bound to the locked room instance, so a Reset
// racing an in-flight flow cannot make the release land on a fresh room.
func (s *RoomStore) LockRoom(roomID string) (unlock func()) {
	r := s.getRoom(roomID)
	r.flowMu.Lock()
	return r.flowMu.Unlock
}

// WasProcessed reports whether the content id was already processed in the
// room.
func (s *RoomStore) WasProcessed(roomID, contentID string) bool {
	r := s.getRoom(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed[contentID]
}

// MarkProcessed records the content id as processed in the room.
func (s *RoomStore) MarkProcessed(roomID, contentID string) {
	r := s.getRoom(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[contentID] = true
}

// Append stores an entry in the room's recent-memory ring, evicting the
// oldest entry when the ring is full.
func (s *RoomStore) Append(roomID string, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	r := s.getRoom(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, e)
	if len(r.entries) > s.capacity {
		r.entries = r.entries[len(r.entries)-s.capacity:]
	}
}

// Entries returns a copy of the room's recent entries, oldest first.
func (s *RoomStore) Entries(roomID string) []Entry {
	r := s.getRoom(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Snapshot serializes the room's recent entries to JSON for inclusion in
// processor context.
func (s *RoomStore) Snapshot(roomID string) (string, error) {
	entries := s.Entries(roomID)

	encoded, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Reset drops all state for a room.
func (s *RoomStore) Reset(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}
