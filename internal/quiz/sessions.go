package quiz

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	DefaultRevealTimeout    = 31 * time.Second
	DefaultBroadcastTimeout = 5 * time.Second
)

type SessionOptions struct {
	// Rooms is the room directory updated on joins and quiz start/end.
	Rooms RoomDirectory

	// Quizzes resolves the quiz question list and question contents.
	Quizzes QuizStore

	// Broadcaster delivers outbound events to the room members.
	Broadcaster Broadcaster

	// Clock drives the reveal deadline. Default is the wall clock.
	Clock clock.Clock

	// RevealTimeout is the delay between a question broadcast and the forced
	// answer reveal.
	//
	// Default is 31 seconds.
	RevealTimeout time.Duration

	// BroadcastTimeout bounds every outbound broadcast.
	//
	// Default is 5 seconds.
	BroadcastTimeout time.Duration
}

// Sessions is the in-memory registry of live room sessions.
//
// Multiple goroutines may invoke methods on Sessions simultaneously.
// The registry lock only guards the map, it is never held while a
// session lock is acquired.
type Sessions struct {
	opts     SessionOptions
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessions returns an empty registry creating sessions with opts.
func NewSessions(opts SessionOptions) *Sessions {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.RevealTimeout <= 0 {
		opts.RevealTimeout = DefaultRevealTimeout
	}
	if opts.BroadcastTimeout <= 0 {
		opts.BroadcastTimeout = DefaultBroadcastTimeout
	}
	return &Sessions{
		opts:     opts,
		sessions: map[string]*Session{},
	}
}

// Create installs a fresh session for roomID.
//
// An existing session for the same room is replaced and closed: its
// players, scores and pending reveal are discarded.
func (r *Sessions) Create(roomID string) *Session {
	sess := newSession(roomID, r.opts, r.removeCompleted)

	r.mu.Lock()
	old := r.sessions[roomID]
	r.sessions[roomID] = sess
	r.mu.Unlock()

	if old != nil {
		old.Close()
		slog.Warn("replaced existing room session", slog.String("room_id", roomID))
	}

	return sess
}

// Get retrieves the live session of a room.
func (r *Sessions) Get(roomID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[roomID]
	return sess, ok
}

// GetOrCreate retrieves the live session of a room or installs a new one.
func (r *Sessions) GetOrCreate(roomID string) *Session {
	if sess, ok := r.Get(roomID); ok {
		return sess
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[roomID]; ok {
		return sess
	}
	sess := newSession(roomID, r.opts, r.removeCompleted)
	r.sessions[roomID] = sess

	return sess
}

// Remove closes and forgets the session of a room.
func (r *Sessions) Remove(roomID string) {
	r.mu.Lock()
	sess := r.sessions[roomID]
	delete(r.sessions, roomID)
	r.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
}

// removeCompleted forgets sess unless it was already replaced.
// Called by a session with its own lock held.
func (r *Sessions) removeCompleted(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[sess.roomID] == sess {
		delete(r.sessions, sess.roomID)
	}
}

// Len returns the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Disconnect detaches connID from the first session holding it and
// reports whether one did. A session left without connections is closed
// and forgotten.
func (r *Sessions) Disconnect(ctx context.Context, connID string) bool {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	for _, sess := range sessions {
		if sess.disconnect(ctx, connID) {
			return true
		}
	}
	return false
}
