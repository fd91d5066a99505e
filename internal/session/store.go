// Package session tracks which uploaded dataset file belongs to which
// browser session, and reaps sessions that have gone idle.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/aotrack/internal/fsutil"
	"github.com/banshee-data/aotrack/internal/monitoring"
	"github.com/banshee-data/aotrack/internal/security"
	"github.com/banshee-data/aotrack/internal/timeutil"
)

// DefaultTimeout is how long a session may stay idle before a sweep reaps it.
const DefaultTimeout = time.Hour

var logf = monitoring.Scoped("session")

var (
	// ErrNotFound is returned for tokens the store does not know.
	ErrNotFound = errors.New("session not found")
	// ErrMalformedToken is returned by ParseToken for non-UUID input.
	ErrMalformedToken = errors.New("malformed session token")
)

// Session is a snapshot of one session's state.
type Session struct {
	Token       uuid.UUID `json:"session_id"`
	DatasetPath string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	LastTouched time.Time `json:"last_touched"`
	Leases      int       `json:"leases"`
}

// EventKind names a session lifecycle transition.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventReplaced EventKind = "replaced"
	EventTouched  EventKind = "touched"
	EventEvicted  EventKind = "evicted"
	EventDeleted  EventKind = "deleted"
)

// Event is delivered to an Observer after the store's lock is released.
type Event struct {
	Kind  EventKind
	Token uuid.UUID
	Path  string
	At    time.Time
}

// Observer receives session lifecycle events.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Options configures a Store. Zero values select production defaults.
type Options struct {
	Timeout time.Duration
	Clock   timeutil.Clock
	FS      fsutil.FileSystem
	// SpoolDir, when set, confines file deletions to paths inside it.
	SpoolDir string
	Observer Observer
}

type entry struct {
	Session
	// pending holds replaced paths whose deletion waits for the last lease.
	pending []string
}

// Store maps session tokens to dataset paths. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*entry

	timeout  time.Duration
	clock    timeutil.Clock
	fs       fsutil.FileSystem
	spoolDir string
	observer Observer
	newToken func() uuid.UUID
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	s := &Store{
		sessions: make(map[uuid.UUID]*entry),
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		fs:       opts.FS,
		spoolDir: opts.SpoolDir,
		observer: opts.Observer,
		newToken: uuid.New,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.fs == nil {
		s.fs = fsutil.OSFileSystem{}
	}
	return s
}

// ParseToken parses a cookie value into a token.
func ParseToken(raw string) (uuid.UUID, error) {
	tok, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return tok, nil
}

// Timeout returns the idle timeout.
func (s *Store) Timeout() time.Duration { return s.timeout }

// Now reads the store's clock.
func (s *Store) Now() time.Time { return s.clock.Now() }

// Create registers a new session owning path and returns its token.
func (s *Store) Create(path string) (uuid.UUID, error) {
	s.mu.Lock()
	tok := s.newToken()
	for i := 0; ; i++ {
		if _, taken := s.sessions[tok]; !taken && tok != uuid.Nil {
			break
		}
		if i >= 8 {
			s.mu.Unlock()
			return uuid.Nil, errors.New("session: could not draw an unused token")
		}
		tok = s.newToken()
	}
	now := s.clock.Now()
	s.sessions[tok] = &entry{Session: Session{Token: tok, DatasetPath: path, CreatedAt: now, LastTouched: now}}
	s.mu.Unlock()

	s.emit(Event{Kind: EventCreated, Token: tok, Path: path, At: now})
	return tok, nil
}

// Resolve returns a snapshot of the session without refreshing it.
func (s *Store) Resolve(tok uuid.UUID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[tok]
	if !ok {
		return Session{}, ErrNotFound
	}
	return e.Session, nil
}

// Touch refreshes the session's last-activity time.
func (s *Store) Touch(tok uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.sessions[tok]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	now := s.clock.Now()
	e.LastTouched = now
	path := e.DatasetPath
	s.mu.Unlock()

	s.emit(Event{Kind: EventTouched, Token: tok, Path: path, At: now})
	return nil
}

// Acquire resolves and touches the session in one step and leases it until
// release is called. A leased session is never swept and its files are not
// deleted underneath the holder. release is safe to call more than once.
func (s *Store) Acquire(tok uuid.UUID) (Session, func(), error) {
	s.mu.Lock()
	e, ok := s.sessions[tok]
	if !ok {
		s.mu.Unlock()
		return Session{}, func() {}, ErrNotFound
	}
	e.LastTouched = s.clock.Now()
	e.Leases++
	snap := e.Session
	s.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() { s.release(e) })
	}
	return snap, release, nil
}

func (s *Store) release(e *entry) {
	s.mu.Lock()
	e.Leases--
	var doomed []string
	if e.Leases == 0 {
		doomed = e.pending
		e.pending = nil
	}
	s.mu.Unlock()

	for _, p := range doomed {
		s.removeFile(p)
	}
}

// ReplacePath points the session at newPath. The previous file is deleted
// now, or once the last lease is released.
func (s *Store) ReplacePath(tok uuid.UUID, newPath string) error {
	s.mu.Lock()
	e, ok := s.sessions[tok]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	old := e.DatasetPath
	now := s.clock.Now()
	e.DatasetPath = newPath
	e.LastTouched = now
	deleteNow := old != "" && old != newPath && e.Leases == 0
	if old != "" && old != newPath && e.Leases > 0 {
		e.pending = append(e.pending, old)
	}
	s.mu.Unlock()

	if deleteNow {
		s.removeFile(old)
	}
	s.emit(Event{Kind: EventReplaced, Token: tok, Path: newPath, At: now})
	return nil
}

// Sweep evicts every unleased session idle for longer than the timeout and
// deletes its file. It returns the number evicted.
func (s *Store) Sweep() int {
	s.mu.Lock()
	now := s.clock.Now()
	var events []Event
	for tok, e := range s.sessions {
		if e.Leases > 0 || now.Sub(e.LastTouched) <= s.timeout {
			continue
		}
		delete(s.sessions, tok)
		s.removeFile(e.DatasetPath)
		events = append(events, Event{Kind: EventEvicted, Token: tok, Path: e.DatasetPath, At: now})
	}
	s.mu.Unlock()

	for _, ev := range events {
		s.emit(ev)
	}
	return len(events)
}

// DeleteOne evicts a session immediately and reports whether it existed.
func (s *Store) DeleteOne(tok uuid.UUID) bool {
	s.mu.Lock()
	e, ok := s.sessions[tok]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.sessions, tok)
	path := e.DatasetPath
	deleteNow := e.Leases == 0
	if !deleteNow && path != "" {
		e.pending = append(e.pending, path)
	}
	now := s.clock.Now()
	s.mu.Unlock()

	if deleteNow {
		s.removeFile(path)
	}
	s.emit(Event{Kind: EventDeleted, Token: tok, Path: path, At: now})
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns snapshots of every live session, oldest first.
func (s *Store) List() []Session {
	s.mu.Lock()
	out := make([]Session, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e.Session)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Token.String() < out[j].Token.String()
	})
	return out
}

// removeFile deletes a dataset file best-effort.
func (s *Store) removeFile(path string) {
	if path == "" {
		return
	}
	if s.spoolDir != "" {
		if err := security.WithinDir(path, s.spoolDir); err != nil {
			logf("refusing to remove %s: %v", path, err)
			return
		}
	}
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logf("failed to remove %s: %v", path, err)
	}
}

func (s *Store) emit(e Event) {
	if s.observer != nil {
		s.observer.Observe(e)
	}
}
