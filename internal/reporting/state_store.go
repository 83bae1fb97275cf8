package reporting

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is the last known state of one application.
type Snapshot struct {
	App         string
	Target      string
	State       State
	Endpoint    string
	LastStep    string
	LastError   error
	LastUpdated time.Time
	// Durations accumulates the time spent per step.
	Durations map[string]time.Duration
}

// StateChangeEvent is delivered to subscribers on every transition.
type StateChangeEvent struct {
	App      string
	OldState State
	NewState State
	Snapshot Snapshot
}

// StateSubscription receives state changes of one application, or of all
// applications when App is empty.
type StateSubscription struct {
	ID      int64
	App     string
	Channel chan StateChangeEvent

	mu     sync.Mutex
	closed bool
}

// Close closes the subscription channel. Closing twice is fine.
func (s *StateSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.Channel)
		s.closed = true
	}
}

// StateStore keeps the latest snapshot per application. It is a Reporter,
// so it can be registered next to the console.
type StateStore struct {
	mu            sync.RWMutex
	states        map[string]Snapshot
	subscriptions map[int64]*StateSubscription
	nextID        int64
	dropped       int64
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		states:        make(map[string]Snapshot),
		subscriptions: make(map[int64]*StateSubscription),
	}
}

// Report implements Reporter.
func (s *StateStore) Report(update Update) {
	s.Set(update)
}

// Set applies update and returns whether the state changed.
func (s *StateStore) Set(update Update) bool {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.states[update.App]
	snapshot := old
	snapshot.App = update.App
	snapshot.State = update.State
	snapshot.LastStep = update.Step
	snapshot.LastError = update.Err
	snapshot.LastUpdated = update.Timestamp
	if update.Target != "" {
		snapshot.Target = update.Target
	}
	if update.Endpoint != "" {
		snapshot.Endpoint = update.Endpoint
	}
	durations := make(map[string]time.Duration, len(old.Durations)+1)
	for k, v := range old.Durations {
		durations[k] = v
	}
	if update.Step != "" && update.Duration > 0 {
		durations[update.Step] += update.Duration
	}
	snapshot.Durations = durations
	s.states[update.App] = snapshot

	changed := !exists || old.State != update.State
	if changed {
		s.notify(StateChangeEvent{App: update.App, OldState: old.State, NewState: update.State, Snapshot: snapshot})
	}
	return changed
}

// notify delivers without blocking; a full subscriber misses the event.
// Callers hold s.mu.
func (s *StateStore) notify(event StateChangeEvent) {
	for _, sub := range s.subscriptions {
		if sub.App != "" && sub.App != event.App {
			continue
		}
		sub.mu.Lock()
		if !sub.closed {
			select {
			case sub.Channel <- event:
			default:
				s.dropped++
			}
		}
		sub.mu.Unlock()
	}
}

// Get returns the snapshot of app.
func (s *StateStore) Get(app string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.states[app]
	return snapshot, ok
}

// All returns every snapshot ordered by application name.
func (s *StateStore) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Snapshot, 0, len(s.states))
	for _, snapshot := range s.states {
		result = append(result, snapshot)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].App < result[j].App })
	return result
}

// ByState returns the names of the applications in state.
func (s *StateStore) ByState(state State) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, snapshot := range s.states {
		if snapshot.State == state {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clear forgets app and returns whether it was known.
func (s *StateStore) Clear(app string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.states[app]
	delete(s.states, app)
	return ok
}

// Subscribe registers for state changes of app, or of every application when
// app is empty.
func (s *StateStore) Subscribe(app string) *StateSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &StateSubscription{ID: s.nextID, App: app, Channel: make(chan StateChangeEvent, 32)}
	s.subscriptions[sub.ID] = sub
	return sub
}

// Unsubscribe removes and closes sub.
func (s *StateStore) Unsubscribe(sub *StateSubscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	delete(s.subscriptions, sub.ID)
	s.mu.Unlock()
	sub.Close()
}

// Dropped returns how many events were not delivered to full subscribers.
func (s *StateStore) Dropped() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}
