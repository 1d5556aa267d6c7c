package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type fakeHandle struct {
	id      string
	session string
	events  chan Event

	mu         sync.Mutex
	closed     bool
	terminated []Reason
	logouts    int
	logoutErr  error
	sent       []Action
}

func newFakeHandle(id, session string) *fakeHandle {
	return &fakeHandle{id: id, session: session, events: make(chan Event, 64)}
}

func (h *fakeHandle) ID() string           { return h.id }
func (h *fakeHandle) Events() <-chan Event { return h.events }

func (h *fakeHandle) Send(_ context.Context, a Action) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("handle %s closed", h.id)
	}
	h.sent = append(h.sent, a)
	return nil
}

func (h *fakeHandle) Logout(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logouts++
	return h.logoutErr
}

func (h *fakeHandle) Terminate(reason Reason) {
	h.mu.Lock()
	h.terminated = append(h.terminated, reason)
	h.mu.Unlock()
	h.close(StatusUnknown, &TerminatedError{Reason: reason})
}

// emit delivers a non-terminal event.
func (h *fakeHandle) emit(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.events <- ev
	}
}

// close delivers the single Closed event and closes the stream.
func (h *fakeHandle) close(code StatusCode, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.events <- Closed(code, err)
	close(h.events)
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *fakeHandle) terminations() []Reason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Reason(nil), h.terminated...)
}

type connectCall struct {
	id    string
	creds []byte
	at    time.Time
}

type fakeEngine struct {
	mu      sync.Mutex
	calls   []connectCall
	handles []*fakeHandle
	fail    map[string]error
	// gate, when set, blocks Connect until it is closed or ctx ends.
	gate chan struct{}
	// autoOpen emits Open right after connecting.
	autoOpen bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{fail: make(map[string]error)}
}

func (e *fakeEngine) Connect(ctx context.Context, id string, creds []byte) (Handle, error) {
	e.mu.Lock()
	e.calls = append(e.calls, connectCall{id: id, creds: creds, at: time.Now()})
	gate, err := e.gate, e.fail[id]
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	h := newFakeHandle(fmt.Sprintf("conn-%s-%d", id, len(e.handles)+1), id)
	e.handles = append(e.handles, h)
	autoOpen := e.autoOpen
	e.mu.Unlock()

	if autoOpen {
		h.emit(Open(User{ID: id + "@s.whatsapp.net"}))
	}
	return h, nil
}

func (e *fakeEngine) connects() []connectCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]connectCall(nil), e.calls...)
}

func (e *fakeEngine) connectCount() int {
	return len(e.connects())
}

func (e *fakeEngine) allHandles() []*fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakeHandle(nil), e.handles...)
}

func (e *fakeEngine) lastHandle() *fakeHandle {
	hs := e.allHandles()
	if len(hs) == 0 {
		return nil
	}
	return hs[len(hs)-1]
}

func (e *fakeEngine) failFor(id string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[id] = err
}

type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	deletes int
	loadErr error
	saveErr error
	delErr  error
	listErr error
}

func newFakeStore(ids ...string) *fakeStore {
	s := &fakeStore{data: make(map[string][]byte)}
	for _, id := range ids {
		s.data[id] = []byte(`{"me":"` + id + `"}`)
	}
	return s
}

func (s *fakeStore) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	b, ok := s.data[id]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return b, nil
}

func (s *fakeStore) Save(_ context.Context, id string, creds []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[id] = creds
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.delErr != nil {
		return s.delErr
	}
	if _, ok := s.data[id]; !ok {
		return ErrCredentialsNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *fakeStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[id]
	return ok
}

func (s *fakeStore) get(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[id]
}

type fakeNotifier struct {
	mu      sync.Mutex
	added   []string
	deleted []string
	err     error
}

func (n *fakeNotifier) BotAdded(_ context.Context, id string, _ User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.added = append(n.added, id)
	return n.err
}

func (n *fakeNotifier) BotDeleted(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, id)
	return n.err
}

func (n *fakeNotifier) addedIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.added...)
}

func (n *fakeNotifier) deletedIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.deleted...)
}

type fakeQR struct {
	mu      sync.Mutex
	latest  map[string]string
	cleared []string
}

func (q *fakeQR) PublishQR(id, qr string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.latest == nil {
		q.latest = make(map[string]string)
	}
	q.latest[id] = qr
}

func (q *fakeQR) ClearQR(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.latest, id)
	q.cleared = append(q.cleared, id)
}

func (q *fakeQR) get(id string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.latest[id]
}
