package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	h1, h2 := newFakeHandle("conn-1", "bot"), newFakeHandle("conn-2", "bot")

	_, ok := r.Get("bot")
	assert.False(t, ok)

	r.Put("bot", Entry{Handle: h1, State: StateConnecting})
	e, ok := r.Get("bot")
	require.True(t, ok)
	assert.Equal(t, "bot", e.SessionID, "Put stamps the session id")
	assert.True(t, r.Holds("bot", h1))

	r.Put("bot", Entry{Handle: h2, State: StateConnected})
	assert.Equal(t, 1, r.Len())
	assert.False(t, h1.isClosed(), "Put never terminates the previous handle")

	assert.False(t, r.RemoveHandle("bot", h1), "stale handle cannot evict the current one")
	assert.True(t, r.Holds("bot", h2))
	assert.True(t, r.RemoveHandle("bot", h2))
	assert.Equal(t, 0, r.Len())

	r.Remove("bot")
	r.Remove("never-there")
}

func TestRegistryListIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Put(id, Entry{Handle: newFakeHandle("conn-"+id, id)})
	}

	var ids []string
	for _, e := range r.List() {
		ids = append(ids, e.SessionID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("a")
	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(30 * time.Millisecond):
	}

	unlockB := k.Lock("b")
	unlockB()

	unlockA()
	unlockA()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the key")
	}

	require.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}

func TestKeyedMutexCounter(t *testing.T) {
	k := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("bot")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}

func TestDispositionFor(t *testing.T) {
	tests := []struct {
		code StatusCode
		want Disposition
	}{
		{StatusConnectionReplaced, DispositionStop},
		{StatusForbidden, DispositionStop},
		{StatusLoggedOut, DispositionLogout},
		{StatusRestartRequired, DispositionReconnect},
		{StatusConnectionLost, DispositionReconnect},
		{StatusBadSession, DispositionReconnect},
		{StatusUnknown, DispositionReconnect},
		{StatusCode(499), DispositionReconnect},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, DispositionFor(tt.code))
		})
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := assert.AnError

	assert.ErrorIs(t, &EngineConnectError{SessionID: "bot", Err: cause}, cause)
	assert.ErrorIs(t, &StoreError{Op: "save", SessionID: "bot", Err: cause}, cause)
	assert.Equal(t, "botId is required", (&InputError{Field: "botId"}).Error())
	assert.Contains(t, (&StoreError{Op: "list", Err: cause}).Error(), "credential store list failed")
	assert.Equal(t, "connection terminated: admin_delete", (&TerminatedError{Reason: ReasonAdminDelete}).Error())
}
