package websocket

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	mutex    sync.Mutex
	received [][]byte
	failWith error
	closed   int
	onSend   func()
}

func (f *fakeClient) Send(message []byte) error {
	if f.onSend != nil {
		f.onSend()
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.received = append(f.received, message)
	return nil
}

func (f *fakeClient) Close(string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.closed++
}

func (f *fakeClient) messages() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]string, 0, len(f.received))
	for _, m := range f.received {
		out = append(out, string(m))
	}
	return out
}

func TestRegisterAndCount(t *testing.T) {
	r := NewRegistry(nil)
	a, b := &fakeClient{}, &fakeClient{}

	r.Register(a)
	r.Register(b)
	r.Register(a)
	r.Register(nil)

	assert.Equal(t, 2, r.Count())
	assert.True(t, r.Contains(a))
}

func TestUnregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeClient{}
	r.Register(a)

	assert.False(t, r.Unregister(&fakeClient{}))
	assert.True(t, r.Unregister(a))
	assert.False(t, r.Unregister(a))
	assert.Equal(t, 0, r.Count())
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	r := NewRegistry(nil)
	clients := []*fakeClient{{}, {}, {}}
	for _, c := range clients {
		r.Register(c)
	}

	delivered := r.Broadcast(ReloadMessage)

	assert.Equal(t, 3, delivered)
	for _, c := range clients {
		assert.Equal(t, []string{"reload"}, c.messages())
	}
}

func TestBroadcastWithNoClients(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, 0, r.Broadcast(ReloadMessage))
}

func TestBroadcastDropsFailingClient(t *testing.T) {
	r := NewRegistry(nil)
	good := &fakeClient{}
	bad := &fakeClient{failWith: errors.New("broken pipe")}
	r.Register(good)
	r.Register(bad)

	delivered := r.Broadcast(ReloadMessage)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, []string{"reload"}, good.messages())
	assert.False(t, r.Contains(bad))
	assert.Equal(t, 1, bad.closed)
	assert.Equal(t, 1, r.Count())
}

func TestBroadcastSkipsClientRemovedMidway(t *testing.T) {
	r := NewRegistry(nil)
	first := &fakeClient{}
	second := &fakeClient{}

	// Whichever client is visited first removes the other one.
	first.onSend = func() { r.Unregister(second) }
	second.onSend = func() { r.Unregister(first) }
	r.Register(first)
	r.Register(second)

	delivered := r.Broadcast(ReloadMessage)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, len(first.messages())+len(second.messages()))
}

func TestConcurrentBroadcastAndUnregister(t *testing.T) {
	r := NewRegistry(nil)
	clients := make([]*fakeClient, 50)
	for i := range clients {
		clients[i] = &fakeClient{}
		r.Register(clients[i])
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			r.Broadcast(ReloadMessage)
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range clients {
			r.Unregister(c)
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(nil)
	a, b := &fakeClient{}, &fakeClient{}
	r.Register(a)
	r.Register(b)

	r.CloseAll("shutdown")

	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}
