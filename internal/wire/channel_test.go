package wire

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrscan-dev/qrscan/internal/scanerr"
)

// scriptedPeer is a websocket endpoint whose reply behavior each test
// scripts per received message.
type scriptedPeer struct {
	t      *testing.T
	srv    *httptest.Server
	handle func(conn *websocket.Conn, msg Message)

	mu       sync.Mutex
	received []Message
}

func newScriptedPeer(t *testing.T, handle func(conn *websocket.Conn, msg Message)) *scriptedPeer {
	t.Helper()

	p := &scriptedPeer{t: t, handle: handle}
	upgrader := websocket.Upgrader{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			p.mu.Lock()
			p.received = append(p.received, msg)
			p.mu.Unlock()
			if msg.Type == TypeClose {
				return
			}
			if p.handle != nil {
				p.handle(conn, msg)
			}
		}
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *scriptedPeer) dial(t *testing.T) *Channel {
	t.Helper()

	url := "ws://" + strings.TrimPrefix(p.srv.URL, "http://") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil) //nolint:bodyclose // conn owns the handshake response
	require.NoError(t, err)
	return NewChannel(conn)
}

func (p *scriptedPeer) messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.received))
	copy(out, p.received)
	return out
}

func reply(conn *websocket.Conn, id int64, data *string) {
	_ = conn.WriteJSON(Reply{ID: id, Data: data})
}

func strPtr(s string) *string { return &s }

func TestRequestResolvesMatchingReply(t *testing.T) {
	peer := newScriptedPeer(t, func(conn *websocket.Conn, msg Message) {
		reply(conn, msg.ID, strPtr("decoded text"))
	})
	ch := peer.dial(t)
	defer func() { _ = ch.Close() }()

	data, err := ch.Request(context.Background(), TypeDecode, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "decoded text", data)
}

func TestRequestNullDataRejects(t *testing.T) {
	peer := newScriptedPeer(t, func(conn *websocket.Conn, msg Message) {
		reply(conn, msg.ID, nil)
	})
	ch := peer.dial(t)
	defer func() { _ = ch.Close() }()

	_, err := ch.Request(context.Background(), TypeDecode, nil, time.Second)
	require.ErrorIs(t, err, scanerr.ErrNoQRCodeFound)
	assert.Equal(t, "No QR code found", err.Error())
}

func TestStaleReplyDroppedThenMatchResolves(t *testing.T) {
	peer := newScriptedPeer(t, func(conn *websocket.Conn, msg Message) {
		// A reply for a request nobody is waiting on must be ignored,
		// not surface to the live request.
		reply(conn, msg.ID+1000, strPtr("stale"))
		reply(conn, msg.ID, strPtr("fresh"))
	})
	ch := peer.dial(t)
	defer func() { _ = ch.Close() }()

	data, err := ch.Request(context.Background(), TypeDecode, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "fresh", data)
}

func TestConcurrentRequestsMatchedByID(t *testing.T) {
	peer := newScriptedPeer(t, func(conn *websocket.Conn, msg Message) {
		var s string
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			return
		}
		reply(conn, msg.ID, strPtr("echo:"+s))
	})
	ch := peer.dial(t)
	defer func() { _ = ch.Close() }()

	var wg sync.WaitGroup
	for _, payload := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			data, err := ch.Request(context.Background(), TypeDecode, payload, time.Second)
			assert.NoError(t, err)
			assert.Equal(t, "echo:"+payload, data)
		}(payload)
	}
	wg.Wait()
}

func TestRequestTimeout(t *testing.T) {
	peer := newScriptedPeer(t, nil) // never replies
	ch := peer.dial(t)
	defer func() { _ = ch.Close() }()

	start := time.Now()
	_, err := ch.Request(context.Background(), TypeDecode, nil, 50*time.Millisecond)
	require.ErrorIs(t, err, scanerr.ErrTimeout)
	assert.Equal(t, "Scanner error: timeout", err.Error())
	assert.Less(t, time.Since(start), time.Second)
}

func TestRequestContextCancelled(t *testing.T) {
	peer := newScriptedPeer(t, nil)
	ch := peer.dial(t)
	defer func() { _ = ch.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ch.Request(ctx, TypeDecode, nil, time.Second)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Scanner error: "))
}

func TestAbruptCloseRejectsPending(t *testing.T) {
	peer := newScriptedPeer(t, func(conn *websocket.Conn, _ Message) {
		_ = conn.Close()
	})
	ch := peer.dial(t)

	_, err := ch.Request(context.Background(), TypeDecode, nil, time.Second)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Scanner error: "))

	// Later requests fail immediately on the broken channel.
	_, err = ch.Request(context.Background(), TypeDecode, nil, time.Second)
	require.Error(t, err)
}

func TestSendDeliversFireAndForget(t *testing.T) {
	peer := newScriptedPeer(t, nil)
	ch := peer.dial(t)

	id, err := ch.Send(TypeInversionMode, "both")
	require.NoError(t, err)
	assert.Positive(t, id)

	require.NoError(t, ch.Close())

	assert.Eventually(t, func() bool {
		msgs := peer.messages()
		return len(msgs) == 2 &&
			msgs[0].Type == TypeInversionMode &&
			msgs[1].Type == TypeClose
	}, time.Second, 10*time.Millisecond)
}

func TestDetachSkipsCloseMessage(t *testing.T) {
	peer := newScriptedPeer(t, func(conn *websocket.Conn, msg Message) {
		reply(conn, msg.ID, strPtr("ok"))
	})
	ch := peer.dial(t)

	_, err := ch.Request(context.Background(), TypeDecode, nil, time.Second)
	require.NoError(t, err)
	require.NoError(t, ch.Detach())

	time.Sleep(50 * time.Millisecond)
	for _, msg := range peer.messages() {
		assert.NotEqual(t, TypeClose, msg.Type, "detach must leave the peer running")
	}
}

func TestNextIDStrictlyIncreasing(t *testing.T) {
	prev := NextID()
	for i := 0; i < 100; i++ {
		next := NextID()
		assert.Greater(t, next, prev)
		prev = next
	}
}
