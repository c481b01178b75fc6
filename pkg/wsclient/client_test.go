package wsclient

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
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// gatewayStub speaks the push gateway's wire protocol: it expects an
// authenticate frame on every new connection and can push notifications or
// drop connections on demand.
type gatewayStub struct {
	t          *testing.T
	acceptAuth bool
	failReason string

	mu        sync.Mutex
	conns     []*websocket.Conn
	connCount int
}

func newGatewayStub(t *testing.T) (*gatewayStub, *httptest.Server) {
	stub := &gatewayStub{t: t, acceptAuth: true}
	server := httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(server.Close)
	return stub, server
}

func (s *gatewayStub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.connCount++
	s.mu.Unlock()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			conn.Close()
			return
		}
		if f.Event != "authenticate" {
			continue
		}

		s.mu.Lock()
		accept := s.acceptAuth
		reason := s.failReason
		s.mu.Unlock()

		if !accept {
			payload, _ := json.Marshal(authFailedData{Error: reason})
			conn.WriteJSON(frame{Event: "authentication_failed", Data: payload})
			// Connection stays open; the client may retry on it
			continue
		}

		var auth authenticateData
		json.Unmarshal(f.Data, &auth)
		payload, _ := json.Marshal(authenticatedData{Success: true, UserID: auth.UserID})
		conn.WriteJSON(frame{Event: "authenticated", Data: payload})

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		return
	}
}

func (s *gatewayStub) setAcceptAuth(accept bool, failReason string) {
	s.mu.Lock()
	s.acceptAuth = accept
	s.failReason = failReason
	s.mu.Unlock()
}

func (s *gatewayStub) push(n *Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, _ := json.Marshal(n)
	for _, conn := range s.conns {
		conn.WriteJSON(frame{Event: "notification", Data: payload})
	}
}

func (s *gatewayStub) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}

func (s *gatewayStub) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connCount
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestConnect_ReceivesPushedNotifications(t *testing.T) {
	stub, server := newGatewayStub(t)

	received := make(chan *Notification, 4)
	client := New(Config{
		URL:        wsURL(server),
		UserID:     "user-1",
		Credential: "token",
		OnNotification: func(n *Notification) {
			received <- n
		},
	})
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	stub.push(&Notification{ID: "n-1", UserID: "user-1", Title: "Task Assigned", Status: "unread"})
	stub.push(&Notification{ID: "n-2", UserID: "user-1", Title: "New Comment", Status: "unread"})

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("notification never arrived")
		}
	}

	// Newest first
	list := client.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "n-2", list[0].ID)
	assert.Equal(t, "n-1", list[1].ID)
	assert.Equal(t, 2, client.UnreadCount())
}

func TestConnect_AuthFailure(t *testing.T) {
	stub, server := newGatewayStub(t)
	stub.setAcceptAuth(false, "identity-mismatch")

	var gotReason string
	client := New(Config{
		URL:        wsURL(server),
		UserID:     "user-1",
		Credential: "token",
		OnAuthFailure: func(reason string) {
			gotReason = reason
		},
	})
	defer client.Close()

	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity-mismatch")
	assert.Equal(t, "identity-mismatch", gotReason)
}

func TestAuthFailure_ConnectionStaysOpenForRetry(t *testing.T) {
	stub, server := newGatewayStub(t)
	stub.setAcceptAuth(false, "credential-expired")

	received := make(chan *Notification, 1)
	client := New(Config{
		URL:            wsURL(server),
		UserID:         "user-1",
		Credential:     "stale",
		OnNotification: func(n *Notification) { received <- n },
	})
	defer client.Close()

	require.Error(t, client.Connect(context.Background()))
	require.Equal(t, 1, stub.connections())

	// A fresh credential authenticates on the same transport, without
	// re-dialing
	stub.setAcceptAuth(true, "")
	client.SetCredential("fresh")
	require.NoError(t, client.Authenticate(context.Background()))
	assert.Equal(t, 1, stub.connections())

	stub.push(&Notification{ID: "n-1", UserID: "user-1", Status: "unread"})
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived after re-authentication")
	}
}

func TestReconnect_AfterDrop(t *testing.T) {
	stub, server := newGatewayStub(t)

	received := make(chan struct{}, 1)
	client := New(Config{
		URL:            wsURL(server),
		UserID:         "user-1",
		Credential:     "token",
		ReconnectDelay: 20 * time.Millisecond,
		OnNotification: func(n *Notification) { received <- struct{}{} },
	})
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	require.Equal(t, 1, stub.connections())

	stub.dropAll()

	// The client re-dials and authenticates again on the new connection
	waitFor(t, func() bool { return stub.connections() == 2 })

	stub.push(&Notification{ID: "n-1", UserID: "user-1", Status: "unread"})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived after reconnect")
	}
}

func TestClose_DoesNotReconnect(t *testing.T) {
	stub, server := newGatewayStub(t)

	client := New(Config{
		URL:            wsURL(server),
		UserID:         "user-1",
		Credential:     "token",
		ReconnectDelay: 20 * time.Millisecond,
	})
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Close())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, stub.connections())
}

func TestFetchNotifications(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []*Notification{
				{ID: "n-2", Status: "unread"},
				{ID: "n-1", Status: "read"},
			},
		})
	}))
	defer api.Close()

	client := New(Config{APIBaseURL: api.URL, Credential: "token"})
	require.NoError(t, client.FetchNotifications(context.Background(), 1, 20))

	list := client.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "n-2", list[0].ID)
	assert.Equal(t, 1, client.UnreadCount())
}

func TestMarkRead_Optimistic(t *testing.T) {
	var serverHit bool
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHit = true
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/n-1/read"))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	client := New(Config{APIBaseURL: api.URL, Credential: "token"})
	client.mergeToHead(&Notification{ID: "n-1", Status: "unread"})

	require.NoError(t, client.MarkRead(context.Background(), "n-1"))
	assert.True(t, serverHit)
	assert.Equal(t, "read", client.Notifications()[0].Status)
	assert.Equal(t, 0, client.UnreadCount())
}

func TestMarkRead_RollsBackOnServerError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	client := New(Config{APIBaseURL: api.URL, Credential: "token"})
	client.mergeToHead(&Notification{ID: "n-1", Status: "unread"})

	assert.Error(t, client.MarkRead(context.Background(), "n-1"))
	assert.Equal(t, "unread", client.Notifications()[0].Status)
}

func TestMarkRead_UnknownID_DoesNotClobberLaterPush(t *testing.T) {
	var client *Client
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The notification shows up between the optimistic flip and the
		// failure response
		client.mergeToHead(&Notification{ID: "n-9", Status: "unread"})
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	client = New(Config{APIBaseURL: api.URL, Credential: "token"})

	assert.Error(t, client.MarkRead(context.Background(), "n-9"))

	// The failed call never flipped anything, so there is nothing to roll
	// back; the pushed notification keeps its status
	list := client.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "unread", list[0].Status)
}

func TestMarkAllRead(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/read-all"))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	client := New(Config{APIBaseURL: api.URL, Credential: "token"})
	client.mergeToHead(&Notification{ID: "n-1", Status: "unread"})
	client.mergeToHead(&Notification{ID: "n-2", Status: "unread"})

	require.NoError(t, client.MarkAllRead(context.Background()))
	assert.Equal(t, 0, client.UnreadCount())
}
