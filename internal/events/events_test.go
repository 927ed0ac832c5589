package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/messaging"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestFanoutDeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Fanout{a, nil, b, Nop{}}.Publish(context.Background(), Event{Kind: PickupStatus, ResourceID: "r1"})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"u1", "a1"}, dedupe([]string{"u1", "", "a1", "u1"}))
}

func TestHubPushesToRecipient(t *testing.T) {
	hub := NewHub(testLogger{}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("account"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?account=u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected("u1") }, time.Second, 5*time.Millisecond)

	hub.Publish(context.Background(), Event{
		Kind: PickupStatus, ResourceID: "r1", Status: "Collected",
		Recipients: []string{"u1", "someone-offline"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, PickupStatus, got.Kind)
	assert.Equal(t, "r1", got.ResourceID)
	assert.Equal(t, "Collected", got.Status)
}

func TestHubRejectsAnonymous(t *testing.T) {
	hub := NewHub(testLogger{}, nil)
	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws/events", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(r))
}

type stubSender struct {
	mu   sync.Mutex
	sent []*messaging.Message
}

func (s *stubSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return "ok", nil
}

func TestPushNotifierTopics(t *testing.T) {
	sender := &stubSender{}
	n := NewPushNotifier(sender, testLogger{})
	n.Publish(context.Background(), Event{
		Kind: AccountStatus, ResourceID: "a1", Status: "active",
		Recipients: []string{"a1", "a1"},
	})
	n.Wait()

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "account-a1", msg.Topic)
	assert.Equal(t, "Account status changed", msg.Notification.Title)
	assert.Equal(t, "active", msg.Data["status"])
}
