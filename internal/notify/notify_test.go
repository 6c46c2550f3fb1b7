package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catanEvent = Event{
	Action:    "created",
	GameID:    "g1",
	LibraryID: "lib",
	Title:     "Catan",
	SourceURL: "https://boardgamegeek.com/boardgame/13",
}

type recordingNotifier struct {
	err    error
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestEventMessage(t *testing.T) {
	assert.Equal(t, "New game added to the library: Catan\nhttps://boardgamegeek.com/boardgame/13", catanEvent.Message())

	exp := Event{Title: "Wingspan: European Expansion", IsExpansion: true}
	assert.Equal(t, "New expansion added to the library: Wingspan: European Expansion", exp.Message())
}

func TestMultiNotifiesAllAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("discord down")}

	err := Multi{failing, ok}.Notify(context.Background(), catanEvent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)

	assert.NoError(t, Multi{}.Notify(context.Background(), catanEvent))
}

func TestWebhookNotifier(t *testing.T) {
	var (
		mu      sync.Mutex
		auth    string
		payload webhookPayload
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(server.URL+"/hook", "secret")
	require.NoError(t, err)
	require.NoError(t, n.Notify(context.Background(), catanEvent))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, catanEvent, payload.Event)
	assert.Contains(t, payload.Content, "Catan")
}

func TestWebhookNotifierStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(server.URL, "", WithHTTPClient(server.Client()))
	require.NoError(t, err)

	err = n.Notify(context.Background(), catanEvent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "nope")
}

func TestNewWebhookNotifierRejectsBadURL(t *testing.T) {
	_, err := NewWebhookNotifier("not a url", "")
	require.Error(t, err)
}

func TestShoutrrrNotifierRejectsBadURL(t *testing.T) {
	_, err := NewShoutrrrNotifier([]string{"nosuchservice://x"}, time.Second)
	require.Error(t, err)

	_, err = NewShoutrrrNotifier(nil, time.Second)
	require.Error(t, err)
}

func TestShoutrrrNotifierGenericWebhook(t *testing.T) {
	received := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "http://")
	n, err := NewShoutrrrNotifier([]string{"generic://" + host + "/hook?disabletls=yes"}, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), catanEvent))

	select {
	case body := <-received:
		assert.Contains(t, body, "Catan")
	case <-time.After(2 * time.Second):
		t.Fatal("generic webhook was not called")
	}
}

func TestNewFromConfig(t *testing.T) {
	n, err := New("", "", nil, time.Second)
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = New("https://hooks.example.com/x", "", nil, time.Second)
	require.NoError(t, err)
	assert.IsType(t, &WebhookNotifier{}, n)

	n, err = New("https://hooks.example.com/x", "", []string{"generic://hooks.example.com/y"}, time.Second)
	require.NoError(t, err)
	assert.IsType(t, Multi{}, n)

	_, err = New("", "", []string{"bogus://"}, time.Second)
	require.Error(t, err)
}
