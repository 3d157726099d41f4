// Package worker_test tests the NATS worker for the read-aloud service.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/tts/text"
	"github.com/book-expert/read-aloud/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSubject    = "test_subject"
	requestTimeout = 5 * time.Second
	silentTimeout  = 500 * time.Millisecond
)

var errMockFetch = errors.New("mock fetch error")

// mockArticleStore is a mock implementation of the ArticleStore interface.
type mockArticleStore struct {
	mu          sync.Mutex
	articles    map[string]core.Article
	fetchedKeys []string
}

func (m *mockArticleStore) Article(_ context.Context, key string) (core.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetchedKeys = append(m.fetchedKeys, key)

	article, ok := m.articles[key]
	if !ok {
		return core.Article{}, errMockFetch
	}

	return article, nil
}

func (m *mockArticleStore) PutArticle(_ context.Context, key string, article core.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.articles[key] = article

	return nil
}

// mockSpeaker records what the worker asks the controller to do.
type mockSpeaker struct {
	mu          sync.Mutex
	unsupported bool
	voices      map[string]bool
	selected    string
	spoken      []string
}

func (m *mockSpeaker) IsSupported() bool { return !m.unsupported }

func (m *mockSpeaker) SelectVoiceByID(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.voices[id] {
		return false
	}

	m.selected = id

	return true
}

func (m *mockSpeaker) Speak(speech string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.spoken = append(m.spoken, speech)
}

func (m *mockSpeaker) snapshot() (string, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selected, append([]string(nil), m.spoken...)
}

func createTestNatsClient(t *testing.T) *nats.Conn {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		server.Shutdown()
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		server.Shutdown()
	})

	return natsConnection
}

func startWorker(t *testing.T, store *mockArticleStore, speaker *mockSpeaker) *nats.Conn {
	t.Helper()

	natsConnection := createTestNatsClient(t)

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	normalizer, err := text.NewNormalizer(nil)
	require.NoError(t, err)

	workerInstance, err := worker.NewNatsWorker(natsConnection, testSubject, store, normalizer, speaker, testLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errChan, "worker.Run should not error on graceful shutdown")
	})

	// A probe that times out instead of failing with no responders proves the
	// subscription is live.
	require.Eventually(t, func() bool {
		_, err := natsConnection.Request(testSubject, []byte("{}"), 10*time.Millisecond)

		return errors.Is(err, nats.ErrTimeout)
	}, requestTimeout, 20*time.Millisecond)

	return natsConnection
}

func newEvent(textKey, voice string) *events.TextProcessedEvent {
	return &events.TextProcessedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		TextKey:           textKey,
		PNGKey:            "",
		PageNumber:        0,
		TotalPages:        0,
		Voice:             voice,
		Seed:              0,
		NGL:               0,
		TopP:              0,
		RepetitionPenalty: 0,
		Temperature:       0,
	}
}

func request(t *testing.T, natsConnection *nats.Conn, event *events.TextProcessedEvent, timeout time.Duration) (*nats.Msg, error) {
	t.Helper()

	eventData, err := json.Marshal(event)
	require.NoError(t, err)

	return natsConnection.Request(testSubject, eventData, timeout)
}

func TestMessageHandler_Success(t *testing.T) {
	t.Parallel()

	store := &mockArticleStore{articles: map[string]core.Article{
		"post": {Content: "# Intro\n\nLearn **C#** with the REST API."},
	}}
	speaker := &mockSpeaker{voices: map[string]bool{"en-gb": true}}
	natsConnection := startWorker(t, store, speaker)

	event := newEvent("post", "en-gb")

	replyMsg, err := request(t, natsConnection, event, requestTimeout)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var reply worker.PlaybackQueuedEvent
	require.NoError(t, json.Unmarshal(replyMsg.Data, &reply))

	expected := "Intro\n\nLearn C sharp with the rest A P I."
	selected, spoken := speaker.snapshot()

	assert.Equal(t, []string{expected}, spoken)
	assert.Equal(t, "en-gb", selected)
	assert.Equal(t, event.Header.WorkflowID, reply.Header.WorkflowID)
	assert.Equal(t, "post", reply.TextKey)
	assert.Equal(t, "en-gb", reply.Voice)
	assert.Equal(t, len(expected), reply.Characters)
}

func TestMessageHandler_SpeechOverride(t *testing.T) {
	t.Parallel()

	store := &mockArticleStore{articles: map[string]core.Article{
		"post": {Content: "ignored body", SpeechOverride: "Read this with **npm** instead."},
	}}
	speaker := &mockSpeaker{}
	natsConnection := startWorker(t, store, speaker)

	_, err := request(t, natsConnection, newEvent("post", ""), requestTimeout)
	require.NoError(t, err)

	selected, spoken := speaker.snapshot()
	assert.Equal(t, []string{"Read this with N P M instead."}, spoken)
	assert.Empty(t, selected)
}

func TestMessageHandler_Failures(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		event   *events.TextProcessedEvent
		speaker *mockSpeaker
	}{
		{name: "empty text key", event: newEvent("", ""), speaker: &mockSpeaker{}},
		{name: "missing article", event: newEvent("missing", ""), speaker: &mockSpeaker{}},
		{name: "blank article", event: newEvent("blank", ""), speaker: &mockSpeaker{}},
		{name: "unknown voice", event: newEvent("post", "klingon"), speaker: &mockSpeaker{}},
		{name: "unsupported", event: newEvent("post", ""), speaker: &mockSpeaker{unsupported: true}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			store := &mockArticleStore{articles: map[string]core.Article{
				"post":  {Content: "Some text."},
				"blank": {Content: "```\ncode only\n```"},
			}}
			natsConnection := startWorker(t, store, testCase.speaker)

			_, err := request(t, natsConnection, testCase.event, silentTimeout)
			require.ErrorIs(t, err, nats.ErrTimeout, "no reply is sent for a failed request")

			_, spoken := testCase.speaker.snapshot()
			assert.Empty(t, spoken)
		})
	}
}

func TestMessageHandler_MalformedPayload(t *testing.T) {
	t.Parallel()

	store := &mockArticleStore{articles: map[string]core.Article{}}
	speaker := &mockSpeaker{}
	natsConnection := startWorker(t, store, speaker)

	_, err := natsConnection.Request(testSubject, []byte("not json"), silentTimeout)
	require.ErrorIs(t, err, nats.ErrTimeout)
	assert.Empty(t, store.fetchedKeys)
}
