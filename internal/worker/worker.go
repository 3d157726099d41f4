// Package worker provides a NATS worker that reads articles aloud on request.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

var (
	// ErrTextKeyEmpty indicates that the event names no article.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrNothingToSpeak indicates that the article normalizes to empty text.
	ErrNothingToSpeak = errors.New("article has no speakable text")
	// ErrUnknownVoice indicates that the requested voice is not in the catalog.
	ErrUnknownVoice = errors.New("unknown voice")
	// ErrSpeechUnsupported indicates that no speech capability is available.
	ErrSpeechUnsupported = errors.New("speech is not supported on this host")
)

// Speaker is the part of the playback controller the worker drives.
type Speaker interface {
	IsSupported() bool
	SelectVoiceByID(id string) bool
	Speak(text string)
}

// Normalizer turns article content into speakable text.
type Normalizer interface {
	Prepare(content, override string) string
}

// PlaybackQueuedEvent is the reply sent once an article has been handed to
// the speech engine.
type PlaybackQueuedEvent struct {
	Header     events.EventHeader `json:"header"`
	TextKey    string             `json:"text_key"`
	Voice      string             `json:"voice,omitempty"`
	Characters int                `json:"characters"`
}

// NatsWorker listens for read-aloud requests on a NATS subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ArticleStore
	normalizer     Normalizer
	speaker        Speaker
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ArticleStore,
	normalizer Normalizer,
	speaker Speaker,
	log *logger.Logger,
) (*NatsWorker, error) {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		normalizer:     normalizer,
		speaker:        speaker,
		log:            log,
	}, nil
}

// Run starts the worker and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for read-aloud requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	characters, err := w.readAloud(ctx, event)
	if err != nil {
		w.log.Error("Failed to read article for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	reply := &PlaybackQueuedEvent{
		Header:     event.Header,
		TextKey:    event.TextKey,
		Voice:      event.Voice,
		Characters: characters,
	}

	err = publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// readAloud fetches the article, normalizes it and submits it for speech.
// It returns the number of characters submitted.
func (w *NatsWorker) readAloud(ctx context.Context, event *events.TextProcessedEvent) (int, error) {
	if !w.speaker.IsSupported() {
		return 0, ErrSpeechUnsupported
	}

	article, err := w.store.Article(ctx, event.TextKey)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch article '%s': %w", event.TextKey, err)
	}

	speech := w.normalizer.Prepare(article.Content, article.SpeechOverride)
	if speech == "" {
		return 0, fmt.Errorf("%w: '%s'", ErrNothingToSpeak, event.TextKey)
	}

	if event.Voice != "" && !w.speaker.SelectVoiceByID(event.Voice) {
		return 0, fmt.Errorf("%w: '%s'", ErrUnknownVoice, event.Voice)
	}

	w.speaker.Speak(speech)

	return utf8.RuneCountInString(speech), nil
}

func publishReply(msg *nats.Msg, reply *PlaybackQueuedEvent) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	return &event, nil
}
