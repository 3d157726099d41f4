package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/read-aloud/internal/config"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/preferences"
	"github.com/book-expert/read-aloud/internal/tts/engine"
	"github.com/book-expert/read-aloud/internal/tts/playback"
	"github.com/nats-io/nats.go"
)

// errNoSpeechEngine indicates that the configured speech program is missing.
var errNoSpeechEngine = errors.New("speech program not found")

func newEngine(application *app) (*engine.CommandEngine, error) {
	binary := application.cfg.Speech.Binary
	if binary == "" {
		binary = engine.DefaultBinary()
	}

	if !engine.Available(binary) {
		return nil, fmt.Errorf("%w: %s", errNoSpeechEngine, binary)
	}

	return engine.New(binary, application.log), nil
}

// connectNATS opens a connection and its JetStream context.
func connectNATS(cfg config.NATSConfig) (*nats.Conn, nats.JetStreamContext, error) {
	if cfg.URL == "" {
		return nil, nil, config.ErrNATSURLEmpty
	}

	natsConnection, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	return natsConnection, jetstreamContext, nil
}

// openPreferences opens the configured preference backend. The NATS backend
// uses jetstreamContext when given and connects on its own otherwise. The
// returned close function releases everything that was opened.
func openPreferences(application *app, jetstreamContext nats.JetStreamContext) (preferences.Backend, func(), error) {
	var natsConnection *nats.Conn

	if application.cfg.Preferences.Backend == config.BackendNATS && jetstreamContext == nil {
		var err error

		natsConnection, jetstreamContext, err = connectNATS(application.cfg.NATS)
		if err != nil {
			return nil, nil, err
		}
	}

	backend, err := preferences.Open(application.cfg.Preferences, application.cfg.NATS, jetstreamContext)
	if err != nil {
		if natsConnection != nil {
			natsConnection.Close()
		}

		return nil, nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	closeFn := func() {
		closeErr := backend.Close()
		if closeErr != nil {
			application.log.Warn("Failed to close preferences: %v", closeErr)
		}

		if natsConnection != nil {
			natsConnection.Close()
		}
	}

	return backend, closeFn, nil
}

func controllerOptions(application *app, extra ...playback.Option) []playback.Option {
	speech := application.cfg.Speech

	return append([]playback.Option{
		playback.WithRate(speech.Rate),
		playback.WithPitch(speech.Pitch),
		playback.WithVolume(speech.Volume),
		playback.WithDefaultVoice(speech.DefaultVoice),
	}, extra...)
}

// submitRecorder remembers whether the last utterance was rejected by the
// engine before it could start, which the controller reports only as a
// return to idle.
type submitRecorder struct {
	core.SpeechSynthesizer

	mu  sync.Mutex
	err error
}

func (s *submitRecorder) Speak(utterance *core.Utterance) error {
	err := s.SpeechSynthesizer.Speak(utterance)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	return err
}

func (s *submitRecorder) lastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}
