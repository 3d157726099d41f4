// Package preferences persists the read-aloud voice and pitch selections
// across sessions on top of a durable key-value backend.
package preferences

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/book-expert/read-aloud/internal/core"
)

// Keys under which preferences are persisted.
const (
	KeyVoice = "tts-voice"
	KeyPitch = "tts-pitch"
)

// ErrInvalidPitch indicates a persisted pitch that is not a number.
var ErrInvalidPitch = errors.New("persisted pitch is not a number")

// Store is a typed view over the two preference keys.
type Store struct {
	kv core.KeyValueStore
}

// New wraps a key-value backend.
func New(kv core.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// VoiceID returns the persisted voice identifier.
func (s *Store) VoiceID(ctx context.Context) (string, bool, error) {
	id, found, err := s.kv.Get(ctx, KeyVoice)
	if err != nil {
		return "", false, fmt.Errorf("failed to read voice preference: %w", err)
	}

	return id, found, nil
}

// SetVoiceID persists the voice identifier.
func (s *Store) SetVoiceID(ctx context.Context, id string) error {
	err := s.kv.Set(ctx, KeyVoice, id)
	if err != nil {
		return fmt.Errorf("failed to write voice preference: %w", err)
	}

	return nil
}

// ClearVoiceID removes the persisted voice identifier entirely.
func (s *Store) ClearVoiceID(ctx context.Context) error {
	err := s.kv.Delete(ctx, KeyVoice)
	if err != nil {
		return fmt.Errorf("failed to clear voice preference: %w", err)
	}

	return nil
}

// Pitch returns the persisted pitch.
func (s *Store) Pitch(ctx context.Context) (float64, bool, error) {
	raw, found, err := s.kv.Get(ctx, KeyPitch)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read pitch preference: %w", err)
	}

	if !found {
		return 0, false, nil
	}

	pitch, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidPitch, raw)
	}

	return pitch, true, nil
}

// SetPitch persists the pitch in its shortest decimal form, e.g. "1.8".
// No range check is applied.
func (s *Store) SetPitch(ctx context.Context, pitch float64) error {
	err := s.kv.Set(ctx, KeyPitch, strconv.FormatFloat(pitch, 'f', -1, 64))
	if err != nil {
		return fmt.Errorf("failed to write pitch preference: %w", err)
	}

	return nil
}
