// Package playback drives a platform speech capability through a small
// idle/speaking/paused state machine and keeps the user's voice and pitch
// preferences in sync with it.
//
// State changes triggered by the caller (Pause, Resume, Stop) take effect
// immediately. Speak only submits an utterance; the controller enters
// StateSpeaking when the platform reports that the utterance started, and
// returns to StateIdle when it ends or fails. Events from an utterance that
// has been superseded by a newer Speak call are ignored.
//
// Live rate and pitch changes are written into the active utterance, but
// whether the platform honors them mid-playback depends on the platform.
// A voice change never touches the active utterance; it applies from the
// next Speak call.
package playback

import (
	"context"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/tts/voices"
)

// Default utterance parameters.
const (
	DefaultRate   = 1.0
	DefaultPitch  = 1.0
	DefaultVolume = 1.0
)

// PreferenceStore persists the voice and pitch selections.
type PreferenceStore interface {
	VoiceID(ctx context.Context) (string, bool, error)
	SetVoiceID(ctx context.Context, id string) error
	ClearVoiceID(ctx context.Context) error
	Pitch(ctx context.Context) (float64, bool, error)
	SetPitch(ctx context.Context, pitch float64) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithRate sets the initial speaking rate.
func WithRate(rate float64) Option {
	return func(c *Controller) { c.rate = rate }
}

// WithPitch sets the initial pitch. A persisted pitch takes precedence.
func WithPitch(pitch float64) Option {
	return func(c *Controller) { c.pitch = pitch }
}

// WithVolume sets the volume of every utterance.
func WithVolume(volume float64) Option {
	return func(c *Controller) { c.volume = volume }
}

// WithDefaultVoice selects the voice with this id when no voice preference
// is persisted and the catalog offers it. Once a voice has been set or
// cleared through SetVoice, the default is no longer consulted.
func WithDefaultVoice(id string) Option {
	return func(c *Controller) { c.defaultVoiceID = id }
}

// WithStateListener registers fn to observe state transitions. fn is called
// outside the controller lock and must not block. Stop also reports
// StateIdle when it drops an utterance that had not started yet.
func WithStateListener(fn func(State)) Option {
	return func(c *Controller) { c.listener = fn }
}

// Controller is the read-aloud playback state machine.
type Controller struct {
	engine         core.SpeechSynthesizer
	prefs          PreferenceStore
	log            *logger.Logger
	loader         *voices.Loader
	listener       func(State)
	defaultVoiceID string

	mu       sync.Mutex
	state    State
	rate     float64
	pitch    float64
	volume   float64
	voices   []core.Voice
	selected *core.Voice
	current  *core.Utterance
	closed   bool

	// Bumped by SetPitch and SetVoice so a catalog reload that read the
	// stored preferences earlier does not overwrite a newer choice.
	pitchVersion uint64
	voiceVersion uint64
	voiceChosen  bool
}

// New creates a controller around engine. A nil engine yields an unsupported
// controller on which every operation is a silent no-op. prefs and log may
// be nil.
func New(engine core.SpeechSynthesizer, prefs PreferenceStore, log *logger.Logger, opts ...Option) *Controller {
	controller := &Controller{
		engine: engine,
		prefs:  prefs,
		log:    log,
		state:  StateIdle,
		rate:   DefaultRate,
		pitch:  DefaultPitch,
		volume: DefaultVolume,
	}

	for _, opt := range opts {
		opt(controller)
	}

	if engine == nil {
		return controller
	}

	controller.loader = voices.NewLoader(engine, controller.applyCatalog)
	controller.loader.Start()

	return controller
}

// applyCatalog runs on every catalog load: it restores the persisted pitch
// and resolves the persisted voice against the fresh catalog.
func (c *Controller) applyCatalog(catalog voices.Catalog) {
	ctx := context.Background()

	c.mu.Lock()
	pitchVersion := c.pitchVersion
	voiceVersion := c.voiceVersion
	voiceChosen := c.voiceChosen
	c.mu.Unlock()

	var (
		pitch    float64
		hasPitch bool
		selected *core.Voice
		voiceID  string
	)

	if !voiceChosen {
		voiceID = c.defaultVoiceID
	}

	if c.prefs != nil {
		storedPitch, found, err := c.prefs.Pitch(ctx)
		if err != nil {
			c.warn("Failed to load pitch preference: %v", err)
		} else if found {
			pitch, hasPitch = storedPitch, true
		}

		storedID, found, err := c.prefs.VoiceID(ctx)
		if err != nil {
			c.warn("Failed to load voice preference: %v", err)
		} else if found {
			voiceID = storedID
		}
	}

	if voice, ok := catalog.Lookup(voiceID); ok {
		selected = &voice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.voices = catalog.List()

	if hasPitch && c.pitchVersion == pitchVersion {
		c.pitch = pitch
	}

	if selected != nil && c.voiceVersion == voiceVersion {
		c.selected = selected
	}
}

// Speak cancels whatever the platform is saying and submits text as a new
// utterance built from the current rate, pitch, volume and voice.
func (c *Controller) Speak(text string) {
	c.mu.Lock()
	if c.engine == nil || c.closed {
		c.mu.Unlock()

		return
	}

	params := core.UtteranceParams{
		Rate:   c.rate,
		Pitch:  c.pitch,
		Volume: c.volume,
		Voice:  copyVoice(c.selected),
	}
	utterance := core.NewUtterance(text, params, utteranceHandler{controller: c})
	c.current = utterance
	c.mu.Unlock()

	c.engine.Cancel()

	err := c.engine.Speak(utterance)
	if err != nil {
		utterance.Fail(err)
	}
}

// Pause pauses an utterance that is speaking. It is a no-op in any other state.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.engine == nil || c.closed || c.state != StateSpeaking {
		c.mu.Unlock()

		return
	}

	c.state = StatePaused
	c.mu.Unlock()

	c.engine.Pause()
	c.notify(StatePaused)
}

// Resume resumes a paused utterance. It is a no-op in any other state.
func (c *Controller) Resume() {
	c.mu.Lock()
	if c.engine == nil || c.closed || c.state != StatePaused {
		c.mu.Unlock()

		return
	}

	c.state = StateSpeaking
	c.mu.Unlock()

	c.engine.Resume()
	c.notify(StateSpeaking)
}

// Stop cancels the active utterance and returns to StateIdle without waiting
// for the platform to confirm.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.engine == nil || c.closed || (c.state == StateIdle && c.current == nil) {
		c.mu.Unlock()

		return
	}

	c.state = StateIdle
	c.current = nil
	c.mu.Unlock()

	c.engine.Cancel()
	c.notify(StateIdle)
}

// SetSpeed changes the speaking rate, including that of the active utterance.
func (c *Controller) SetSpeed(rate float64) {
	c.mu.Lock()
	if c.engine == nil || c.closed {
		c.mu.Unlock()

		return
	}

	c.rate = rate
	current := c.current
	c.mu.Unlock()

	if current != nil {
		current.SetRate(rate)
	}
}

// SetPitch changes the pitch, including that of the active utterance, and
// persists it. Persistence failures are logged and otherwise ignored.
func (c *Controller) SetPitch(pitch float64) {
	c.mu.Lock()
	if c.engine == nil || c.closed {
		c.mu.Unlock()

		return
	}

	c.pitch = pitch
	c.pitchVersion++
	current := c.current
	c.mu.Unlock()

	if current != nil {
		current.SetPitch(pitch)
	}

	if c.prefs == nil {
		return
	}

	err := c.prefs.SetPitch(context.Background(), pitch)
	if err != nil {
		c.warn("Failed to persist pitch %v: %v", pitch, err)
	}
}

// SetVoice selects voice for the next utterance and persists its id; nil
// clears the selection and the persisted id. The active utterance keeps the
// voice it was built with.
func (c *Controller) SetVoice(voice *core.Voice) {
	c.mu.Lock()
	if c.engine == nil || c.closed {
		c.mu.Unlock()

		return
	}

	c.selected = copyVoice(voice)
	c.voiceVersion++
	c.voiceChosen = true
	c.mu.Unlock()

	if c.prefs == nil {
		return
	}

	var err error
	if voice == nil {
		err = c.prefs.ClearVoiceID(context.Background())
	} else {
		err = c.prefs.SetVoiceID(context.Background(), voice.ID)
	}

	if err != nil {
		c.warn("Failed to persist voice selection: %v", err)
	}
}

// SelectVoiceByID calls SetVoice with the catalog voice identified by id and
// reports whether the catalog had it.
func (c *Controller) SelectVoiceByID(id string) bool {
	for _, voice := range c.Voices() {
		if voice.ID == id {
			c.SetVoice(&voice)

			return true
		}
	}

	return false
}

// Close cancels any platform speech and detaches the catalog subscription.
// Events delivered afterwards are ignored.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	c.state = StateIdle
	c.current = nil
	c.mu.Unlock()

	if c.engine == nil {
		return nil
	}

	c.engine.Cancel()
	c.loader.Stop()

	return nil
}

// IsSupported reports whether a speech capability is available.
func (c *Controller) IsSupported() bool {
	return c.engine != nil
}

// State returns the current playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// IsSpeaking reports whether an utterance is playing, paused or not.
func (c *Controller) IsSpeaking() bool {
	return c.State() != StateIdle
}

// IsPaused reports whether the active utterance is paused.
func (c *Controller) IsPaused() bool {
	return c.State() == StatePaused
}

// Speed returns the speaking rate used for new utterances.
func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rate
}

// Pitch returns the pitch used for new utterances.
func (c *Controller) Pitch() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pitch
}

// Volume returns the volume used for new utterances.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.volume
}

// Voices returns the voice catalog in platform order.
func (c *Controller) Voices() []core.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := make([]core.Voice, len(c.voices))
	copy(list, c.voices)

	return list
}

// SelectedVoice returns the voice for new utterances, or nil for the
// platform default.
func (c *Controller) SelectedVoice() *core.Voice {
	c.mu.Lock()
	defer c.mu.Unlock()

	return copyVoice(c.selected)
}

// transition applies an utterance event if the utterance is still current
// and reports whether it did.
func (c *Controller) transition(utterance *core.Utterance, next State, terminal bool) bool {
	c.mu.Lock()
	if c.closed || c.current != utterance {
		c.mu.Unlock()

		return false
	}

	if terminal {
		c.current = nil
	}

	changed := c.state != next
	c.state = next
	c.mu.Unlock()

	if changed {
		c.notify(next)
	}

	return true
}

func (c *Controller) notify(state State) {
	if c.listener != nil {
		c.listener(state)
	}
}

func (c *Controller) warn(format string, args ...any) {
	if c.log != nil {
		c.log.Warn(format, args...)
	}
}

func copyVoice(voice *core.Voice) *core.Voice {
	if voice == nil {
		return nil
	}

	clone := *voice

	return &clone
}

// utteranceHandler routes utterance events back into the controller.
type utteranceHandler struct {
	controller *Controller
}

func (h utteranceHandler) UtteranceStarted(utterance *core.Utterance) {
	h.controller.transition(utterance, StateSpeaking, false)
}

func (h utteranceHandler) UtteranceEnded(utterance *core.Utterance) {
	h.controller.transition(utterance, StateIdle, true)
}

func (h utteranceHandler) UtteranceFailed(utterance *core.Utterance, err error) {
	if h.controller.transition(utterance, StateIdle, true) {
		h.controller.warn("Utterance %s failed: %v", utterance.ID(), err)
	}
}
