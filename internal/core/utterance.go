package core

import (
	"sync"

	"github.com/google/uuid"
)

// UtteranceListener receives the lifecycle events of a single utterance.
// Started is delivered at most once; exactly one of Ended or Failed is
// delivered at most once.
type UtteranceListener interface {
	UtteranceStarted(utterance *Utterance)
	UtteranceEnded(utterance *Utterance)
	UtteranceFailed(utterance *Utterance, err error)
}

// UtteranceParams holds the synthesis parameters of an utterance.
type UtteranceParams struct {
	Rate   float64
	Pitch  float64
	Volume float64
	Voice  *Voice
}

// Utterance is one playback attempt submitted to a SpeechSynthesizer.
// Rate and pitch may be changed while it is in flight; whether the platform
// honors the change mid-playback depends on the implementation.
type Utterance struct {
	id       string
	text     string
	listener UtteranceListener

	mu     sync.Mutex
	params UtteranceParams

	startOnce    sync.Once
	terminalOnce sync.Once
}

// NewUtterance creates an utterance with a fresh identifier.
// listener may be nil.
func NewUtterance(text string, params UtteranceParams, listener UtteranceListener) *Utterance {
	return &Utterance{
		id:       uuid.NewString(),
		text:     text,
		listener: listener,
		params:   params,
	}
}

// ID returns the unique identifier of the utterance.
func (u *Utterance) ID() string {
	return u.id
}

// Text returns the text to be spoken.
func (u *Utterance) Text() string {
	return u.text
}

// Params returns a snapshot of the current synthesis parameters.
func (u *Utterance) Params() UtteranceParams {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.params
}

// Rate returns the current speaking rate.
func (u *Utterance) Rate() float64 {
	return u.Params().Rate
}

// Pitch returns the current pitch.
func (u *Utterance) Pitch() float64 {
	return u.Params().Pitch
}

// SetRate changes the speaking rate in place.
func (u *Utterance) SetRate(rate float64) {
	u.mu.Lock()
	u.params.Rate = rate
	u.mu.Unlock()
}

// SetPitch changes the pitch in place.
func (u *Utterance) SetPitch(pitch float64) {
	u.mu.Lock()
	u.params.Pitch = pitch
	u.mu.Unlock()
}

// Start reports that the platform began speaking.
func (u *Utterance) Start() {
	u.startOnce.Do(func() {
		if u.listener != nil {
			u.listener.UtteranceStarted(u)
		}
	})
}

// End reports normal completion.
func (u *Utterance) End() {
	u.terminalOnce.Do(func() {
		if u.listener != nil {
			u.listener.UtteranceEnded(u)
		}
	})
}

// Fail reports abnormal termination.
func (u *Utterance) Fail(err error) {
	u.terminalOnce.Do(func() {
		if u.listener != nil {
			u.listener.UtteranceFailed(u, err)
		}
	})
}
