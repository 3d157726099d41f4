package playback

// State is the playback lifecycle state.
type State int

const (
	// StateIdle means no utterance is playing.
	StateIdle State = iota
	// StateSpeaking means an utterance is active and unpaused.
	StateSpeaking
	// StatePaused means an utterance is active and paused.
	StatePaused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
