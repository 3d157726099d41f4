// Package engine implements the platform speech capability by driving an
// external speech program such as espeak-ng or the macOS say command.
//
// Each utterance runs as one process. Submitting a new utterance kills the
// previous process, pausing sends SIGSTOP and resuming sends SIGCONT. Rate,
// pitch and volume are read when the process starts; changing them on an
// utterance that is already speaking has no audible effect until the next
// utterance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
)

var (
	// ErrCanceled is reported to an utterance whose process was cancelled.
	ErrCanceled = errors.New("utterance canceled")
	// ErrPauseUnsupported indicates the platform cannot suspend processes.
	ErrPauseUnsupported = errors.New("pause is not supported on this platform")
)

// process is one running utterance.
type process struct {
	cmd       *exec.Cmd
	utterance *core.Utterance
	canceled  atomic.Bool
}

// CommandEngine is a core.SpeechSynthesizer backed by a speech program.
type CommandEngine struct {
	binary  string
	dialect Dialect
	log     *logger.Logger

	mu           sync.Mutex
	active       *process
	voices       []core.Voice
	listeners    map[int]func()
	nextListener int
}

// New creates an engine for binary, choosing the dialect from its name.
// log may be nil.
func New(binary string, log *logger.Logger) *CommandEngine {
	return NewWithDialect(binary, DialectFor(binary), log)
}

// NewWithDialect creates an engine with an explicit dialect.
func NewWithDialect(binary string, dialect Dialect, log *logger.Logger) *CommandEngine {
	return &CommandEngine{
		binary:    binary,
		dialect:   dialect,
		log:       log,
		listeners: make(map[int]func()),
	}
}

// Available reports whether the speech program can be found.
func Available(binary string) bool {
	_, err := exec.LookPath(binary)

	return err == nil
}

// Start lists the voices in the background and notifies voices-changed
// subscribers once the catalog is known.
func (e *CommandEngine) Start(ctx context.Context) {
	go func() {
		err := e.LoadVoices(ctx)
		if err != nil {
			e.warn("Failed to list voices with %s: %v", e.binary, err)
		}
	}()
}

// LoadVoices runs the voice listing synchronously and notifies subscribers.
func (e *CommandEngine) LoadVoices(ctx context.Context) error {
	if len(e.dialect.VoiceArgs) == 0 || e.dialect.ParseVoices == nil {
		return nil
	}

	// #nosec G204 -- binary comes from trusted configuration
	output, err := exec.CommandContext(ctx, e.binary, e.dialect.VoiceArgs...).Output()
	if err != nil {
		return fmt.Errorf("failed to run voice listing: %w", err)
	}

	list := e.dialect.ParseVoices(output)

	e.mu.Lock()
	e.voices = list

	listeners := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}

	return nil
}

// Voices returns the catalog known so far.
func (e *CommandEngine) Voices() []core.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := make([]core.Voice, len(e.voices))
	copy(list, e.voices)

	return list
}

// OnVoicesChanged subscribes fn to catalog updates.
func (e *CommandEngine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		delete(e.listeners, id)
	}
}

// Speak starts a process for the utterance, superseding any current one.
// Events are delivered from a separate goroutine.
func (e *CommandEngine) Speak(utterance *core.Utterance) error {
	e.Cancel()

	// #nosec G204 -- binary comes from trusted configuration, text goes to stdin
	cmd := exec.Command(e.binary, e.dialect.Args(utterance.Params())...)
	cmd.Stdin = strings.NewReader(utterance.Text())

	err := cmd.Start()
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", e.binary, err)
	}

	proc := &process{cmd: cmd, utterance: utterance}

	e.mu.Lock()
	e.active = proc
	e.mu.Unlock()

	go e.wait(proc)

	return nil
}

func (e *CommandEngine) wait(proc *process) {
	proc.utterance.Start()

	err := proc.cmd.Wait()

	e.mu.Lock()
	if e.active == proc {
		e.active = nil
	}
	e.mu.Unlock()

	switch {
	case proc.canceled.Load():
		proc.utterance.Fail(ErrCanceled)
	case err != nil:
		proc.utterance.Fail(fmt.Errorf("%s exited: %w", e.binary, err))
	default:
		proc.utterance.End()
	}
}

// Cancel kills the current process, if any. It does not wait for it to exit.
func (e *CommandEngine) Cancel() {
	e.mu.Lock()
	proc := e.active
	e.active = nil
	e.mu.Unlock()

	if proc == nil {
		return
	}

	proc.canceled.Store(true)

	err := proc.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.warn("Failed to kill %s process: %v", e.binary, err)
	}
}

// Pause suspends the current process.
func (e *CommandEngine) Pause() {
	e.signalActive(pauseProcess, "pause")
}

// Resume continues a suspended process.
func (e *CommandEngine) Resume() {
	e.signalActive(resumeProcess, "resume")
}

func (e *CommandEngine) signalActive(signal func(*os.Process) error, action string) {
	e.mu.Lock()
	proc := e.active
	e.mu.Unlock()

	if proc == nil {
		return
	}

	err := signal(proc.cmd.Process)
	if err != nil {
		e.warn("Failed to %s %s process: %v", action, e.binary, err)
	}
}

func (e *CommandEngine) warn(format string, args ...any) {
	if e.log != nil {
		e.log.Warn(format, args...)
	}
}
