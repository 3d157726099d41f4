package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/book-expert/read-aloud/internal/preferences"
	"github.com/book-expert/read-aloud/internal/tts/playback"
	"github.com/spf13/cobra"
)

const (
	flagControls     = "controls"
	flagControlsDesc = "Read playback commands from stdin: p pause, r resume, s stop, + faster, - slower"
	speedStep        = 0.25
	minSpeed         = 0.25
)

var (
	// errUnknownVoice indicates that the requested voice is not in the catalog.
	errUnknownVoice = errors.New("unknown voice")
	// errSpeakFailed indicates that the engine rejected the utterance.
	errSpeakFailed = errors.New("failed to start speech")
)

type speakFlags struct {
	overridePath string
	voiceID      string
	pitch        float64
	speed        float64
	controls     bool
}

func newSpeakCmd(application *app) *cobra.Command {
	var flags speakFlags

	cmd := &cobra.Command{
		Use:   "speak FILE",
		Short: "Speak a Markdown article and wait until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeak(cmd, application, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.overridePath, flagOverride, "", flagOverrideDesc)
	cmd.Flags().StringVar(&flags.voiceID, flagVoice, "", flagVoiceDesc)
	cmd.Flags().Float64Var(&flags.pitch, flagPitch, playback.DefaultPitch, flagPitchDesc)
	cmd.Flags().Float64Var(&flags.speed, flagSpeed, playback.DefaultRate, flagSpeedDesc)
	cmd.Flags().BoolVar(&flags.controls, flagControls, false, flagControlsDesc)

	return cmd
}

func runSpeak(cmd *cobra.Command, application *app, path string, flags speakFlags) error {
	speech, err := prepareSpeech(application, path, flags.overridePath)
	if err != nil {
		return err
	}

	speechEngine, err := newEngine(application)
	if err != nil {
		return err
	}

	backend, closePreferences, err := openPreferences(application, nil)
	if err != nil {
		return err
	}
	defer closePreferences()

	ctx, stop := runContext(cmd.Context())
	defer stop()

	finished := make(chan struct{})

	var finishOnce sync.Once

	onState := func(state playback.State) {
		application.log.Info("Playback is %s", state)

		if state == playback.StateIdle {
			finishOnce.Do(func() { close(finished) })
		}
	}

	options := []playback.Option{playback.WithStateListener(onState)}
	if cmd.Flags().Changed(flagSpeed) {
		options = append(options, playback.WithRate(flags.speed))
	}

	recorder := &submitRecorder{SpeechSynthesizer: speechEngine}
	controller := playback.New(recorder, preferences.New(backend), application.log,
		controllerOptions(application, options...)...)

	defer func() {
		closeErr := controller.Close()
		if closeErr != nil {
			application.log.Warn("Failed to close playback controller: %v", closeErr)
		}
	}()

	// The catalog must be known before a voice can be selected or restored.
	err = speechEngine.LoadVoices(ctx)
	if err != nil {
		application.log.Warn("Failed to list voices: %v", err)
	}

	if flags.voiceID != "" && !controller.SelectVoiceByID(flags.voiceID) {
		return fmt.Errorf("%w: '%s'", errUnknownVoice, flags.voiceID)
	}

	if cmd.Flags().Changed(flagPitch) {
		controller.SetPitch(flags.pitch)
	}

	controller.Speak(speech)

	err = recorder.lastErr()
	if err != nil {
		return fmt.Errorf("%w: %w", errSpeakFailed, err)
	}

	if flags.controls {
		go readControls(cmd.InOrStdin(), controller)
	}

	select {
	case <-finished:
	case <-ctx.Done():
		controller.Stop()
	}

	return nil
}

// readControls applies single-letter playback commands, one per line.
func readControls(input io.Reader, controller *playback.Controller) {
	scanner := bufio.NewScanner(input)

	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "p":
			controller.Pause()
		case "r":
			controller.Resume()
		case "s":
			controller.Stop()
		case "+":
			controller.SetSpeed(controller.Speed() + speedStep)
		case "-":
			controller.SetSpeed(max(minSpeed, controller.Speed()-speedStep))
		}
	}
}

// runContext returns a context cancelled on interrupt or termination.
func runContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
