package engine

import (
	"bufio"
	"bytes"
	"math"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/book-expert/read-aloud/internal/core"
)

// Binary names of the supported speech programs.
const (
	BinaryEspeakNG = "espeak-ng"
	BinaryEspeak   = "espeak"
	BinarySay      = "say"
)

// Parameter scaling. Rate, pitch and volume arrive as multipliers around 1.0.
const (
	baseWordsPerMinute = 175
	espeakPitchScale   = 50
	espeakMaxPitch     = 99
	espeakVolumeScale  = 100
	espeakMaxVolume    = 200
	minWordsPerMinute  = 1
)

// Dialect describes how to drive one speech program.
type Dialect struct {
	Name string
	// Args builds the command line for an utterance. Text goes to stdin.
	Args func(params core.UtteranceParams) []string
	// VoiceArgs lists the voices when run with the same binary.
	VoiceArgs []string
	// ParseVoices reads the output of the voice listing.
	ParseVoices func(output []byte) []core.Voice
}

// Espeak drives espeak-ng and espeak.
var Espeak = Dialect{
	Name:        BinaryEspeakNG,
	Args:        espeakArgs,
	VoiceArgs:   []string{"--voices"},
	ParseVoices: parseEspeakVoices,
}

// Say drives the macOS say command. It has no pitch or volume flags.
var Say = Dialect{
	Name:        BinarySay,
	Args:        sayArgs,
	VoiceArgs:   []string{"-v", "?"},
	ParseVoices: parseSayVoices,
}

// DefaultBinary returns the speech program expected on this platform.
func DefaultBinary() string {
	if runtime.GOOS == "darwin" {
		return BinarySay
	}

	return BinaryEspeakNG
}

// DialectFor picks the dialect for a binary path by its base name.
func DialectFor(binary string) Dialect {
	if filepath.Base(binary) == BinarySay {
		return Say
	}

	return Espeak
}

func wordsPerMinute(rate float64) int {
	return max(minWordsPerMinute, int(math.Round(baseWordsPerMinute*rate)))
}

func espeakArgs(params core.UtteranceParams) []string {
	pitch := min(espeakMaxPitch, max(0, int(math.Round(espeakPitchScale*params.Pitch))))
	volume := min(espeakMaxVolume, max(0, int(math.Round(espeakVolumeScale*params.Volume))))

	args := []string{
		"-s", strconv.Itoa(wordsPerMinute(params.Rate)),
		"-p", strconv.Itoa(pitch),
		"-a", strconv.Itoa(volume),
	}

	if params.Voice != nil && params.Voice.ID != "" {
		args = append(args, "-v", params.Voice.ID)
	}

	return append(args, "--stdin")
}

func sayArgs(params core.UtteranceParams) []string {
	args := []string{"-r", strconv.Itoa(wordsPerMinute(params.Rate))}

	if params.Voice != nil && params.Voice.ID != "" {
		args = append(args, "-v", params.Voice.ID)
	}

	return args
}

// parseEspeakVoices reads `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 10)
func parseEspeakVoices(output []byte) []core.Voice {
	var list []core.Voice

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}

		list = append(list, core.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
		})
	}

	return list
}

// parseSayVoices reads `say -v '?'`:
//
//	Eddy (English (UK)) en_GB    # Hello! My name is Eddy.
func parseSayVoices(output []byte) []core.Voice {
	var list []core.Voice

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		entry, _, _ := strings.Cut(scanner.Text(), "#")

		fields := strings.Fields(entry)
		if len(fields) < 2 {
			continue
		}

		language := fields[len(fields)-1]
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(entry), language))

		list = append(list, core.Voice{
			ID:       name,
			Name:     name,
			Language: strings.ReplaceAll(language, "_", "-"),
		})
	}

	return list
}
