// Package speech defines the contracts for the external speech providers:
// synthesis, transcription and audio normalization. The providers are
// collaborators whose behavior is consumed, not reimplemented.
package speech

import (
	"context"
	"errors"
)

// ErrAmbiguous is returned when the transcription provider could not
// interpret the audio. It is not a hard failure; callers surface it as
// ordinary text handling, not as an error page.
var ErrAmbiguous = errors.New("could not understand audio")

// Synthesizer produces spoken audio for a piece of text.
type Synthesizer interface {
	// Synthesize renders text in the given language and returns encoded
	// audio bytes.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Transcriber converts recorded audio into text.
type Transcriber interface {
	// Transcribe returns the recognized text, ErrAmbiguous when the
	// provider could not interpret the audio.
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// Normalizer converts raw audio of a known source encoding into mono
// 16 kHz PCM suitable for recognition.
type Normalizer interface {
	Normalize(ctx context.Context, raw []byte, encoding string) ([]byte, error)
}
