// Package ffmpeg adapts the external ffmpeg binary as a speech.Normalizer.
// Input is raw bytes plus their source encoding; output is mono 16 kHz
// signed 16-bit PCM in a WAV container, or a declared failure.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Normalizer invokes ffmpeg as a subprocess.
type Normalizer struct {
	// Binary is the command to run. Defaults to "ffmpeg".
	Binary string
}

// New creates a new Normalizer.
func New() *Normalizer {
	return &Normalizer{Binary: "ffmpeg"}
}

// Normalize transcodes raw audio of the given encoding (an ffmpeg demuxer
// name such as "webm", "ogg" or "wav") to mono 16 kHz PCM.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, encoding string) ([]byte, error) {
	if encoding == "" {
		return nil, fmt.Errorf("missing source encoding")
	}

	binary := n.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	var out, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, binary,
		"-f", encoding,
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", "16000",
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(raw)
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, errBuf.String())
	}
	return out.Bytes(), nil
}
