package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/barekit/lingua/pkg/speech"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider implements speech.Synthesizer and speech.Transcriber using the
// OpenAI audio endpoints.
type Provider struct {
	client *openai.Client
	voice  openai.AudioSpeechNewParamsVoice
}

// New creates a new Provider.
func New(opts ...option.RequestOption) *Provider {
	client := openai.NewClient(opts...)
	return &Provider{
		client: &client,
		voice:  openai.AudioSpeechNewParamsVoiceAlloy,
	}
}

// SetVoice sets the synthesis voice.
func (p *Provider) SetVoice(voice openai.AudioSpeechNewParamsVoice) {
	p.voice = voice
}

// Synthesize renders the text as MP3 audio. The language is carried by the
// text itself; the model picks up pronunciation from it.
func (p *Provider) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	res, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          p.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer res.Body.Close()

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return audio, nil
}

// Transcribe converts the audio into text using Whisper. An empty
// transcription is reported as speech.ErrAmbiguous.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if format == "" {
		format = "wav"
	}
	transcription, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(bytes.NewReader(audio), "audio."+format, "audio/"+format),
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	text := strings.TrimSpace(transcription.Text)
	if text == "" {
		return "", speech.ErrAmbiguous
	}
	return text, nil
}
