package session

import (
	"errors"

	"github.com/barekit/lingua/pkg/chat"
)

// ErrNotFound is returned when a conversation is absent or not owned by the
// caller. The two cases are deliberately indistinguishable.
var ErrNotFound = chat.ErrNotFound

// ErrValidation is returned for malformed input, such as a missing question
// or conversation id. Nothing is created or modified.
var ErrValidation = errors.New("invalid request")

// ErrUpstream wraps a provider failure (LLM, TTS, STT). The query path
// converts LLM upstream failures into a persisted fallback turn instead of
// propagating them; other paths report them synchronously.
var ErrUpstream = errors.New("upstream provider failure")
