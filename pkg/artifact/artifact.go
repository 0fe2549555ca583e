// Package artifact manages ephemeral speech-audio files: opaque named
// blobs in a shared directory whose lifecycle is purely time-based. No
// durable record tracks them; age is derived from the filesystem timestamp
// and a periodic sweep removes anything older than the TTL.
package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/google/uuid"
)

const (
	// DefaultTTL is how long an artifact stays retrievable.
	DefaultTTL = time.Hour
	// Extension marks files in the shared directory as managed audio.
	// The sweep never touches anything else.
	Extension = ".mp3"
)

// Manager stores, serves and expires audio artifacts.
type Manager struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewManager creates a Manager rooted at dir, creating it if needed.
func NewManager(dir string, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &Manager{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Store writes the audio bytes and returns the opaque name usable for
// later retrieval.
func (m *Manager) Store(audio []byte) (string, error) {
	name := uuid.NewString() + Extension
	if err := os.WriteFile(filepath.Join(m.dir, name), audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}
	return name, nil
}

// Fetch returns the artifact bytes, chat.ErrNotFound if it never existed
// or was already swept.
func (m *Manager) Fetch(name string) ([]byte, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, chat.ErrNotFound
	}
	audio, err := os.ReadFile(filepath.Join(m.dir, name))
	if os.IsNotExist(err) {
		return nil, chat.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return audio, nil
}

// Sweep removes managed audio files older than the TTL and returns how
// many were removed. Failures on individual entries are logged and do not
// abort the scan; a file disappearing mid-sweep is tolerated. Sweep is
// idempotent and safe to run concurrently with Store and Fetch.
func (m *Manager) Sweep() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to scan artifact dir: %w", err)
	}

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Artifact sweep failed to stat entry", "name", entry.Name(), "error", err)
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(m.dir, entry.Name())); err != nil {
			if !os.IsNotExist(err) {
				slog.Warn("Artifact sweep failed to remove entry", "name", entry.Name(), "error", err)
			}
			continue
		}
		removed++
	}
	return removed, nil
}

// TTL returns the configured time-to-live.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
