// Package store persists session transcripts as JSON files under the
// sessions directory. A file lock serializes access across processes;
// writes go through an atomic rename so a crash never leaves a torn file.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"

	"github.com/researchcli/research/internal/orchestrator"
	"github.com/researchcli/research/internal/pathutil"
)

const (
	lockRetryInterval = 100 * time.Millisecond
	lockMaxRetries    = 50
)

type Store struct {
	dir  string
	lock *flock.Flock
}

// SessionInfo is the listing view of a stored session.
type SessionInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Model     string    `json:"model" yaml:"model"`
	Messages  int       `json:"messages" yaml:"messages"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// ResolveDir expands the configured sessions directory, defaulting to
// ~/.research/sessions.
func ResolveDir(configured string) (string, error) {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".research", "sessions"), nil
}

// Open prepares the sessions directory and acquires its lock. A second
// process holding the lock makes Open fail rather than risk interleaved
// writes.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "sessions.lock"))
	for i := 0; i < lockMaxRetries; i++ {
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire sessions lock: %w", err)
		}
		if locked {
			slog.Debug("Sessions lock acquired", "dir", dir)
			return &Store{dir: dir, lock: lock}, nil
		}
		time.Sleep(lockRetryInterval)
	}

	return nil, fmt.Errorf("sessions directory %s is locked by another instance", dir)
}

func (s *Store) Close() {
	if s.lock == nil {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		slog.Error("Failed to release sessions lock", "error", err)
	}
	s.lock = nil
}

func (s *Store) Save(session *orchestrator.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	path := filepath.Join(s.dir, session.ID+".json")
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *Store) Load(id string) (*orchestrator.Session, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var session orchestrator.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *Store) Delete(id string) error {
	return os.Remove(filepath.Join(s.dir, id+".json"))
}

// List returns stored sessions, most recently updated first. Unreadable
// files are skipped with a warning instead of failing the listing.
func (s *Store) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	var out []SessionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		session, err := s.Load(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			slog.Warn("Skipping unreadable session file", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, SessionInfo{
			ID:        session.ID,
			Model:     session.Model,
			Messages:  len(session.History),
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
