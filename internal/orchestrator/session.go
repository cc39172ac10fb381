package orchestrator

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/researchcli/research/internal/llm/contract"
)

// Session is one conversation: its identity, active model, and history.
// The model is mutable; fallback and the /model command both swap it
// mid-session while the history carries over.
type Session struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	History   []contract.Message `json:"history"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func NewSession(model string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) Append(msg contract.Message) {
	s.History = append(s.History, msg)
	s.UpdatedAt = time.Now().UTC()
}

// LastModelText returns the text of the most recent model message.
func (s *Session) LastModelText() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == contract.RoleModel {
			return s.History[i].Text()
		}
	}
	return ""
}
