package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adamscao/agentca/internal/models"
)

const sessionSuffix = ".json"

// SessionKey returns the record key for a session token
func SessionKey(token string) string {
	return SessionNamespace + "/" + token + sessionSuffix
}

// SessionStore provides typed access to session records
type SessionStore struct {
	backend Backend
}

// NewSessionStore creates a session store over backend
func NewSessionStore(backend Backend) *SessionStore {
	return &SessionStore{backend: backend}
}

// Save writes the session record keyed by its session ID
func (s *SessionStore) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return s.backend.Put(ctx, SessionKey(session.SessionID), data)
}

// Load reads the session record for token
func (s *SessionStore) Load(ctx context.Context, token string) (*models.Session, error) {
	data, err := s.backend.Get(ctx, SessionKey(token))
	if err != nil {
		return nil, err
	}
	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// Delete removes the session record for token
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.backend.Delete(ctx, SessionKey(token))
}

// ListTokens returns the tokens of all stored sessions
func (s *SessionStore) ListTokens(ctx context.Context) ([]string, error) {
	keys, err := s.backend.List(ctx, SessionNamespace)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, SessionNamespace+"/")
		if strings.Contains(name, "/") || !strings.HasSuffix(name, sessionSuffix) {
			continue
		}
		tokens = append(tokens, strings.TrimSuffix(name, sessionSuffix))
	}
	return tokens, nil
}
