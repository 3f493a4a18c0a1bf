package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"madrasah/internal/cache"

	"github.com/google/uuid"
)

const DefaultSessionTtl = 7 * 24 * time.Hour

// Session is the server side record a session token points at. The
// active organisation is kept here so that switching it never trusts
// anything the client sends alongside a request
type Session struct {
	Id          string    `json:"id"`
	UserId      string    `json:"userId"`
	ActiveOrgId *string   `json:"activeOrgId"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Sessions struct {
	Cache  cache.Cache
	Secret string
	Ttl    time.Duration

	now func() time.Time
}

func (s *Sessions) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Sessions) ttl() time.Duration {
	if s.Ttl > 0 {
		return s.Ttl
	}
	return DefaultSessionTtl
}

func sessionKey(sessionId string) string {
	return "session:" + sessionId
}

// Create starts a session for the user and returns its signed token
func (s *Sessions) Create(ctx context.Context, userId string, activeOrgId *string) (string, *Session, error) {
	now := s.clock()
	session := &Session{
		Id:          uuid.NewString(),
		UserId:      userId,
		ActiveOrgId: activeOrgId,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl()),
	}
	if err := s.save(ctx, session); err != nil {
		return "", nil, err
	}
	token, err := GenerateJwt(GenerateJwtOpts{
		SessionId: session.Id,
		UserId:    userId,
		Secret:    s.Secret,
		Ttl:       s.ttl(),
		Now:       now,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, session, nil
}

// Resolve verifies the token and loads the session it names, a
// revoked session yields ErrorSessionNotFound
func (s *Sessions) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := ValidateJwt(s.Secret, token)
	if err != nil {
		return nil, err
	}
	raw, err := s.Cache.Get(ctx, sessionKey(claims.ID))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrorSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to parse session[%s]: %w", claims.ID, err)
	}
	if session.UserId != claims.UserId {
		return nil, ErrorJwtClaimsInvalid
	}
	return &session, nil
}

// SetActiveOrg switches the organisation of an existing session
func (s *Sessions) SetActiveOrg(ctx context.Context, session *Session, orgId string) error {
	session.ActiveOrgId = &orgId
	return s.save(ctx, session)
}

func (s *Sessions) Revoke(ctx context.Context, sessionId string) error {
	if err := s.Cache.Del(ctx, sessionKey(sessionId)); err != nil {
		return fmt.Errorf("failed to revoke session[%s]: %w", sessionId, err)
	}
	return nil
}

func (s *Sessions) save(ctx context.Context, session *Session) error {
	remaining := session.ExpiresAt.Sub(s.clock())
	if remaining <= 0 {
		return ErrorSessionNotFound
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.Cache.Set(ctx, sessionKey(session.Id), string(data), remaining); err != nil {
		return fmt.Errorf("failed to store session[%s]: %w", session.Id, err)
	}
	return nil
}
