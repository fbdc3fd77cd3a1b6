package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	sessionKeyPrefix = "fluxia:session:"
	linkKeyPrefix    = "fluxia:link:"
)

// SessionStore maps opaque bearer tokens to user ids.
type SessionStore struct {
	kv  KV
	ttl time.Duration
}

func NewSessionStore(kv KV, ttl time.Duration) *SessionStore {
	return &SessionStore{kv: kv, ttl: ttl}
}

// Create issues a new token for userID.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	token := uuid.NewString()
	if err := s.kv.Set(ctx, sessionKeyPrefix+token, userID, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Resolve returns the user id behind token, or ErrMiss.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMiss
	}
	return s.kv.Get(ctx, sessionKeyPrefix+token)
}

func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.kv.Del(ctx, sessionKeyPrefix+token)
}

// TTL is the lifetime of newly created sessions.
func (s *SessionStore) TTL() time.Duration { return s.ttl }

// Link is the payload behind a one-time sign-in token.
type Link struct {
	Email    string    `json:"email"`
	Redirect string    `json:"redirect"`
	IssuedAt time.Time `json:"issued_at"`
}

// LinkStore holds single-use sign-in tokens.
type LinkStore struct {
	kv  KV
	ttl time.Duration
}

func NewLinkStore(kv KV, ttl time.Duration) *LinkStore {
	return &LinkStore{kv: kv, ttl: ttl}
}

func (s *LinkStore) Issue(ctx context.Context, email, redirect string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	b, err := json.Marshal(Link{Email: email, Redirect: redirect, IssuedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.kv.Set(ctx, linkKeyPrefix+token, string(b), s.ttl); err != nil {
		return "", fmt.Errorf("failed to store link: %w", err)
	}
	return token, nil
}

// Consume returns the link and deletes it; a second call yields ErrMiss.
func (s *LinkStore) Consume(ctx context.Context, token string) (*Link, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMiss
	}
	raw, err := s.kv.GetDel(ctx, linkKeyPrefix+token)
	if err != nil {
		return nil, err
	}
	var l Link
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return nil, fmt.Errorf("invalid link payload: %w", err)
	}
	return &l, nil
}
