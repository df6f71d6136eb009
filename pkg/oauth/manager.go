package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/tokenstore"
	"golang.org/x/oauth2"
)

var (
	// ErrNoToken means there is no usable token record. Callers treat it as
	// "not authenticated".
	ErrNoToken = errors.New("oauth: no token")

	// ErrTokenExpired means the token was still expired after one refresh.
	ErrTokenExpired = errors.New("oauth: token expired")
)

// DefaultStorageKey is the store key of the token record.
const DefaultStorageKey = "oauth-token"

// RefreshFunc replaces the stored token with a fresh one. stale is the
// expired access token the caller read; a refresher may skip the network
// call when the stored token has already moved past it.
type RefreshFunc func(ctx context.Context, stale string) error

// TokenManager is the single writer of the token record.
type TokenManager struct {
	mu       sync.RWMutex
	registry *tokenstore.Registry
	store    tokenstore.Store
	refresh  RefreshFunc

	key    string
	now    func() time.Time
	logger *slog.Logger
}

// ManagerOption configures a TokenManager.
type ManagerOption func(*TokenManager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *TokenManager) { m.now = now }
}

// WithStorageKey changes the key the record is stored under.
func WithStorageKey(key string) ManagerOption {
	return func(m *TokenManager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithStore bypasses the registry default.
func WithStore(s tokenstore.Store) ManagerOption {
	return func(m *TokenManager) { m.store = s }
}

// WithManagerLogger sets the logger. Nil falls back to slog.Default.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *TokenManager) { m.logger = slogx.OrDefault(l) }
}

// NewTokenManager returns a manager backed by the registry's default store.
// A nil registry gets a fresh one with only the memory backend.
func NewTokenManager(registry *tokenstore.Registry, opts ...ManagerOption) *TokenManager {
	if registry == nil {
		registry = tokenstore.NewRegistry()
	}
	m := &TokenManager{
		registry: registry,
		store:    registry.Default(),
		key:      DefaultStorageKey,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// SetTokenStoreType switches this manager to the named backend. The record
// is not migrated.
func (m *TokenManager) SetTokenStoreType(name string) error {
	s, err := m.registry.Store(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.store = s
	m.mu.Unlock()
	return nil
}

// SetRefresher installs the function AccessToken calls on expiry.
func (m *TokenManager) SetRefresher(fn RefreshFunc) {
	m.mu.Lock()
	m.refresh = fn
	m.mu.Unlock()
}

func (m *TokenManager) backend() tokenstore.Store {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store
}

func (m *TokenManager) refresher() RefreshFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh
}

// SetTokenResponse normalizes a token endpoint reply and persists it.
func (m *TokenManager) SetTokenResponse(ctx context.Context, resp *authsdk.TokenResponse) error {
	if resp == nil || resp.AccessToken == "" {
		return fmt.Errorf("oauth: set token: %w", ErrNoToken)
	}

	tok := Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
		Expiry:       m.expiry(resp),
	}

	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("oauth: encode token: %w", err)
	}
	if err := m.backend().Put(ctx, m.key, b); err != nil {
		return fmt.Errorf("oauth: store token: %w", err)
	}
	return nil
}

// expiry is truncate(now, 1s) + expires_in - 1s. Without expires_in, a JWT
// exp claim is used instead; without either the token never expires.
func (m *TokenManager) expiry(resp *authsdk.TokenResponse) time.Time {
	if resp.ExpiresIn > 0 {
		issued := m.now().Truncate(time.Second)
		return issued.Add(time.Duration(resp.ExpiresIn-1) * time.Second)
	}
	exp, err := jwtx.ExpiresAt(resp.AccessToken)
	if err != nil {
		return time.Time{}
	}
	return exp.Add(-time.Second)
}

// Token returns the stored record, or ErrNoToken.
func (m *TokenManager) Token(ctx context.Context) (*Token, error) {
	b, err := m.backend().Get(ctx, m.key)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("oauth: load token: %w", err)
	}

	var tok Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("oauth: decode token: %w", err)
	}
	return &tok, nil
}

// AccessToken returns the access token, refreshing it once first if it has
// expired.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	tok, err := m.usable(ctx)
	if err != nil {
		return "", err
	}
	if !tok.Expired(m.now()) {
		return tok.AccessToken, nil
	}

	refresh := m.refresher()
	if refresh == nil {
		return "", ErrTokenExpired
	}
	m.logger.DebugContext(ctx, "access token expired, refreshing", "expiry", tok.Expiry)
	if err := refresh(ctx, tok.AccessToken); err != nil {
		return "", fmt.Errorf("oauth: refresh: %w", err)
	}

	tok, err = m.usable(ctx)
	if err != nil {
		return "", err
	}
	if tok.Expired(m.now()) {
		return "", ErrTokenExpired
	}
	return tok.AccessToken, nil
}

func (m *TokenManager) usable(ctx context.Context) (*Token, error) {
	tok, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	if tok.TokenType == "" || tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return tok, nil
}

// RefreshToken returns the stored refresh token, or ErrNoToken when the
// record has none.
func (m *TokenManager) RefreshToken(ctx context.Context) (string, error) {
	tok, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if tok.RefreshToken == "" {
		return "", ErrNoToken
	}
	return tok.RefreshToken, nil
}

// TokenType returns the stored token type, or ErrNoToken when unset.
func (m *TokenManager) TokenType(ctx context.Context) (string, error) {
	tok, err := m.Token(ctx)
	if err != nil {
		return "", err
	}
	if tok.TokenType == "" {
		return "", ErrNoToken
	}
	return tok.TokenType, nil
}

// RemoveToken deletes the record. Removing a missing record is not an
// error.
func (m *TokenManager) RemoveToken(ctx context.Context) error {
	if err := m.backend().Remove(ctx, m.key); err != nil {
		return fmt.Errorf("oauth: remove token: %w", err)
	}
	return nil
}

// TokenSource adapts the manager for oauth2.NewClient. Every call goes
// through AccessToken, so expiry triggers the same refresh.
func (m *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, m: m}
}

type tokenSource struct {
	ctx context.Context
	m   *TokenManager
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	if _, err := s.m.AccessToken(s.ctx); err != nil {
		return nil, err
	}
	tok, err := s.m.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return tok.OAuth2(), nil
}
