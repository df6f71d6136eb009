package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
	"github.com/aussiebroadwan/gatekeep/internal/devidp/store"
	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/idx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
)

const DefaultSessionTTL = 24 * time.Hour

// TokenService issues OAuth token pairs and cookie sessions. Every pair
// belongs to a session; deleting the session revokes its refresh tokens and
// makes its access tokens fail the session check on /me.
type TokenService struct {
	Store      store.Store
	Signer     jwtx.Signer
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SessionTTL time.Duration
	Now        func() time.Time
}

func (s *TokenService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

func (s *TokenService) sessionTTL() time.Duration {
	if s.SessionTTL > 0 {
		return s.SessionTTL
	}
	return DefaultSessionTTL
}

// IssuePassword starts an OAuth session for an authenticated account and
// returns its first token pair.
func (s *TokenService) IssuePassword(ctx context.Context, acct domain.Account) (*domain.TokenPair, error) {
	now := s.now()
	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		AccountID: acct.ID,
		// the session lives as long as its refresh tokens could
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
	}

	access, err := s.signAccess(acct, sess.ID, now)
	if err != nil {
		return nil, err
	}
	refresh, rt, err := s.newRefreshToken(acct.ID, sess.ID, now)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, rt)
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.accessTTL()}, nil
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// for the same session is returned.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*domain.TokenPair, error) {
	now := s.now()

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if rt.Revoked || !now.Before(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, rt.AccountID)
	if err != nil {
		return nil, err
	}
	if !acct.Enabled() {
		return nil, ErrAccountDisabled
	}

	access, err := s.signAccess(acct, rt.SessionID, now)
	if err != nil {
		return nil, err
	}
	refresh, next, err := s.newRefreshToken(acct.ID, rt.SessionID, now)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, next)
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.accessTTL()}, nil
}

// RevokeRefreshToken ends the session the refresh token belongs to.
// Unknown tokens yield ErrInvalidRefresh, which callers may ignore.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshOpaque string) error {
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(refreshOpaque))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefresh
		}
		return err
	}
	return s.endSession(ctx, rt.SessionID)
}

// RevokeSession ends the session named by an access token's sid claim.
func (s *TokenService) RevokeSession(ctx context.Context, sessionID string) error {
	return s.endSession(ctx, sessionID)
}

func (s *TokenService) endSession(ctx context.Context, id string) error {
	err := s.Store.Sessions().DeleteSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoSession
	}
	return err
}

// StartSession creates a cookie session and returns the opaque cookie
// value.
func (s *TokenService) StartSession(ctx context.Context, acct domain.Account) (string, domain.Session, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.Session{}, err
	}
	now := s.now()
	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		AccountID: acct.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(s.sessionTTL()),
		CreatedAt: now,
	}
	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return "", domain.Session{}, err
	}
	return token, sess, nil
}

// EndCookieSession deletes the session behind a cookie value. A missing
// session is not an error.
func (s *TokenService) EndCookieSession(ctx context.Context, cookie string) error {
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(cookie))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.Store.Sessions().DeleteSession(ctx, sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// CookieAccount resolves the account behind a cookie value.
func (s *TokenService) CookieAccount(ctx context.Context, cookie string) (domain.Account, error) {
	if cookie == "" {
		return domain.Account{}, ErrNoSession
	}
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(cookie))
	return s.sessionAccount(ctx, sess, err)
}

// BearerAccount resolves the account behind verified access token claims.
// The token's session must still exist.
func (s *TokenService) BearerAccount(ctx context.Context, claims jwtx.Claims) (domain.Account, error) {
	if claims.SID == "" {
		return domain.Account{}, ErrNoSession
	}
	sess, err := s.Store.Sessions().GetSessionByID(ctx, claims.SID)
	if err == nil && sess.AccountID != claims.Subject {
		return domain.Account{}, ErrNoSession
	}
	return s.sessionAccount(ctx, sess, err)
}

func (s *TokenService) sessionAccount(ctx context.Context, sess domain.Session, err error) (domain.Account, error) {
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrNoSession
	}
	if err != nil {
		return domain.Account{}, err
	}
	if sess.Expired(s.now()) {
		return domain.Account{}, ErrNoSession
	}

	acct, err := s.Store.Accounts().GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !acct.Enabled() {
		return domain.Account{}, ErrAccountDisabled
	}
	return acct, nil
}

func (s *TokenService) signAccess(acct domain.Account, sessionID string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(jwtx.AccessParams{
		Subject:  acct.ID,
		SID:      sessionID,
		Username: acct.Username,
		Email:    acct.Email,
		Groups:   acct.Groups,
		Issuer:   s.Issuer,
		TTL:      s.accessTTL(),
	}, now)
	return s.Signer.Sign(claims)
}

func (s *TokenService) newRefreshToken(accountID, sessionID string, now time.Time) (string, domain.RefreshToken, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.RefreshToken{}, err
	}
	return opaque, domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		AccountID: accountID,
		SessionID: sessionID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: now.Add(s.refreshTTL()),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
