package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
	"github.com/aussiebroadwan/gatekeep/internal/devidp/store"
	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/idx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
)

const (
	MinPasswordLength     = 8
	DefaultActionTokenTTL = time.Hour
)

// dummyHash is verified against when a login does not exist so the response
// time does not reveal which usernames are taken.
var dummyHash, _ = cryptox.HashPassword("gatekeep-dummy-password")

type AccountService struct {
	Store  store.Store
	Outbox Outbox

	// RequireVerification registers accounts as UNVERIFIED and mails a
	// verification token; otherwise they are ENABLED straight away.
	RequireVerification bool
	ActionTTL           time.Duration
	Now                 func() time.Time
}

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	GivenName  string
	MiddleName string
	Surname    string
	Groups     []string
	CustomData map[string]any
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountService) actionTTL() time.Duration {
	if s.ActionTTL > 0 {
		return s.ActionTTL
	}
	return DefaultActionTokenTTL
}

// Register creates an account. The username defaults to the email.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.Account, error) {
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Account{}, fmt.Errorf("%w: email is invalid", ErrInvalidRequest)
	}
	if len(in.Password) < MinPasswordLength {
		return domain.Account{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, MinPasswordLength)
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = email
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, err
	}

	now := s.now()
	acct := domain.Account{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		Email:        email,
		GivenName:    strings.TrimSpace(in.GivenName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
		Surname:      strings.TrimSpace(in.Surname),
		PasswordHash: hash,
		Status:       domain.StatusEnabled,
		Groups:       in.Groups,
		CustomData:   in.CustomData,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.RequireVerification {
		acct.Status = domain.StatusUnverified
	}

	var sptoken string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, acct); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrAccountExists
			}
			return err
		}
		if !s.RequireVerification {
			return nil
		}
		sptoken, err = s.issueActionToken(ctx, tx, acct.ID, domain.PurposeVerifyEmail)
		return err
	})
	if err != nil {
		return domain.Account{}, err
	}

	if sptoken != "" {
		s.send(ctx, Message{To: acct.Email, Purpose: domain.PurposeVerifyEmail, Token: sptoken})
	}
	return acct, nil
}

// Authenticate checks a username-or-email and password pair.
func (s *AccountService) Authenticate(ctx context.Context, login, password string) (domain.Account, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return domain.Account{}, ErrInvalidCredentials
	}

	acct, err := s.Store.Accounts().GetAccountByLogin(ctx, login)
	if errors.Is(err, store.ErrNotFound) {
		_ = cryptox.VerifyPassword(password, dummyHash)
		return domain.Account{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Account{}, err
	}

	if err := cryptox.VerifyPassword(password, acct.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrMismatch) {
			slogx.FromContext(ctx).Error("stored password hash unreadable", "account_id", acct.ID, "err", err)
		}
		return domain.Account{}, ErrInvalidCredentials
	}
	if !acct.Enabled() {
		return domain.Account{}, ErrAccountDisabled
	}
	return acct, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return s.Store.Accounts().GetAccountByID(ctx, id)
}

// VerifyEmail consumes a verification token and enables the account.
func (s *AccountService) VerifyEmail(ctx context.Context, sptoken string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		tok, err := s.consumeActionToken(ctx, tx, domain.PurposeVerifyEmail, sptoken)
		if err != nil {
			return err
		}
		return tx.Accounts().UpdateStatus(ctx, tok.AccountID, domain.StatusEnabled)
	})
}

// ResendVerification mails a fresh token when login names an unverified
// account. Anything else is silently ignored.
func (s *AccountService) ResendVerification(ctx context.Context, login string) error {
	acct, err := s.Store.Accounts().GetAccountByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if acct.Status != domain.StatusUnverified {
		return nil
	}

	sptoken, err := s.issueActionToken(ctx, s.Store, acct.ID, domain.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	s.send(ctx, Message{To: acct.Email, Purpose: domain.PurposeVerifyEmail, Token: sptoken})
	return nil
}

// RequestPasswordReset mails a reset token when email names an account.
// Unknown addresses are silently ignored.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := s.Store.Accounts().GetAccountByLogin(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	sptoken, err := s.issueActionToken(ctx, s.Store, acct.ID, domain.PurposePasswordReset)
	if err != nil {
		return err
	}
	s.send(ctx, Message{To: acct.Email, Purpose: domain.PurposePasswordReset, Token: sptoken})
	return nil
}

// CheckPasswordResetToken reports whether sptoken can still be used,
// without consuming it.
func (s *AccountService) CheckPasswordResetToken(ctx context.Context, sptoken string) error {
	_, err := s.lookupActionToken(ctx, s.Store, domain.PurposePasswordReset, sptoken)
	return err
}

// ResetPassword consumes sptoken, sets the new password and signs the
// account out everywhere.
func (s *AccountService) ResetPassword(ctx context.Context, sptoken, password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, MinPasswordLength)
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		tok, err := s.consumeActionToken(ctx, tx, domain.PurposePasswordReset, sptoken)
		if err != nil {
			return err
		}
		if err := tx.Accounts().UpdatePasswordHash(ctx, tok.AccountID, hash); err != nil {
			return err
		}
		return tx.Sessions().DeleteAccountSessions(ctx, tok.AccountID)
	})
}

// Seed creates the account unless its username is taken. It reports
// whether anything was created.
func (s *AccountService) Seed(ctx context.Context, in RegisterInput) (bool, error) {
	_, err := s.Store.Accounts().GetAccountByLogin(ctx, in.Username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	// seeded accounts skip verification
	seeder := *s
	seeder.RequireVerification = false
	if _, err := seeder.Register(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AccountService) issueActionToken(ctx context.Context, st store.Store, accountID, purpose string) (string, error) {
	sptoken, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	now := s.now()
	err = st.ActionTokens().CreateActionToken(ctx, domain.ActionToken{
		ID:        idx.NewAt(now).String(),
		AccountID: accountID,
		Purpose:   purpose,
		TokenHash: cryptox.FingerprintToken(sptoken),
		ExpiresAt: now.Add(s.actionTTL()),
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return sptoken, nil
}

func (s *AccountService) lookupActionToken(ctx context.Context, st store.Store, purpose, sptoken string) (domain.ActionToken, error) {
	if sptoken == "" {
		return domain.ActionToken{}, ErrInvalidSPToken
	}
	tok, err := st.ActionTokens().GetActionTokenByHash(ctx, purpose, cryptox.FingerprintToken(sptoken))
	if errors.Is(err, store.ErrNotFound) {
		return domain.ActionToken{}, ErrInvalidSPToken
	}
	if err != nil {
		return domain.ActionToken{}, err
	}
	if !tok.Usable(s.now()) {
		return domain.ActionToken{}, ErrInvalidSPToken
	}
	return tok, nil
}

func (s *AccountService) consumeActionToken(ctx context.Context, tx store.Tx, purpose, sptoken string) (domain.ActionToken, error) {
	tok, err := s.lookupActionToken(ctx, tx, purpose, sptoken)
	if err != nil {
		return domain.ActionToken{}, err
	}
	if err := tx.ActionTokens().MarkActionTokenUsed(ctx, tok.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ActionToken{}, ErrInvalidSPToken
		}
		return domain.ActionToken{}, err
	}
	return tok, nil
}

func (s *AccountService) send(ctx context.Context, m Message) {
	if s.Outbox == nil {
		return
	}
	if err := s.Outbox.Send(ctx, m); err != nil {
		slogx.FromContext(ctx).Warn("outbox delivery failed", "purpose", m.Purpose, "err", err)
	}
}
