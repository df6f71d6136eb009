package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/idx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
)

// Keys is the signing key and the set it is published in.
type Keys struct {
	Signer   jwtx.Signer
	KeySet   *jwtx.KeySet
	Verifier jwtx.Verifier
}

// InitKeys loads the Ed25519 signing key from cfg.SigningKeyFile, or
// generates one when no file is configured. A generated key lives only as
// long as the process, so every restart invalidates issued access tokens.
func InitKeys(cfg Config, logger *slog.Logger) (*Keys, error) {
	var (
		pemKey []byte
		err    error
	)

	if cfg.SigningKeyFile != "" {
		pemKey, err = os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read signing key: %w", err)
		}
		logger.Info("signing key loaded", "path", cfg.SigningKeyFile)
	} else {
		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		logger.Warn("generated ephemeral signing key, issued tokens will not survive a restart")
	}

	kid := cfg.KeyID
	if kid == "" {
		kid = idx.New().String()
	}

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	set := jwtx.NewKeySet()
	if err := set.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("publish signing key: %w", err)
	}

	return &Keys{
		Signer:   signer,
		KeySet:   set,
		Verifier: jwtx.NewVerifierEdDSA(set, jwtx.VerifyOptions{Issuer: cfg.Issuer}),
	}, nil
}
