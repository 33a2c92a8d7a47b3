package zeronotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/zeronotes/client-go/internal/api"
	"github.com/zeronotes/client-go/internal/crypto"
	"github.com/zeronotes/client-go/internal/entity"
	"github.com/zeronotes/client-go/internal/recovery"
	"github.com/zeronotes/client-go/internal/store"
)

// VerifyRecoveryPhrase checks a recovery phrase against the server
// without resetting anything. It validates the word list locally first,
// so most typos are caught before a network round trip.
func (c *Client) VerifyRecoveryPhrase(ctx context.Context, email string, phrase []string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if err := recovery.Validate(phrase); err != nil {
		return ErrInvalidRecoveryPhrase
	}

	_, err := c.apiClient.VerifyRecovery(ctx, &api.VerifyRecoveryRequest{
		Email:        email,
		RecoveryHash: recovery.HashPhrase(phrase),
	})
	if errors.Is(err, api.ErrUnauthorized) {
		return ErrInvalidRecoveryPhrase
	}
	return wrapError(err)
}

// ResetPasswordWithRecovery resets a forgotten account password using
// the 24-word recovery phrase. The recovery KEK unwraps each entity's
// recovery-wrapped DEK, which is then rewrapped under the new account
// KEK, so all content survives the reset.
//
// Secondary note and folder passwords do not survive: their salts were
// sealed under the old account KEK, which is gone with the old
// password. Those entities come back unprotected.
func (c *Client) ResetPasswordWithRecovery(ctx context.Context, email string, phrase []string, newPassword string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	if newPassword == "" {
		return &ValidationError{Errors: []string{"new password must not be empty"}}
	}
	if err := recovery.Validate(phrase); err != nil {
		return ErrInvalidRecoveryPhrase
	}

	resp, err := c.apiClient.VerifyRecovery(ctx, &api.VerifyRecoveryRequest{
		Email:        email,
		RecoveryHash: recovery.HashPhrase(phrase),
	})
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return ErrInvalidRecoveryPhrase
		}
		return wrapError(err)
	}

	recoveryKEK, err := recovery.DeriveKey(phrase)
	if err != nil {
		return err
	}
	secrets, err := openSecrets(recoveryKEK, resp.RecoverySecrets)
	if err != nil {
		crypto.Zero(recoveryKEK)
		return ErrInvalidRecoveryPhrase
	}
	signer, err := crypto.SigningKeypairFromSecretKey(secrets.SigningSecretKey)
	if err != nil {
		crypto.Zero(recoveryKEK)
		return err
	}

	newSalt, err := crypto.NewSalt()
	if err != nil {
		crypto.Zero(recoveryKEK)
		return err
	}
	auth, err := deriveAuth(newPassword, newSalt)
	if err != nil {
		crypto.Zero(recoveryKEK)
		return err
	}
	fail := func(err error) error {
		crypto.Zero(recoveryKEK)
		crypto.Zero(auth.kek)
		return err
	}

	// Pull the full account so every recovery-wrapped DEK can be moved
	// to the new account KEK in one pass.
	changes, err := c.transport.PullChanges(ctx, 0)
	if err != nil {
		return fail(wrapError(err))
	}
	for _, n := range changes.Notes {
		if err := recoverEntityKeys(&n.Protection, &n.EncryptedDEK, n.RecoveryDEK, recoveryKEK, auth.kek); err != nil {
			return fail(fmt.Errorf("recover note %s: %w", n.ID, err))
		}
		n.PasswordInherited = false
	}
	for _, f := range changes.Folders {
		if err := recoverEntityKeys(&f.Protection, &f.EncryptedDEK, f.RecoveryDEK, recoveryKEK, auth.kek); err != nil {
			return fail(fmt.Errorf("recover folder %s: %w", f.ID, err))
		}
		f.PasswordInherited = false
	}

	accSecrets := &accountSecrets{
		SigningSecretKey: signer.SecretKey,
		RecoveryKEK:      recoveryKEK,
	}
	keyCheck, err := sealJSON(auth.kek, []byte(keyCheckPlaintext))
	if err != nil {
		return fail(err)
	}
	encSecrets, err := sealSecrets(auth.kek, accSecrets)
	if err != nil {
		return fail(err)
	}

	err = c.apiClient.UpdateAccountKeys(ctx, &api.UpdateKeysRequest{
		Verifier:         auth.verifier,
		KDFSalt:          newSalt,
		KeyCheck:         keyCheck,
		EncryptedSecrets: encSecrets,
		Notes:            changes.Notes,
		Folders:          changes.Folders,
	})
	if err != nil {
		return fail(wrapError(err))
	}

	// The local store may belong to an older session state; replace it
	// with the recovered view. Dirty so the rewrapped keys also reach
	// sync targets that UpdateAccountKeys does not cover.
	for _, n := range changes.Notes {
		n.Dirty = true
		if err := c.store.PutNote(n); err != nil {
			return fail(err)
		}
	}
	for _, f := range changes.Folders {
		f.Dirty = true
		if err := c.store.PutFolder(f); err != nil {
			return fail(err)
		}
	}
	version := strconv.FormatUint(changes.CurrentSyncVersion, 10)
	if err := c.store.PutMeta(store.MetaLastSyncVersion, []byte(version)); err != nil {
		return fail(err)
	}
	if err := c.store.PutMeta(store.MetaAccount, []byte(email)); err != nil {
		return fail(err)
	}

	c.installSession(newSession(email, newSalt, auth.kek, signer, recoveryKEK, auth.verifier))
	c.markMutated()
	c.log.Info("password reset via recovery",
		zap.String("email", email),
		zap.Int("recovered", len(changes.Notes)+len(changes.Folders)))
	return nil
}

// recoverEntityKeys moves an entity's DEK from the recovery wrap to a
// fresh account-KEK wrap. Any secondary-password protection is dropped:
// its salt was sealed under the lost account KEK.
func recoverEntityKeys(p *entity.Protection, dek **crypto.WrappedKey, recoveryDEK *crypto.WrappedKey, recoveryKEK, newKEK []byte) error {
	if recoveryDEK == nil {
		// Nothing to recover; tombstones may have shed their keys.
		return nil
	}
	raw, err := crypto.UnwrapDEK(recoveryDEK, recoveryKEK)
	if err != nil {
		return err
	}
	defer crypto.Zero(raw)

	rewrapped, err := crypto.WrapDEK(raw, newKEK)
	if err != nil {
		return err
	}
	*dek = rewrapped
	*p = entity.Protection{}
	return nil
}

// RotateRecoveryPhrase replaces the recovery phrase and returns the new
// 24 words. Every entity's recovery-wrapped DEK and the recovery copy
// of the account secrets move to the new recovery KEK; the old phrase
// stops working the moment this returns.
func (c *Client) RotateRecoveryPhrase(ctx context.Context) ([]string, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	phrase, err := recovery.GeneratePhrase()
	if err != nil {
		return nil, err
	}
	newKEK, err := recovery.DeriveKey(phrase)
	if err != nil {
		return nil, err
	}

	notes, err := c.store.ListNotes()
	if err != nil {
		crypto.Zero(newKEK)
		return nil, err
	}
	folders, err := c.store.ListFolders()
	if err != nil {
		crypto.Zero(newKEK)
		return nil, err
	}

	// In-memory first; any failure leaves the old phrase intact.
	for _, n := range notes {
		if n.RecoveryDEK == nil {
			continue
		}
		rewrapped, err := crypto.RewrapDEK(n.RecoveryDEK, s.recoveryKEK, newKEK)
		if err != nil {
			crypto.Zero(newKEK)
			return nil, fmt.Errorf("rotate note %s: %w", n.ID, err)
		}
		n.RecoveryDEK = rewrapped
	}
	for _, f := range folders {
		if f.RecoveryDEK == nil {
			continue
		}
		rewrapped, err := crypto.RewrapDEK(f.RecoveryDEK, s.recoveryKEK, newKEK)
		if err != nil {
			crypto.Zero(newKEK)
			return nil, fmt.Errorf("rotate folder %s: %w", f.ID, err)
		}
		f.RecoveryDEK = rewrapped
	}

	accSecrets := &accountSecrets{
		SigningSecretKey: s.signer.SecretKey,
		RecoveryKEK:      newKEK,
	}
	encSecrets, err := sealSecrets(s.accountKEK, accSecrets)
	if err != nil {
		crypto.Zero(newKEK)
		return nil, err
	}
	recSecrets, err := sealSecrets(newKEK, accSecrets)
	if err != nil {
		crypto.Zero(newKEK)
		return nil, err
	}
	keyCheck, err := sealJSON(s.accountKEK, []byte(keyCheckPlaintext))
	if err != nil {
		crypto.Zero(newKEK)
		return nil, err
	}

	err = c.apiClient.UpdateAccountKeys(ctx, &api.UpdateKeysRequest{
		Verifier:         s.verifier,
		KDFSalt:          s.kdfSalt,
		KeyCheck:         keyCheck,
		EncryptedSecrets: encSecrets,
		RecoverySecrets:  recSecrets,
		RecoveryHash:     recovery.HashPhrase(phrase),
		Notes:            notes,
		Folders:          folders,
	})
	if err != nil {
		crypto.Zero(newKEK)
		return nil, wrapError(err)
	}

	for _, n := range notes {
		n.Dirty = true
		if err := c.store.PutNote(n); err != nil {
			return nil, err
		}
	}
	for _, f := range folders {
		f.Dirty = true
		if err := c.store.PutFolder(f); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	crypto.Zero(s.recoveryKEK)
	s.recoveryKEK = newKEK
	c.mu.Unlock()

	c.markMutated()
	c.log.Info("recovery phrase rotated", zap.Int("rewrapped", len(notes)+len(folders)))
	return phrase, nil
}
