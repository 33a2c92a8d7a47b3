package zeronotes

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zeronotes/client-go/internal/api"
	"github.com/zeronotes/client-go/internal/crypto"
	"github.com/zeronotes/client-go/internal/delivery"
	"github.com/zeronotes/client-go/internal/entity"
	"github.com/zeronotes/client-go/internal/recovery"
	"github.com/zeronotes/client-go/internal/store"
	"github.com/zeronotes/client-go/internal/syncer"
)

// Client is the main zeronotes client. It keeps all plaintext and key
// material on the device; the server and the local store only ever see
// ciphertext, wrapped keys and metadata.
type Client struct {
	apiClient *api.Client
	store     store.Store
	transport syncer.Transport
	engine    *syncer.Engine
	strategy  delivery.Strategy
	debounce  *syncer.Debouncer
	subs      *subscriptionManager
	log       *zap.Logger
	cfg       *clientConfig
	deviceID  string

	mu      sync.RWMutex
	session *session
	closed  bool

	strategyCtx    context.Context
	strategyCancel context.CancelFunc
	intervalCancel context.CancelFunc
}

// derivedAuth is the material derived from a password and salt: the
// account KEK (kept local) and the verifier (sent to the server).
type derivedAuth struct {
	kek      []byte
	verifier string
}

func deriveAuth(password string, salt []byte) (*derivedAuth, error) {
	master, err := crypto.DeriveMasterKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(master)

	kek, err := crypto.DeriveKEK(master, crypto.LabelAccountKEK)
	if err != nil {
		return nil, err
	}
	ver, err := crypto.DeriveKEK(master, crypto.LabelAuthVerifier)
	if err != nil {
		crypto.Zero(kek)
		return nil, err
	}
	defer crypto.Zero(ver)

	return &derivedAuth{
		kek:      kek,
		verifier: base64.RawURLEncoding.EncodeToString(ver),
	}, nil
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(cfg *clientConfig) (*api.Client, error) {
	apiOpts := []api.Option{}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries > 0 {
		retry := api.DefaultRetryConfig()
		retry.MaxRetries = cfg.retries
		apiOpts = append(apiOpts, api.WithRetryConfig(retry))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}
	return api.New(cfg.baseURL, apiOpts...)
}

// createDeliveryStrategy creates a change notification strategy based on the config.
func createDeliveryStrategy(cfg *clientConfig, apiClient *api.Client) delivery.Strategy {
	deliveryCfg := delivery.Config{
		APIClient:                apiClient,
		PollingInitialInterval:   cfg.pollingInitialInterval,
		PollingMaxBackoff:        cfg.pollingMaxBackoff,
		PollingBackoffMultiplier: cfg.pollingBackoffMultiplier,
		PollingJitterFactor:      cfg.pollingJitterFactor,
		SSEConnectionTimeout:     cfg.sseConnectionTimeout,
	}
	switch cfg.deliveryStrategy {
	case StrategySSE:
		return delivery.NewSSEStrategy(deliveryCfg)
	case StrategyPolling:
		return delivery.NewPollingStrategy(deliveryCfg)
	default:
		return delivery.NewAutoStrategy(deliveryCfg)
	}
}

// New creates a new zeronotes client. The client starts without a
// session; call Register or Login before touching notes.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:          defaultBaseURL,
		deliveryStrategy: StrategyAuto,
		timeout:          defaultTimeout,
		syncDebounce:     defaultSyncDebounce,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	dataDir := cfg.dataDir
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		dataDir = filepath.Join(base, "zeronotes")
	}

	st, err := store.OpenBolt(filepath.Join(dataDir, "zeronotes.db"))
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	apiClient, err := buildAPIClient(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	deviceID, err := resolveDeviceID(st, cfg.deviceID)
	if err != nil {
		st.Close()
		return nil, err
	}

	var transport syncer.Transport
	if cfg.fileSyncPath != "" {
		transport = syncer.NewFileTransport(cfg.fileSyncPath)
	} else {
		transport = syncer.NewHTTPTransport(apiClient)
	}

	c := &Client{
		apiClient: apiClient,
		store:     st,
		transport: transport,
		engine:    syncer.NewEngine(st, transport, deviceID, log),
		subs:      newSubscriptionManager(),
		log:       log,
		cfg:       cfg,
		deviceID:  deviceID,
	}
	c.debounce = syncer.NewDebouncer(cfg.syncDebounce, c.backgroundSync)

	return c, nil
}

// resolveDeviceID returns the configured device ID, or the persisted
// one, generating and persisting a fresh UUID on first use.
func resolveDeviceID(st store.Store, configured string) (string, error) {
	if configured != "" {
		if err := st.PutMeta(store.MetaDeviceID, []byte(configured)); err != nil {
			return "", err
		}
		return configured, nil
	}
	raw, err := st.GetMeta(store.MetaDeviceID)
	if err != nil {
		return "", err
	}
	if len(raw) > 0 {
		return string(raw), nil
	}
	id := uuid.NewString()
	if err := st.PutMeta(store.MetaDeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// DeviceID returns this device's identifier.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// currentSession returns the active session or ErrNotLoggedIn.
func (c *Client) currentSession() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	if c.session == nil {
		return nil, ErrNotLoggedIn
	}
	return c.session, nil
}

// Register creates a new account and returns the 24-word recovery
// phrase. The phrase is shown exactly once; the client keeps only its
// hash-derived material.
func (c *Client) Register(ctx context.Context, email, password string) ([]string, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	auth, err := deriveAuth(password, salt)
	if err != nil {
		return nil, err
	}

	signer, err := crypto.GenerateSigningKeypair()
	if err != nil {
		return nil, err
	}

	phrase, err := recovery.GeneratePhrase()
	if err != nil {
		return nil, err
	}
	recoveryKEK, err := recovery.DeriveKey(phrase)
	if err != nil {
		return nil, err
	}

	secrets := &accountSecrets{
		SigningSecretKey: signer.SecretKey,
		RecoveryKEK:      recoveryKEK,
	}
	keyCheck, err := sealJSON(auth.kek, []byte(keyCheckPlaintext))
	if err != nil {
		return nil, err
	}
	encSecrets, err := sealSecrets(auth.kek, secrets)
	if err != nil {
		return nil, err
	}
	recSecrets, err := sealSecrets(recoveryKEK, secrets)
	if err != nil {
		return nil, err
	}

	_, err = c.apiClient.Register(ctx, &api.RegisterRequest{
		Email:            email,
		Verifier:         auth.verifier,
		KDFSalt:          salt,
		KeyCheck:         keyCheck,
		EncryptedSecrets: encSecrets,
		RecoverySecrets:  recSecrets,
		RecoveryHash:     recovery.HashPhrase(phrase),
		DeviceID:         c.deviceID,
		SigningPublicKey: signer.PublicKey,
	})
	if err != nil {
		crypto.Zero(auth.kek)
		crypto.Zero(recoveryKEK)
		return nil, wrapError(err)
	}

	if err := c.store.PutMeta(store.MetaAccount, []byte(email)); err != nil {
		return nil, err
	}

	c.installSession(newSession(email, salt, auth.kek, signer, recoveryKEK, auth.verifier))
	c.log.Info("account registered", zap.String("email", email))
	return phrase, nil
}

// Login authenticates against the server and rebuilds the key hierarchy
// locally. The password itself never leaves the device; only the
// domain-separated verifier is sent.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	params, err := c.apiClient.GetAuthParams(ctx, email)
	if err != nil {
		return wrapError(err)
	}

	auth, err := deriveAuth(password, params.KDFSalt)
	if err != nil {
		return err
	}

	resp, err := c.apiClient.Login(ctx, &api.LoginRequest{
		Email:    email,
		Verifier: auth.verifier,
		DeviceID: c.deviceID,
	})
	if err != nil {
		crypto.Zero(auth.kek)
		if errors.Is(err, api.ErrUnauthorized) {
			return ErrInvalidPassword
		}
		return wrapError(err)
	}

	// Defense in depth: the server accepted the verifier, but only a
	// successful key check proves the derived KEK is right.
	if err := verifyKeyCheck(auth.kek, resp.KeyCheck); err != nil {
		crypto.Zero(auth.kek)
		return err
	}

	secrets, err := openSecrets(auth.kek, resp.EncryptedSecrets)
	if err != nil {
		crypto.Zero(auth.kek)
		return err
	}
	signer, err := crypto.SigningKeypairFromSecretKey(secrets.SigningSecretKey)
	if err != nil {
		crypto.Zero(auth.kek)
		return err
	}

	if err := c.store.PutMeta(store.MetaAccount, []byte(email)); err != nil {
		return err
	}

	c.installSession(newSession(email, params.KDFSalt, auth.kek, signer, secrets.RecoveryKEK, auth.verifier))
	c.log.Info("logged in", zap.String("email", email))
	return nil
}

// installSession swaps in a fresh session and starts background
// delivery when syncing against a server.
func (c *Client) installSession(s *session) {
	c.mu.Lock()
	if c.session != nil {
		c.session.zero()
	}
	c.session = s
	c.mu.Unlock()

	if c.cfg.fileSyncPath == "" && c.cfg.autoSync {
		c.startStrategy()
	}
	if c.cfg.autoSync && c.cfg.syncInterval > 0 {
		c.startIntervalSync()
	}
}

// startIntervalSync runs a sync cycle on a fixed period until logout.
func (c *Client) startIntervalSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intervalCancel != nil || c.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.intervalCancel = cancel
	interval := c.cfg.syncInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.backgroundSync()
			}
		}
	}()
}

func (c *Client) stopIntervalSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intervalCancel != nil {
		c.intervalCancel()
		c.intervalCancel = nil
	}
}

func (c *Client) startStrategy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strategy != nil || c.closed {
		return
	}
	c.strategy = createDeliveryStrategy(c.cfg, c.apiClient)
	c.strategyCtx, c.strategyCancel = context.WithCancel(context.Background())
	if err := c.strategy.Start(c.strategyCtx, c.handleHint); err != nil {
		c.log.Warn("start delivery strategy", zap.Error(err))
		c.strategy = nil
		c.strategyCancel()
	}
}

// handleHint reacts to a remote change hint by running a sync cycle.
func (c *Client) handleHint(ctx context.Context, hint delivery.Hint) {
	c.log.Debug("change hint received", zap.Uint64("sync_version", hint.SyncVersion))
	go c.backgroundSync()
}

// backgroundSync runs a sync cycle outside any caller context. Errors
// go to the configured callback; an already-running cycle is not an
// error, the running cycle covers the trigger.
func (c *Client) backgroundSync() {
	if _, err := c.currentSession(); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.timeout)
	defer cancel()

	report, err := c.engine.Sync(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			return
		}
		if c.cfg.onSyncError != nil {
			c.cfg.onSyncError(wrapError(err))
		}
		return
	}
	if report.Pulled > 0 || report.Conflicts > 0 {
		c.subs.notify(&SyncReport{
			Pulled:      report.Pulled,
			Pushed:      report.Pushed,
			Conflicts:   report.Conflicts,
			SyncVersion: report.SyncVersion,
		})
	}
}

// markMutated schedules a debounced background sync after a local edit.
func (c *Client) markMutated() {
	if c.cfg.autoSync {
		c.debounce.Trigger()
	}
}

// ChangePassword re-keys the account under a new password. Every
// account-wrapped key is first rewrapped in memory; if any single
// rewrap fails, nothing is changed. Note ciphertext is never touched,
// so the cost scales with the number of entities, not their size.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}
	if newPassword == "" {
		return &ValidationError{Errors: []string{"new password must not be empty"}}
	}

	oldAuth, err := deriveAuth(oldPassword, s.kdfSalt)
	if err != nil {
		return err
	}
	defer crypto.Zero(oldAuth.kek)
	if subtle.ConstantTimeCompare(oldAuth.kek, s.accountKEK) != 1 {
		return ErrInvalidPassword
	}

	newSalt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	newAuth, err := deriveAuth(newPassword, newSalt)
	if err != nil {
		return err
	}

	notes, err := c.store.ListNotes()
	if err != nil {
		return err
	}
	folders, err := c.store.ListFolders()
	if err != nil {
		return err
	}

	// Phase one: rewrap everything in memory. Any failure aborts with no
	// state modified anywhere.
	for _, n := range notes {
		if err := rewrapEntityKeys(&n.Protection, &n.EncryptedDEK, s.accountKEK, newAuth.kek); err != nil {
			crypto.Zero(newAuth.kek)
			return fmt.Errorf("rewrap note %s: %w", n.ID, err)
		}
	}
	for _, f := range folders {
		if err := rewrapEntityKeys(&f.Protection, &f.EncryptedDEK, s.accountKEK, newAuth.kek); err != nil {
			crypto.Zero(newAuth.kek)
			return fmt.Errorf("rewrap folder %s: %w", f.ID, err)
		}
	}

	secrets := &accountSecrets{
		SigningSecretKey: s.signer.SecretKey,
		RecoveryKEK:      s.recoveryKEK,
	}
	keyCheck, err := sealJSON(newAuth.kek, []byte(keyCheckPlaintext))
	if err != nil {
		crypto.Zero(newAuth.kek)
		return err
	}
	encSecrets, err := sealSecrets(newAuth.kek, secrets)
	if err != nil {
		crypto.Zero(newAuth.kek)
		return err
	}

	// Phase two: the server applies the new auth material and rewrapped
	// keys atomically; only then does local state change.
	err = c.apiClient.UpdateAccountKeys(ctx, &api.UpdateKeysRequest{
		Verifier:         newAuth.verifier,
		KDFSalt:          newSalt,
		KeyCheck:         keyCheck,
		EncryptedSecrets: encSecrets,
		Notes:            notes,
		Folders:          folders,
	})
	if err != nil {
		crypto.Zero(newAuth.kek)
		return wrapError(err)
	}

	// Dirty (without touching UpdatedAt) so the rewrapped keys also reach
	// sync targets that UpdateAccountKeys does not cover, like a file
	// target. Against a server this re-push is redundant but harmless.
	for _, n := range notes {
		n.Dirty = true
		if err := c.store.PutNote(n); err != nil {
			return err
		}
	}
	for _, f := range folders {
		f.Dirty = true
		if err := c.store.PutFolder(f); err != nil {
			return err
		}
	}

	c.mu.Lock()
	crypto.Zero(s.accountKEK)
	s.accountKEK = newAuth.kek
	s.kdfSalt = newSalt
	s.verifier = newAuth.verifier
	c.mu.Unlock()

	c.markMutated()
	c.log.Info("password changed", zap.Int("rewrapped", len(notes)+len(folders)))
	return nil
}

// rewrapEntityKeys moves an entity's account-bound key material from
// oldKEK to newKEK in place. Password-protected entities keep their
// password-wrapped DEK; only the sealed salt moves.
func rewrapEntityKeys(p *entity.Protection, dek **crypto.WrappedKey, oldKEK, newKEK []byte) error {
	if p.HasPassword {
		if p.PasswordSalt == nil {
			return crypto.ErrInvalidPayload
		}
		salt, err := crypto.Decrypt(oldKEK, p.PasswordSalt)
		if err != nil {
			return err
		}
		resealed, err := crypto.Encrypt(newKEK, salt)
		crypto.Zero(salt)
		if err != nil {
			return err
		}
		p.PasswordSalt = resealed
		return nil
	}
	if *dek == nil {
		return nil
	}
	rewrapped, err := crypto.RewrapDEK(*dek, oldKEK, newKEK)
	if err != nil {
		return err
	}
	*dek = rewrapped
	return nil
}

// Logout invalidates the server session and wipes all key material.
// Local ciphertext stays on disk for the next login.
func (c *Client) Logout(ctx context.Context) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}

	c.stopStrategy()
	c.stopIntervalSync()
	c.debounce.Stop()

	apiErr := c.apiClient.Logout(ctx)

	c.mu.Lock()
	s.zero()
	c.session = nil
	c.mu.Unlock()

	c.log.Info("logged out")
	return wrapError(apiErr)
}

func (c *Client) stopStrategy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.strategyCancel != nil {
		c.strategyCancel()
		c.strategyCancel = nil
	}
	if c.strategy != nil {
		c.strategy.Stop()
		c.strategy = nil
	}
}

// Close closes the client and releases resources. Key material is
// zeroed; the local store is closed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.session != nil {
		c.session.zero()
		c.session = nil
	}
	c.mu.Unlock()

	c.stopStrategy()
	c.stopIntervalSync()
	c.debounce.Stop()
	c.subs.clear()
	return c.store.Close()
}

func validateCredentials(email, password string) error {
	var problems []string
	if email == "" {
		problems = append(problems, "email must not be empty")
	}
	if password == "" {
		problems = append(problems, "password must not be empty")
	}
	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}

// sealJSON encrypts plaintext under key and returns the encoded payload.
func sealJSON(key, plaintext []byte) (json.RawMessage, error) {
	blob, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	return crypto.EncodePayload(blob)
}

func sealSecrets(key []byte, secrets *accountSecrets) (json.RawMessage, error) {
	data, err := json.Marshal(secrets)
	if err != nil {
		return nil, err
	}
	return sealJSON(key, data)
}

func openSealed(key []byte, raw json.RawMessage) ([]byte, error) {
	payload, err := crypto.DecodePayload(raw)
	if err != nil {
		return nil, err
	}
	blob, ok := payload.(*crypto.EncryptedBlob)
	if !ok {
		return nil, crypto.ErrInvalidPayload
	}
	return crypto.Decrypt(key, blob)
}

func openSecrets(key []byte, raw json.RawMessage) (*accountSecrets, error) {
	data, err := openSealed(key, raw)
	if err != nil {
		return nil, err
	}
	var secrets accountSecrets
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, err
	}
	return &secrets, nil
}

// verifyKeyCheck proves a derived KEK by decrypting the account's key
// check. Any failure is reported as a wrong password, nothing more.
func verifyKeyCheck(kek []byte, raw json.RawMessage) error {
	plain, err := openSealed(kek, raw)
	if err != nil {
		return ErrInvalidPassword
	}
	ok := subtle.ConstantTimeCompare(plain, []byte(keyCheckPlaintext)) == 1
	crypto.Zero(plain)
	if !ok {
		return ErrInvalidPassword
	}
	return nil
}
