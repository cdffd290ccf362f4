package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/params"
)

// registerPath is the backend endpoint that issues dongle ids.
const registerPath = "/v2/pilotauth/"

// tokenTTL bounds the lifetime of a registration token.
const tokenTTL = time.Hour

// retryDelay is the pause between failed registration attempts.
const retryDelay = time.Second

// HTTPRegistrar registers the device with the backend over HTTPS.
//
// A cached dongle id is returned without a request. Otherwise the device
// signs a short-lived RS256 token with its private key and exchanges it for
// a dongle id, which is cached in params.
type HTTPRegistrar struct {
	cfg    config.RegistrationConfig
	store  params.Store
	client *http.Client
	logger Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewHTTPRegistrar creates a registrar.
//
// Parameters:
//   - cfg: Registration settings
//   - store: Primary params store (reads HardwareSerial, caches DongleId)
//
// Returns:
//   - *HTTPRegistrar: Registrar ready to use
func NewHTTPRegistrar(cfg config.RegistrationConfig, store params.Store) *HTTPRegistrar {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second //nolint:mnd // default request timeout
	}
	return &HTTPRegistrar{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: timeout},
		logger: noopLogger{},
		sleep:  sleepCtx,
	}
}

// SetLogger sets the logger.
func (r *HTTPRegistrar) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Register implements Registrar.
//
// Only local prerequisites are fatal: a missing serial, an unreadable key
// pair or a params failure. Whatever the backend does (no answer, a refusal
// or a malformed body) leaves the device registered as UnregisteredDongleID.
func (r *HTTPRegistrar) Register(ctx context.Context) (string, error) {
	cached, ok, err := r.store.Get(ctx, KeyDongleID)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", KeyDongleID, err)
	}
	if ok && len(cached) > 0 && string(cached) != UnregisteredDongleID {
		return string(cached), nil
	}

	serial, _, err := r.store.Get(ctx, KeyHardwareSerial)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", KeyHardwareSerial, err)
	}
	if len(serial) == 0 {
		return "", ErrNoSerial
	}

	key, err := loadPrivateKey(r.cfg.PrivateKeyPath)
	if err != nil {
		return "", err
	}
	publicKey, err := os.ReadFile(r.cfg.PublicKeyPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingKey, err)
	}

	dongleID, err := r.requestWithRetry(ctx, key, string(serial), string(publicKey))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("registration failed, continuing unregistered", "error", err)
		dongleID = UnregisteredDongleID
	}

	if err := r.store.Put(ctx, KeyDongleID, []byte(dongleID)); err != nil {
		return "", fmt.Errorf("writing %s: %w", KeyDongleID, err)
	}
	if dongleID != UnregisteredDongleID {
		r.logger.Info("device registered", "dongle_id", dongleID)
	}
	return dongleID, nil
}

func (r *HTTPRegistrar) requestWithRetry(ctx context.Context, key *rsa.PrivateKey, serial, publicKey string) (string, error) {
	attempts := r.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		dongleID, err := r.request(ctx, key, serial, publicKey)
		if err == nil {
			return dongleID, nil
		}
		lastErr = err
		if errors.Is(err, ErrRejected) || attempt == attempts {
			break
		}
		r.logger.Warn("registration attempt failed", "attempt", attempt, "error", err)
		if err := r.sleep(ctx, retryDelay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (r *HTTPRegistrar) request(ctx context.Context, key *rsa.PrivateKey, serial, publicKey string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"register": true,
		"exp":      jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing registration token: %w", err)
	}

	query := url.Values{}
	query.Set("serial", serial)
	query.Set("public_key", publicKey)
	query.Set("register_token", signed)
	endpoint := strings.TrimRight(r.cfg.APIHost, "/") + registerPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building registration request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}

	var body struct {
		DongleID string `json:"dongle_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if body.DongleID == "" {
		return "", fmt.Errorf("%w: empty dongle_id", ErrBadResponse)
	}
	return body.DongleID, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingKey, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingKey, err)
	}
	return key, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
