package security

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-social-links/core"
)

type KeyringEntry struct {
	Provider *AppKeySecretProvider
	Window   KeyRotationWindow
}

type KeyringOption func(*Keyring)

// WithKeyringClock overrides the time source used to evaluate windows.
func WithKeyringClock(now func() time.Time) KeyringOption {
	return func(k *Keyring) {
		if now != nil {
			k.now = now
		}
	}
}

// Keyring encrypts with the newest key whose window is open and decrypts
// with whichever registered key produced the envelope. The set of keys is
// fixed at construction.
type Keyring struct {
	entries []KeyringEntry
	now     func() time.Time
}

func NewKeyring(entries []KeyringEntry, opts ...KeyringOption) (*Keyring, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("security: keyring requires at least one key")
	}
	seen := map[string]struct{}{}
	copied := make([]KeyringEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Provider == nil {
			return nil, fmt.Errorf("security: keyring entry provider is required")
		}
		id := keyringID(entry.Provider.KeyID(), entry.Provider.Version())
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("security: duplicate keyring entry %s", id)
		}
		seen[id] = struct{}{}
		copied = append(copied, entry)
	}
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Provider.Version() > copied[j].Provider.Version()
	})

	keyring := &Keyring{
		entries: copied,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(keyring)
	}
	return keyring, nil
}

func (k *Keyring) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	active, err := k.Active()
	if err != nil {
		return nil, err
	}
	return active.Encrypt(ctx, plaintext)
}

func (k *Keyring) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: keyring is nil")
	}
	parsed, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	now := k.now()
	for _, entry := range k.entries {
		if entry.Provider.KeyID() != parsed.KeyID || entry.Provider.Version() != parsed.Version {
			continue
		}
		if !entry.Window.Allows(now) {
			return nil, fmt.Errorf("security: key %s is outside its rotation window", keyringID(parsed.KeyID, parsed.Version))
		}
		return entry.Provider.open(parsed)
	}
	return nil, fmt.Errorf("security: no key registered for %s", keyringID(parsed.KeyID, parsed.Version))
}

// Active returns the key currently used for encryption.
func (k *Keyring) Active() (*AppKeySecretProvider, error) {
	if k == nil {
		return nil, fmt.Errorf("security: keyring is nil")
	}
	now := k.now()
	for _, entry := range k.entries {
		if entry.Window.Allows(now) {
			return entry.Provider, nil
		}
	}
	return nil, fmt.Errorf("security: no keyring entry is active at %s", now.UTC().Format(time.RFC3339))
}

func (k *Keyring) Metadata() (string, int) {
	active, err := k.Active()
	if err != nil {
		return "", 0
	}
	return active.Metadata()
}

func keyringID(keyID string, version int) string {
	return fmt.Sprintf("%s@v%d", strings.TrimSpace(keyID), version)
}

var _ core.SecretProvider = (*Keyring)(nil)
