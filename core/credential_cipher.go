package core

import (
	"context"
	"fmt"
	"strings"
)

// CredentialCipher encrypts tokens before they reach storage and decrypts
// them only for the call that needs the plaintext.
type CredentialCipher struct {
	provider SecretProvider
}

func NewCredentialCipher(provider SecretProvider) (*CredentialCipher, error) {
	if provider == nil {
		return nil, fmt.Errorf("core: secret provider is required")
	}
	return &CredentialCipher{provider: provider}, nil
}

func (c *CredentialCipher) Seal(ctx context.Context, plaintext string) (string, error) {
	if c == nil || c.provider == nil {
		return "", fmt.Errorf("core: credential cipher is not configured")
	}
	if strings.TrimSpace(plaintext) == "" {
		return "", fmt.Errorf("core: token is required")
	}
	sealed, err := c.provider.Encrypt(ctx, []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("core: encrypt token: %w", err)
	}
	return string(sealed), nil
}

// SealOptional returns "" for an empty token instead of failing.
func (c *CredentialCipher) SealOptional(ctx context.Context, plaintext string) (string, error) {
	if strings.TrimSpace(plaintext) == "" {
		return "", nil
	}
	return c.Seal(ctx, plaintext)
}

func (c *CredentialCipher) Open(ctx context.Context, ciphertext string) (string, error) {
	if c == nil || c.provider == nil {
		return "", fmt.Errorf("core: credential cipher is not configured")
	}
	if strings.TrimSpace(ciphertext) == "" {
		return "", nil
	}
	plaintext, err := c.provider.Decrypt(ctx, []byte(ciphertext))
	if err != nil {
		return "", fmt.Errorf("core: decrypt token: %w", err)
	}
	return string(plaintext), nil
}
