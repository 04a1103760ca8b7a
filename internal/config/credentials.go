package config

import (
	"context"
	"fmt"
)

// StaticCredentialStore resolves credentials straight out of the loaded
// Config's exchanges section. It ignores userID: this deployment mode is
// single-operator, with one set of exchange keys shared by every engine.
// A multi-tenant deployment swaps this out for a KMS/vault-backed
// implementation of core.CredentialStore; the decryption mechanism itself
// is an external collaborator this repo never implements.
type StaticCredentialStore struct {
	exchanges map[string]ExchangeConfig
}

// NewStaticCredentialStore wraps a Config's exchanges map for credential
// resolution.
func NewStaticCredentialStore(cfg *Config) *StaticCredentialStore {
	return &StaticCredentialStore{exchanges: cfg.Exchanges}
}

// Resolve implements core.CredentialStore.
func (s *StaticCredentialStore) Resolve(ctx context.Context, userID, exchange string) (apiKey, secretKey, passphrase string, err error) {
	ex, ok := s.exchanges[exchange]
	if !ok {
		return "", "", "", fmt.Errorf("credentials: no configuration for exchange %q", exchange)
	}
	return string(ex.APIKey), string(ex.SecretKey), string(ex.Passphrase), nil
}
