package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/entra-mcp/entra-mcp/pkg/config"
)

const maxSecretNameLength = 127

type secretSetter interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// KeyVaultSink stores generated client secrets in Azure Key Vault.
type KeyVaultSink struct {
	client secretSetter
	prefix string
}

func NewKeyVaultSink(cfg config.SecretStoreConfig, cred azcore.TokenCredential) (*KeyVaultSink, error) {
	client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return newKeyVaultSink(client, cfg.NamePrefix), nil
}

func newKeyVaultSink(client secretSetter, prefix string) *KeyVaultSink {
	return &KeyVaultSink{client: client, prefix: prefix}
}

// Store writes the value under a vault-safe name derived from name and returns the secret id.
func (s *KeyVaultSink) Store(ctx context.Context, name, value string) (string, error) {
	secretName := SecretName(s.prefix, name)
	if secretName == "" {
		return "", fmt.Errorf("cannot derive a Key Vault secret name from %q", name)
	}

	contentType := "client-secret"
	resp, err := s.client.SetSecret(ctx, secretName, azsecrets.SetSecretParameters{
		Value:       &value,
		ContentType: &contentType,
		Tags: map[string]*string{
			"application": &name,
		},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to store secret %s: %w", secretName, err)
	}
	if resp.ID != nil {
		return string(*resp.ID), nil
	}
	return secretName, nil
}

// SecretName lowercases and keeps only letters, digits and single dashes.
func SecretName(prefix, name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(prefix + name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxSecretNameLength {
		out = strings.TrimRight(out[:maxSecretNameLength], "-")
	}
	return out
}
