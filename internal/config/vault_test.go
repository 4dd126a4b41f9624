package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"atsmatch/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("debug")
	return logger
}

type fakeSecretReader struct {
	secrets map[string]map[string]string
}

func (f *fakeSecretReader) GetStringSecret(path, key string) (string, error) {
	data, ok := f.secrets[path]
	if !ok {
		return "", fmt.Errorf("secret not found at path: %s", path)
	}
	value, ok := data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	return value, nil
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "secret/data/atsmatch")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseKVv2Secret(t *testing.T) {
	t.Run("valid envelope", func(t *testing.T) {
		secret, err := parseKVv2Secret(map[string]any{
			"data":     map[string]any{"api_key": "abc"},
			"metadata": map[string]any{"version": float64(3)},
		}, "secret/data/embedding")
		require.NoError(t, err)
		assert.Equal(t, int64(3), secret.Version)
		assert.Equal(t, "abc", secret.Data["api_key"])
	})

	t.Run("missing data", func(t *testing.T) {
		_, err := parseKVv2Secret(map[string]any{"metadata": map[string]any{}}, "p")
		assert.ErrorContains(t, err, "missing 'data' field")
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := parseKVv2Secret(map[string]any{
			"data":     map[string]any{},
			"metadata": map[string]any{},
		}, "p")
		assert.ErrorContains(t, err, "missing 'version' field")
	})
}

func TestApplySecrets(t *testing.T) {
	reader := &fakeSecretReader{secrets: map[string]map[string]string{
		"secret/data/server":    {"keys": "alpha, beta ,,gamma"},
		"secret/data/embedding": {"api_key": "vault-embedding-key"},
	}}

	cfg := &Config{
		Embedding: EmbeddingConfig{Provider: ProviderGemini, APIKey: "env-key"},
		Vault: VaultConfig{
			Enabled: true,
			Secrets: VaultSecrets{APIKeys: "secret/data/server", EmbeddingKey: "secret/data/embedding"},
		},
	}

	require.NoError(t, applySecrets(reader, cfg, newTestLogger()))
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Server.APIKeys)
	assert.Equal(t, "vault-embedding-key", cfg.Embedding.APIKey, "vault takes precedence over env")
}

func TestApplySecretsMissingKey(t *testing.T) {
	reader := &fakeSecretReader{secrets: map[string]map[string]string{
		"secret/data/embedding": {"token": "x"},
	}}
	cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{EmbeddingKey: "secret/data/embedding"}}}

	err := applySecrets(reader, cfg, nil)
	assert.ErrorContains(t, err, "failed to load embedding API key from vault")
}

func TestResolveVaultToken(t *testing.T) {
	t.Run("token from config", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token", TokenFile: "/does/not/matter"})
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token from file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token\n"), 0o600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile})
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: filepath.Join(t.TempDir(), "absent")})
		assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotReadable))
	})

	t.Run("no token at all", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfig))
	})
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{APIKey: "unchanged"}}
	assert.NoError(t, ApplyVaultSecrets(cfg, newTestLogger()))
	assert.Equal(t, "unchanged", cfg.Embedding.APIKey)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****6789", maskSecret("abcd-12345-6789"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}
